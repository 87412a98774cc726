package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"qrpass/internal/device/models"
	"qrpass/internal/device/service"
	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/httputil"
	"qrpass/pkg/platform/middleware/admin"
	"qrpass/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Device, error)
	Check(ctx context.Context, deviceID string) (models.Decision, error)
	ListPending(ctx context.Context) ([]*models.Device, error)
	Approve(ctx context.Context, deviceID, actor string) (*models.Device, error)
	Reject(ctx context.Context, deviceID, actor, reason string) (*models.Device, error)
}

// TokenIssuer signs the bearer token a device uses for every later call.
type TokenIssuer interface {
	GenerateDeviceToken(ctx context.Context, deviceID, role string) (string, error)
	TTL() time.Duration
}

type Handler struct {
	service Service
	issuer  TokenIssuer
	logger  *slog.Logger
}

func New(svc Service, issuer TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{service: svc, issuer: issuer, logger: logger}
}

// Register mounts the unauthenticated device routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/devices/register", h.HandleRegister)
	r.Get("/devices/{id}/approval", h.HandleApproval)
}

// RegisterAdmin mounts the approval routes. Callers wrap r with the admin token check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/devices", h.HandleListPending)
	r.Post("/admin/devices/{id}/approve", h.HandleApprove)
	r.Post("/admin/devices/{id}/reject", h.HandleReject)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}

	d, err := h.service.Register(ctx, service.RegisterRequest{
		DeviceID:     req.DeviceID,
		Model:        req.Model,
		Manufacturer: req.Manufacturer,
		Platform:     req.Platform,
		OSVersion:    req.OSVersion,
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to register device",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.issuer.GenerateDeviceToken(ctx, d.DeviceID, req.Role)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue device token",
			"request_id", requestcontext.RequestID(ctx),
			"device_id", d.DeviceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Device:      toResponse(d),
		Decision:    string(d.Status.Decision()),
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.issuer.TTL().Seconds()),
	})
}

func (h *Handler) HandleApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := chi.URLParam(r, "id")
	decision, err := h.service.Check(ctx, deviceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to check device approval",
			"request_id", requestcontext.RequestID(ctx),
			"device_id", deviceID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "approval check unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ApprovalResponse{
		DeviceID: deviceID,
		Decision: string(decision),
		Approved: decision == models.DecisionApproved,
	})
}

func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" && status != string(models.StatusPending) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "only status=pending is supported"))
		return
	}
	devices, err := h.service.ListPending(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := ListResponse{Devices: make([]DeviceResponse, 0, len(devices))}
	for _, d := range devices {
		out.Devices = append(out.Devices, toResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.service.Approve(ctx, chi.URLParam(r, "id"), admin.GetActor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(d))
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger)
	if !ok {
		return
	}
	d, err := h.service.Reject(ctx, chi.URLParam(r, "id"), admin.GetActor(ctx), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(d))
}
