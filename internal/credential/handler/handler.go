package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"qrpass/internal/credential/models"
	"qrpass/internal/credential/service"
	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/httputil"
	"qrpass/pkg/platform/middleware/auth"
	"qrpass/pkg/platform/middleware/requesttime"
	"qrpass/pkg/requestcontext"
	"qrpass/pkg/validation"
)

// Service is the credential surface the HTTP layer needs.
type Service interface {
	GenerateForDevice(ctx context.Context, req service.GenerateRequest) (*models.Credential, service.GenerationError)
	Disable(ctx context.Context, credentialID string) (*models.Credential, error)
	Extend(ctx context.Context, credentialID string, days int) (*models.Credential, error)
	Get(ctx context.Context, credentialID string) (*models.View, error)
	ListByOwner(ctx context.Context, mobile string, now time.Time) ([]models.View, error)
	ActiveCount(ctx context.Context, mobile string, now time.Time) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the credential routes. Callers wrap r with device auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/credentials", h.HandleList)
	r.Get("/credentials/active-count", h.HandleActiveCount)
	r.Get("/credentials/{id}", h.HandleGet)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(h.logger, auth.RoleOwner))
		r.Post("/credentials", h.HandleGenerate)
		r.Post("/credentials/{id}/disable", h.HandleDisable)
		r.Post("/credentials/{id}/extend", h.HandleExtend)
	})
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	deviceID, err := httputil.RequireDeviceID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[GenerateRequest](w, r, h.logger)
	if !ok {
		return
	}

	cred, gerr := h.service.GenerateForDevice(ctx, service.GenerateRequest{
		OwnerName:   req.Name,
		OwnerMobile: req.Mobile,
		ExpiryDays:  req.ExpiryDays,
		DeviceID:    deviceID,
	})
	if gerr != nil {
		httputil.WriteError(w, service.ToDomainError(gerr))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(cred, models.EffectiveStatus(cred, requesttime.Now(ctx))))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mobile := r.URL.Query().Get("mobile")
	if !validation.IsMobile(mobile) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "mobile must be exactly 10 digits"))
		return
	}
	views, err := h.service.ListByOwner(ctx, mobile, requesttime.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list credentials",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	out := ListResponse{Credentials: make([]CredentialResponse, 0, len(views))}
	for _, v := range views {
		out.Credentials = append(out.Credentials, toResponse(v.Credential, v.Status))
		if v.Status == models.StatusActive || v.Status == models.StatusUsed {
			out.Live++
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleActiveCount reports how many live credentials the owner holds.
func (h *Handler) HandleActiveCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mobile := r.URL.Query().Get("mobile")
	if !validation.IsMobile(mobile) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "mobile must be exactly 10 digits"))
		return
	}
	count, err := h.service.ActiveCount(ctx, mobile, requesttime.Now(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to count active credentials",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActiveCountResponse{Mobile: mobile, Active: count})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(view.Credential, view.Status))
}

func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cred, err := h.service.Disable(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to disable credential",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(cred, models.EffectiveStatus(cred, requesttime.Now(ctx))))
}

func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ExtendRequest](w, r, h.logger)
	if !ok {
		return
	}
	cred, err := h.service.Extend(ctx, chi.URLParam(r, "id"), req.Days)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to extend credential",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(cred, models.EffectiveStatus(cred, requesttime.Now(ctx))))
}
