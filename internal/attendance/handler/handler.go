package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"qrpass/internal/attendance/models"
	"qrpass/internal/attendance/scan"
	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/httputil"
	"qrpass/pkg/platform/middleware/admin"
	"qrpass/pkg/platform/middleware/auth"
	"qrpass/pkg/platform/middleware/requesttime"
	"qrpass/pkg/requestcontext"
)

const defaultUsageDays = 7

type Verifier interface {
	Verify(ctx context.Context, rawToken, scanningDeviceID string, now time.Time) scan.Outcome
}

type Reports interface {
	Today(ctx context.Context, mobile string, now time.Time) ([]*models.Punch, error)
	UsageStats(ctx context.Context, mobile string, days int, now time.Time) ([]models.UsageStat, error)
	DailyUsage(ctx context.Context, mobile string, day time.Time) (*models.DailyUsage, error)
}

type Reconciler interface {
	Duplicates(ctx context.Context, day time.Time) ([]*models.Punch, error)
	Reconcile(ctx context.Context, day time.Time) (int, error)
}

type Handler struct {
	verifier   Verifier
	reports    Reports
	reconciler Reconciler
	logger     *slog.Logger
}

func New(verifier Verifier, reports Reports, reconciler Reconciler, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, reports: reports, reconciler: reconciler, logger: logger}
}

// Register mounts the device-facing routes. Callers wrap r with device auth.
func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(h.logger, auth.RoleScanner)).Post("/scans", h.HandleScan)
	r.Get("/attendance/today", h.HandleToday)
	r.Get("/attendance/usage", h.HandleUsage)
	r.Get("/attendance/daily", h.HandleDaily)
}

// RegisterAdmin mounts the reconciliation routes. Callers wrap r with the admin token check.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/reconcile/duplicates", h.HandleDuplicates)
	r.Post("/admin/reconcile", h.HandleReconcile)
}

func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	deviceID, err := httputil.RequireDeviceID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ScanRequest](w, r, h.logger)
	if !ok {
		return
	}

	status, resp := toScanResponse(h.verifier.Verify(ctx, req.Token, deviceID, requesttime.Now(ctx)))
	if resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) HandleToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := requesttime.Now(ctx)
	punches, err := h.reports.Today(ctx, r.URL.Query().Get("mobile"), now)
	if err != nil {
		h.fail(ctx, w, "failed to load today's attendance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PunchesResponse{
		Date:    models.DayKey(now),
		Punches: punches,
		Count:   len(punches),
	})
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mobile := r.URL.Query().Get("mobile")
	days := defaultUsageDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "days must be a number"))
			return
		}
		days = n
	}
	stats, err := h.reports.UsageStats(ctx, mobile, days, requesttime.Now(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load usage stats", err)
		return
	}
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	httputil.WriteJSON(w, http.StatusOK, UsageResponse{Mobile: mobile, Days: stats, Total: total})
}

func (h *Handler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, err := h.day(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	usage, err := h.reports.DailyUsage(ctx, r.URL.Query().Get("mobile"), day)
	if err != nil {
		h.fail(ctx, w, "failed to load daily usage", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usage)
}

func (h *Handler) HandleDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, err := h.day(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	dups, err := h.reconciler.Duplicates(ctx, day)
	if err != nil {
		h.fail(ctx, w, "failed to find duplicate punches", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read attendance"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReconcileResponse{Date: models.DayKey(day), Duplicates: dups})
}

func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, err := h.day(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	removed, err := h.reconciler.Reconcile(ctx, day)
	if err != nil {
		h.fail(ctx, w, "duplicate reconciliation failed", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read attendance"))
		return
	}
	h.logger.InfoContext(ctx, "manual reconciliation",
		"actor", admin.GetActor(ctx),
		"day", models.DayKey(day),
		"removed", removed,
	)
	httputil.WriteJSON(w, http.StatusOK, ReconcileResponse{Date: models.DayKey(day), Removed: removed})
}

// day parses the day (or date) query parameter in the request clock's
// location, defaulting to today.
func (h *Handler) day(r *http.Request) (time.Time, error) {
	now := requesttime.Now(r.Context())
	raw := r.URL.Query().Get("day")
	if raw == "" {
		raw = r.URL.Query().Get("date")
	}
	if raw == "" {
		return now, nil
	}
	day, err := time.ParseInLocation(models.DateLayout, raw, now.Location())
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "day must be formatted as YYYY-MM-DD")
	}
	return day, nil
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
