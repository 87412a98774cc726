// Package service registers devices and answers approval checks for credential generation.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"qrpass/internal/audit"
	"qrpass/internal/device/models"
	"qrpass/internal/platform/tracer"
	"qrpass/internal/sentinel"
	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/middleware/requesttime"
)

const DefaultCacheTTL = 5 * time.Minute

type Store interface {
	Get(ctx context.Context, deviceID string) (*models.Device, error)
	Put(ctx context.Context, d *models.Device) error
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Device, error)
	TouchLastActive(ctx context.Context, deviceID string, at time.Time) error
}

// DecisionCache holds recent approved decisions so generation does not hit
// the store on every request.
type DecisionCache interface {
	Get(ctx context.Context, deviceID string) (models.Decision, bool, error)
	Set(ctx context.Context, deviceID string, decision models.Decision, ttl time.Duration) error
	Delete(ctx context.Context, deviceID string) error
}

type RegisterRequest struct {
	DeviceID     string
	Model        string
	Manufacturer string
	Platform     string
	OSVersion    string
	UserAgent    string
}

type Option func(*Service)

type Service struct {
	store    Store
	cache    DecisionCache
	cacheTTL time.Duration
	auditor  *audit.Publisher
	tracer   tracer.Tracer
	logger   *slog.Logger
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		cacheTTL: DefaultCacheTTL,
		tracer:   tracer.NewNoop(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func WithCache(c DecisionCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditor(a *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Register records a new pending device. Registering a known device refreshes
// its description and keeps its approval state.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Device, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "device_id is required")
	}
	now := requesttime.Now(ctx)
	platform, osVersion := describeUserAgent(req.UserAgent)
	if req.Platform != "" {
		platform = req.Platform
	}
	if req.OSVersion != "" {
		osVersion = req.OSVersion
	}

	existing, err := s.store.Get(ctx, deviceID)
	switch {
	case err == nil:
		existing.Model = firstNonEmpty(req.Model, existing.Model)
		existing.Manufacturer = firstNonEmpty(req.Manufacturer, existing.Manufacturer)
		existing.Platform = firstNonEmpty(platform, existing.Platform)
		existing.OSVersion = firstNonEmpty(osVersion, existing.OSVersion)
		existing.LastActiveAt = now
		if err := s.store.Put(ctx, existing); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update device")
		}
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load device")
	}

	d := &models.Device{
		DeviceID:     deviceID,
		Status:       models.StatusPending,
		Model:        req.Model,
		Manufacturer: req.Manufacturer,
		Platform:     platform,
		OSVersion:    osVersion,
		RegisteredAt: now,
		LastActiveAt: now,
	}
	if err := s.store.Put(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to register device")
	}
	s.logger.InfoContext(ctx, "device registered",
		"device_id", deviceID,
		"platform", platform,
	)
	s.emit(ctx, audit.Event{Action: audit.ActionDeviceRegistered, DeviceID: deviceID, Timestamp: now})
	return d, nil
}

// Check returns the approval decision for deviceID. An unknown device is
// NotRegistered, not an error; errors mean the decision could not be made.
func (s *Service) Check(ctx context.Context, deviceID string) (decision models.Decision, err error) {
	ctx, span := s.tracer.Start(ctx, "device.check", tracer.String("device_id", deviceID))
	defer func() {
		span.SetAttributes(tracer.String("decision", string(decision)))
		span.End(err)
	}()

	if s.cache != nil {
		cached, ok, cerr := s.cache.Get(ctx, deviceID)
		if cerr != nil {
			s.logger.WarnContext(ctx, "approval cache read failed", "device_id", deviceID, "error", cerr)
		} else if ok {
			span.AddEvent("cache_hit")
			return cached, nil
		}
	}

	d, err := s.store.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.DecisionNotRegistered, nil
		}
		return "", fmt.Errorf("load device: %w", err)
	}
	decision = d.Status.Decision()

	if err := s.store.TouchLastActive(ctx, deviceID, requesttime.Now(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to update device activity", "device_id", deviceID, "error", err)
	}
	if decision == models.DecisionApproved && s.cache != nil {
		if err := s.cache.Set(ctx, deviceID, decision, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "approval cache write failed", "device_id", deviceID, "error", err)
		}
	}
	return decision, nil
}

func (s *Service) Get(ctx context.Context, deviceID string) (*models.Device, error) {
	d, err := s.store.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "device not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load device")
	}
	return d, nil
}

func (s *Service) ListPending(ctx context.Context) ([]*models.Device, error) {
	devices, err := s.store.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list devices")
	}
	return devices, nil
}

// Approve grants generation rights to deviceID.
func (s *Service) Approve(ctx context.Context, deviceID, actor string) (*models.Device, error) {
	return s.transition(ctx, deviceID, actor, func(d *models.Device, now time.Time) {
		d.Status = models.StatusApproved
		d.ApprovedAt = &now
		d.RejectedReason = ""
	}, audit.ActionDeviceApproved, "")
}

// Reject revokes generation rights. The cached decision is evicted so the
// change applies on the next check.
func (s *Service) Reject(ctx context.Context, deviceID, actor, reason string) (*models.Device, error) {
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, deviceID, actor, func(d *models.Device, _ time.Time) {
		d.Status = models.StatusRejected
		d.ApprovedAt = nil
		d.RejectedReason = reason
	}, audit.ActionDeviceRejected, reason)
}

func (s *Service) transition(ctx context.Context, deviceID, actor string, apply func(*models.Device, time.Time), action audit.Action, reason string) (*models.Device, error) {
	d, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	now := requesttime.Now(ctx)
	apply(d, now)
	if err := s.store.Put(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update device")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, deviceID); err != nil {
			s.logger.WarnContext(ctx, "approval cache evict failed", "device_id", deviceID, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "device status changed",
		"device_id", deviceID,
		"status", d.Status,
		"actor", actor,
	)
	s.emit(ctx, audit.Event{
		Action:    action,
		DeviceID:  deviceID,
		Actor:     actor,
		Decision:  string(d.Status),
		Reason:    reason,
		Timestamp: now,
	})
	return d, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
