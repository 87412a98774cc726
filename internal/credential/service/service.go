package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"qrpass/internal/audit"
	credmetrics "qrpass/internal/credential/metrics"
	"qrpass/internal/credential/models"
	"qrpass/internal/credential/token"
	devicemodels "qrpass/internal/device/models"
	"qrpass/internal/platform/tracer"
	"qrpass/internal/sentinel"
	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/platform/middleware/requesttime"
	"qrpass/pkg/platform/privacy"
	"qrpass/pkg/validation"
)

// Store is the credential persistence contract.
// Get and FindByToken return sentinel.ErrNotFound when nothing matches.
// Put returns sentinel.ErrConflict when the token belongs to another credential.
// SetStatus and ExtendExpiry touch a single column so they never undo a
// concurrent usage update; ExtendExpiry returns sentinel.ErrInvalidState when
// the credential is not active.
type Store interface {
	Get(ctx context.Context, credentialID string) (*models.Credential, error)
	Put(ctx context.Context, c *models.Credential) error
	FindByOwner(ctx context.Context, mobile string) ([]*models.Credential, error)
	FindByStatusAndOwner(ctx context.Context, status models.StoredStatus, mobile string) ([]*models.Credential, error)
	SetStatus(ctx context.Context, credentialID string, status models.StoredStatus) (*models.Credential, error)
	ExtendExpiry(ctx context.Context, credentialID string, days int) (*models.Credential, error)
}

// TokenIssuer mints the opaque token bound to a credential payload.
type TokenIssuer interface {
	Issue(payload models.Payload) (token.Issued, error)
}

// ApprovalGate answers whether a device may issue credentials.
type ApprovalGate interface {
	Check(ctx context.Context, deviceID string) (devicemodels.Decision, error)
}

const (
	defaultMaxActive     = 5
	defaultMaxExpiryDays = 90
	minNameLength        = 2
)

// GenerateRequest carries the owner details for a new credential.
type GenerateRequest struct {
	OwnerName   string
	OwnerMobile string
	ExpiryDays  int
	DeviceID    string
}

type Option func(*Service)

// Service issues and manages attendance credentials.
//
// Generate is read-then-decide: two concurrent calls for the same owner can
// both see no live credential and both mint one. The store offers no
// compare-and-swap, so the one-live-credential rule is best effort.
type Service struct {
	store         Store
	issuer        TokenIssuer
	gate          ApprovalGate
	auditor       *audit.Publisher
	metrics       *credmetrics.Metrics
	tracer        tracer.Tracer
	logger        *slog.Logger
	maxActive     int
	maxExpiryDays int
}

func New(store Store, issuer TokenIssuer, opts ...Option) *Service {
	svc := &Service{
		store:         store,
		issuer:        issuer,
		tracer:        tracer.NewNoop(),
		logger:        slog.Default(),
		maxActive:     defaultMaxActive,
		maxExpiryDays: defaultMaxExpiryDays,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.maxActive <= 0 {
		svc.maxActive = defaultMaxActive
	}
	if svc.maxExpiryDays <= 0 {
		svc.maxExpiryDays = defaultMaxExpiryDays
	}
	return svc
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *credmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithApprovalGate enables GenerateForDevice.
func WithApprovalGate(g ApprovalGate) Option {
	return func(s *Service) {
		s.gate = g
	}
}

// WithMaxActive caps the number of live credentials one owner may hold.
func WithMaxActive(n int) Option {
	return func(s *Service) {
		s.maxActive = n
	}
}

func WithMaxExpiryDays(days int) Option {
	return func(s *Service) {
		s.maxExpiryDays = days
	}
}

// GenerateForDevice consults the approval gate for req.DeviceID and then
// runs Generate with its decision. A gate error is reported as a failed check.
func (s *Service) GenerateForDevice(ctx context.Context, req GenerateRequest) (*models.Credential, GenerationError) {
	if s.gate == nil {
		return nil, &ApprovalError{Reason: ApprovalCheckFailed, Err: errors.New("approval gate not configured")}
	}
	decision, err := s.gate.Check(ctx, req.DeviceID)
	if err != nil {
		s.logger.WarnContext(ctx, "device approval check failed",
			"device_id", req.DeviceID,
			"error", err,
		)
		gerr := &ApprovalError{Reason: ApprovalCheckFailed, Err: err}
		s.rejected(ctx, req, gerr)
		return nil, gerr
	}
	return s.Generate(ctx, req, decision)
}

// Generate decides whether to refuse, reactivate or mint a credential for
// req.OwnerMobile. Checks run in order and stop at the first failure:
// approval, input validation, the live credential cap, the one-live
// credential rule, then reactivation of the newest disabled credential or a
// fresh mint.
func (s *Service) Generate(ctx context.Context, req GenerateRequest, decision devicemodels.Decision) (cred *models.Credential, gerr GenerationError) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "credential.generate",
		tracer.String("device_id", req.DeviceID),
	)
	defer func() {
		var spanErr error
		if gerr != nil {
			spanErr = gerr
			s.rejected(ctx, req, gerr)
		}
		span.End(spanErr)
		s.metrics.ObserveGenerateLatency(time.Since(start).Seconds())
	}()

	if decision != devicemodels.DecisionApproved {
		return nil, approvalFailure(decision)
	}
	req.OwnerName = strings.TrimSpace(req.OwnerName)
	req.OwnerMobile = strings.TrimSpace(req.OwnerMobile)
	if verr := s.validate(req); verr != nil {
		return nil, verr
	}

	now := requesttime.Now(ctx)

	active, err := s.store.FindByStatusAndOwner(ctx, models.StoredActive, req.OwnerMobile)
	if err != nil {
		return nil, &TransientFailure{Err: err}
	}
	if live := countLive(active, now); live >= s.maxActive {
		return nil, &RateLimitedError{Active: live, Limit: s.maxActive}
	}

	existing, err := s.store.FindByOwner(ctx, req.OwnerMobile)
	if err != nil {
		return nil, &TransientFailure{Err: err}
	}
	sortNewestFirst(existing)

	var reusable *models.Credential
	for _, c := range existing {
		if models.IsLive(c, now) {
			return nil, &ActiveCredentialExists{CredentialID: c.ID}
		}
		if reusable == nil && c.StoredStatus == models.StoredDisabled {
			reusable = c
		}
	}

	if reusable != nil {
		return s.reactivate(ctx, reusable, req, now)
	}
	return s.mint(ctx, req, now)
}

func (s *Service) validate(req GenerateRequest) *ValidationError {
	if len([]rune(req.OwnerName)) < minNameLength {
		return &ValidationError{Field: "name", Reason: "must be at least 2 characters"}
	}
	if !validation.IsMobile(req.OwnerMobile) {
		return &ValidationError{Field: "mobile", Reason: "must be exactly 10 digits"}
	}
	if req.ExpiryDays < 1 || req.ExpiryDays > s.maxExpiryDays {
		return &ValidationError{Field: "expiry_days", Reason: "must be between 1 and " + strconv.Itoa(s.maxExpiryDays)}
	}
	return nil
}

// reactivate reuses a disabled credential's id with fresh token material and
// a reset usage history.
func (s *Service) reactivate(ctx context.Context, prev *models.Credential, req GenerateRequest, now time.Time) (*models.Credential, GenerationError) {
	c := prev.Clone()
	c.OwnerName = req.OwnerName
	c.ExpiryDurationDays = req.ExpiryDays
	c.CreatedAt = now
	c.UsageCount = 0
	c.LastUsedAt = nil
	c.StoredStatus = models.StoredActive
	c.IssuingDeviceID = req.DeviceID
	c.Version = models.PayloadVersion

	if gerr := s.issueAndPut(ctx, c); gerr != nil {
		return nil, gerr
	}
	s.metrics.IncrementGenerated("reactivated")
	s.logger.InfoContext(ctx, "credential reactivated",
		"credential_id", c.ID,
		"owner_mobile", privacy.MaskMobile(c.OwnerMobile),
		"device_id", c.IssuingDeviceID,
	)
	s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialReactivated,
		CredentialID: c.ID,
		OwnerMobile:  privacy.MaskMobile(c.OwnerMobile),
		DeviceID:     c.IssuingDeviceID,
		Timestamp:    now,
	})
	return c, nil
}

func (s *Service) mint(ctx context.Context, req GenerateRequest, now time.Time) (*models.Credential, GenerationError) {
	c := &models.Credential{
		ID:                 uuid.NewString(),
		OwnerName:          req.OwnerName,
		OwnerMobile:        req.OwnerMobile,
		CreatedAt:          now,
		ExpiryDurationDays: req.ExpiryDays,
		StoredStatus:       models.StoredActive,
		IssuingDeviceID:    req.DeviceID,
		Version:            models.PayloadVersion,
	}
	if gerr := s.issueAndPut(ctx, c); gerr != nil {
		return nil, gerr
	}
	s.metrics.IncrementGenerated("minted")
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", c.ID,
		"owner_mobile", privacy.MaskMobile(c.OwnerMobile),
		"device_id", c.IssuingDeviceID,
		"expiry_days", c.ExpiryDurationDays,
	)
	s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialIssued,
		CredentialID: c.ID,
		OwnerMobile:  privacy.MaskMobile(c.OwnerMobile),
		DeviceID:     c.IssuingDeviceID,
		Timestamp:    now,
	})
	return c, nil
}

func (s *Service) issueAndPut(ctx context.Context, c *models.Credential) GenerationError {
	issued, err := s.issuer.Issue(models.PayloadOf(c))
	if err != nil {
		return &IssuanceFailed{Err: err}
	}
	c.Token = issued.Token
	c.Salt = issued.Salt
	if err := s.store.Put(ctx, c); err != nil {
		return &TransientFailure{Err: err}
	}
	return nil
}

// Disable flips a credential to Disabled. Disabling twice is a no-op.
func (s *Service) Disable(ctx context.Context, credentialID string) (*models.Credential, error) {
	c, err := s.load(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if c.StoredStatus == models.StoredDisabled {
		return c, nil
	}
	c, err = s.store.SetStatus(ctx, credentialID, models.StoredDisabled)
	if err != nil {
		return nil, storeError(err, "failed to disable credential")
	}
	s.metrics.IncrementDisabled()
	s.logger.InfoContext(ctx, "credential disabled", "credential_id", c.ID)
	s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialDisabled,
		CredentialID: c.ID,
		OwnerMobile:  privacy.MaskMobile(c.OwnerMobile),
		Timestamp:    requesttime.Now(ctx),
	})
	return c, nil
}

// Extend adds days to a credential's expiry duration. Disabled credentials
// cannot be extended; the check and the write are one store operation.
func (s *Service) Extend(ctx context.Context, credentialID string, days int) (*models.Credential, error) {
	if days < 1 || days > s.maxExpiryDays {
		return nil, dErrors.New(dErrors.CodeValidation, "days must be between 1 and "+strconv.Itoa(s.maxExpiryDays))
	}
	if credentialID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential id is required")
	}
	c, err := s.store.ExtendExpiry(ctx, credentialID, days)
	if err != nil {
		return nil, storeError(err, "failed to extend credential")
	}
	s.metrics.IncrementExtended()
	s.logger.InfoContext(ctx, "credential extended",
		"credential_id", c.ID,
		"added_days", days,
		"expiry_days", c.ExpiryDurationDays,
	)
	s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialExtended,
		CredentialID: c.ID,
		OwnerMobile:  privacy.MaskMobile(c.OwnerMobile),
		Reason:       "+" + strconv.Itoa(days) + "d",
		Timestamp:    requesttime.Now(ctx),
	})
	return c, nil
}

// Get returns a credential with its effective status at request time.
func (s *Service) Get(ctx context.Context, credentialID string) (*models.View, error) {
	c, err := s.load(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	return &models.View{Credential: c, Status: models.EffectiveStatus(c, requesttime.Now(ctx))}, nil
}

// ListByOwner returns the owner's credentials newest first with effective status at now.
func (s *Service) ListByOwner(ctx context.Context, mobile string, now time.Time) ([]models.View, error) {
	if !validation.IsMobile(mobile) {
		return nil, dErrors.New(dErrors.CodeValidation, "mobile must be exactly 10 digits")
	}
	creds, err := s.store.FindByOwner(ctx, mobile)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list credentials")
	}
	sortNewestFirst(creds)
	out := make([]models.View, 0, len(creds))
	for _, c := range creds {
		out = append(out, models.View{Credential: c, Status: models.EffectiveStatus(c, now)})
	}
	return out, nil
}

// ActiveCount returns how many live credentials the owner holds at now.
func (s *Service) ActiveCount(ctx context.Context, mobile string, now time.Time) (int, error) {
	if !validation.IsMobile(mobile) {
		return 0, dErrors.New(dErrors.CodeValidation, "mobile must be exactly 10 digits")
	}
	creds, err := s.store.FindByStatusAndOwner(ctx, models.StoredActive, mobile)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count credentials")
	}
	return countLive(creds, now), nil
}

func (s *Service) load(ctx context.Context, credentialID string) (*models.Credential, error) {
	if credentialID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential id is required")
	}
	c, err := s.store.Get(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load credential")
	}
	return c, nil
}

func (s *Service) rejected(ctx context.Context, req GenerateRequest, gerr GenerationError) {
	reason := RejectionReason(gerr)
	s.metrics.IncrementRejected(reason)
	level := slog.LevelInfo
	switch gerr.(type) {
	case *TransientFailure, *IssuanceFailed:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "credential generation rejected",
		"reason", reason,
		"owner_mobile", privacy.MaskMobile(req.OwnerMobile),
		"device_id", req.DeviceID,
		"error", gerr,
	)
	s.emit(ctx, audit.Event{
		Action:      audit.ActionGenerationRejected,
		OwnerMobile: privacy.MaskMobile(req.OwnerMobile),
		DeviceID:    req.DeviceID,
		Decision:    "rejected",
		Reason:      reason,
		Timestamp:   requesttime.Now(ctx),
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

// RejectionReason is a stable label for a generation failure.
func RejectionReason(gerr GenerationError) string {
	switch e := gerr.(type) {
	case *ApprovalError:
		return "approval_" + string(e.Reason)
	case *ValidationError:
		return "validation"
	case *ActiveCredentialExists:
		return "active_exists"
	case *RateLimitedError:
		return "rate_limited"
	case *IssuanceFailed:
		return "issuance_failed"
	case *TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}
