package scan

//go:generate mockgen -source=pipeline.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	attmetrics "qrpass/internal/attendance/metrics"
	attmodels "qrpass/internal/attendance/models"
	"qrpass/internal/audit"
	credmodels "qrpass/internal/credential/models"
	"qrpass/internal/credential/token"
	"qrpass/internal/platform/tracer"
	"qrpass/internal/sentinel"
	"qrpass/pkg/platform/privacy"
)

// CredentialReader is the slice of the credential store the pipeline uses.
// FindByToken returns sentinel.ErrNotFound when no credential holds token.
type CredentialReader interface {
	FindByToken(ctx context.Context, token string) (*credmodels.Credential, error)
	RecordUsage(ctx context.Context, credentialID string, at time.Time) error
}

// Ledger is the slice of the attendance ledger the pipeline uses.
type Ledger interface {
	Append(ctx context.Context, p *attmodels.Punch) error
	FindByOwnerAndCredentialSince(ctx context.Context, mobile, credentialID string, since time.Time) ([]*attmodels.Punch, error)
	FindByOwnerForDay(ctx context.Context, mobile string, day time.Time) ([]*attmodels.Punch, error)
}

// UsageRecorder maintains the daily usage aggregate.
type UsageRecorder interface {
	Record(ctx context.Context, day time.Time, mobile, credentialID, deviceID string) error
}

const DefaultDuplicateWindow = 30 * time.Second

type Option func(*Pipeline)

// Pipeline turns a scanned token into an attendance Outcome.
//
// The punch append and the usage update are two separate writes with no
// transaction around them, and nothing serializes the ledger checks against
// the append. Two concurrent scans of one credential from different devices
// can both pass the checks and both commit; the reconciler removes the extra
// punch afterwards.
type Pipeline struct {
	credentials     CredentialReader
	ledger          Ledger
	usage           UsageRecorder
	cooldown        *Cooldown
	sessions        *Sessions
	auditor         *audit.Publisher
	metrics         *attmetrics.Metrics
	tracer          tracer.Tracer
	logger          *slog.Logger
	duplicateWindow time.Duration
	scannerInfo     string
	checkFormat     bool
}

func New(credentials CredentialReader, ledger Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		credentials:     credentials,
		ledger:          ledger,
		tracer:          tracer.NewNoop(),
		logger:          slog.Default(),
		duplicateWindow: DefaultDuplicateWindow,
		scannerInfo:     attmodels.DefaultScannerInfo,
		checkFormat:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cooldown == nil {
		p.cooldown = NewCooldown(0, 0, 0)
	}
	if p.duplicateWindow <= 0 {
		p.duplicateWindow = DefaultDuplicateWindow
	}
	return p
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *attmetrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

func WithAuditor(a *audit.Publisher) Option {
	return func(p *Pipeline) {
		p.auditor = a
	}
}

// WithUsage records a daily usage aggregate after each accepted scan.
func WithUsage(u UsageRecorder) Option {
	return func(p *Pipeline) {
		p.usage = u
	}
}

func WithCooldown(c *Cooldown) Option {
	return func(p *Pipeline) {
		p.cooldown = c
	}
}

// WithSessions enables capture debouncing per scanning device.
func WithSessions(s *Sessions) Option {
	return func(p *Pipeline) {
		p.sessions = s
	}
}

func WithDuplicateWindow(d time.Duration) Option {
	return func(p *Pipeline) {
		p.duplicateWindow = d
	}
}

func WithScannerInfo(info string) Option {
	return func(p *Pipeline) {
		if info != "" {
			p.scannerInfo = info
		}
	}
}

// WithoutFormatCheck skips the token shape check so that any non-blank
// string reaches the store lookup. Useful for tokens minted by other issuers.
func WithoutFormatCheck() Option {
	return func(p *Pipeline) {
		p.checkFormat = false
	}
}

// Verify runs the scan checks in order and returns the first rejection, or
// commits a punch. It never returns an error: store failures become
// TransientFailure rejections.
func (p *Pipeline) Verify(ctx context.Context, rawToken, scanningDeviceID string, now time.Time) (out Outcome) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "scan.verify",
		tracer.String("scanning_device_id", scanningDeviceID),
	)
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.ErrorContext(ctx, "scan verification panicked", "panic", rec)
			out = transient(fmt.Errorf("panic: %v", rec))
		}
		p.observe(ctx, out, scanningDeviceID, now, time.Since(start))
		switch o := out.(type) {
		case *Rejected:
			span.SetAttributes(tracer.String("outcome", "rejected"), tracer.String("reason", string(o.Reason)))
			span.End(o.Err)
		default:
			span.SetAttributes(tracer.String("outcome", "accepted"))
			span.End(nil)
		}
	}()

	if p.sessions != nil && !p.sessions.For(scanningDeviceID).Allow(rawToken, now) {
		r := reject(ReasonRateLimited)
		r.Debounced = true
		r.Message = "Duplicate capture ignored"
		return r
	}

	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		r := reject(ReasonInvalidFormat)
		r.Message = "Invalid QR code format"
		return r
	}
	if p.checkFormat && !token.WellFormed(rawToken) {
		r := reject(ReasonInvalidFormat)
		r.Message = "Invalid QR code format"
		return r
	}

	cred, err := p.credentials.FindByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return reject(ReasonInvalidFormat)
		}
		return transient(fmt.Errorf("find credential by token: %w", err))
	}
	span.SetAttributes(tracer.String("credential_id", cred.ID))
	defer func() {
		if r, ok := out.(*Rejected); ok {
			r.CredentialID = cred.ID
		}
	}()

	// Used passes this gate; the ledger checks below decide it.
	switch credmodels.EffectiveStatus(cred, now) {
	case credmodels.StatusDisabled:
		return reject(ReasonDisabled)
	case credmodels.StatusExpired:
		return reject(ReasonExpired)
	case credmodels.StatusActive, credmodels.StatusUsed:
	default:
		return reject(ReasonUnknown)
	}

	release, rejected := p.cooldown.Acquire(scanningDeviceID, rawToken, now)
	if rejected != nil {
		return rejected
	}
	defer release()

	recent, err := p.ledger.FindByOwnerAndCredentialSince(ctx, cred.OwnerMobile, cred.ID, now.Add(-p.duplicateWindow))
	if err != nil {
		return transient(fmt.Errorf("find recent punches: %w", err))
	}
	if last := latest(recent); last != nil {
		elapsed := max(now.Sub(last.ScanTime), 0)
		r := reject(ReasonRateLimited)
		r.RetryAfter = p.duplicateWindow - elapsed
		r.Message = fmt.Sprintf("Please wait before scanning again (last scan was %ds ago)", int(elapsed.Seconds()))
		return r
	}

	today, err := p.ledger.FindByOwnerForDay(ctx, cred.OwnerMobile, now)
	if err != nil {
		return transient(fmt.Errorf("find today's punches: %w", err))
	}
	for _, punch := range today {
		if punch.CredentialID == cred.ID {
			return reject(ReasonAlreadyUsedToday)
		}
	}

	punch := &attmodels.Punch{
		ID:               uuid.NewString(),
		OwnerMobile:      cred.OwnerMobile,
		OwnerName:        cred.OwnerName,
		ScanTime:         now,
		CredentialID:     cred.ID,
		ScanningDeviceID: scanningDeviceID,
		ScannerInfo:      p.scannerInfo,
	}
	if err := p.ledger.Append(ctx, punch); err != nil {
		return transient(fmt.Errorf("append punch: %w", err))
	}
	if err := p.credentials.RecordUsage(ctx, cred.ID, now); err != nil {
		// The punch is already committed; a retry lands on the duplicate
		// window or the same-day check.
		p.logger.ErrorContext(ctx, "punch committed but usage update failed",
			"credential_id", cred.ID,
			"punch_id", punch.ID,
			"error", err,
		)
		return transient(fmt.Errorf("record credential usage: %w", err))
	}

	if p.usage != nil {
		if err := p.usage.Record(ctx, now, cred.OwnerMobile, cred.ID, scanningDeviceID); err != nil {
			p.logger.WarnContext(ctx, "failed to record daily usage",
				"credential_id", cred.ID,
				"error", err,
			)
		}
	}
	return &Accepted{Punch: punch}
}

func (p *Pipeline) observe(ctx context.Context, out Outcome, deviceID string, now time.Time, took time.Duration) {
	p.metrics.ObserveScanLatency(took.Seconds())
	switch o := out.(type) {
	case *Accepted:
		p.metrics.IncrementAccepted()
		p.logger.InfoContext(ctx, "scan accepted",
			"credential_id", o.Punch.CredentialID,
			"punch_id", o.Punch.ID,
			"owner_mobile", privacy.MaskMobile(o.Punch.OwnerMobile),
			"device_id", deviceID,
		)
		p.emit(ctx, audit.Event{
			Action:       audit.ActionScanAccepted,
			CredentialID: o.Punch.CredentialID,
			OwnerMobile:  privacy.MaskMobile(o.Punch.OwnerMobile),
			DeviceID:     deviceID,
			Decision:     "accepted",
			Timestamp:    now,
		})
	case *Rejected:
		if o.Debounced {
			p.metrics.IncrementRejected("debounced")
			return
		}
		p.metrics.IncrementRejected(string(o.Reason))
		level := slog.LevelInfo
		if o.Reason == ReasonTransientFailure {
			level = slog.LevelError
		}
		p.logger.Log(ctx, level, "scan rejected",
			"reason", o.Reason,
			"credential_id", o.CredentialID,
			"device_id", deviceID,
			"error", o.Err,
		)
		p.emit(ctx, audit.Event{
			Action:       audit.ActionScanRejected,
			CredentialID: o.CredentialID,
			DeviceID:     deviceID,
			Decision:     "rejected",
			Reason:       string(o.Reason),
			Timestamp:    now,
		})
	}
}

func (p *Pipeline) emit(ctx context.Context, event audit.Event) {
	if err := p.auditor.Emit(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func latest(punches []*attmodels.Punch) *attmodels.Punch {
	var out *attmodels.Punch
	for _, p := range punches {
		if out == nil || p.ScanTime.After(out.ScanTime) {
			out = p
		}
	}
	return out
}
