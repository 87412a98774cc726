// Package reconcile removes punches that concurrent scans committed twice.
package reconcile

//go:generate mockgen -source=reconciler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	attmetrics "qrpass/internal/attendance/metrics"
	"qrpass/internal/attendance/models"
	"qrpass/internal/audit"
	"qrpass/pkg/platform/privacy"
)

// Ledger is the slice of the attendance ledger the reconciler uses.
type Ledger interface {
	FindAllForDay(ctx context.Context, day time.Time) ([]*models.Punch, error)
	Delete(ctx context.Context, punchID string) error
}

type Option func(*Reconciler)

// Reconciler keeps the earliest punch per (owner, credential) for a day and
// deletes the rest. A run is not atomic: a delete that fails is logged and
// left for the next run.
type Reconciler struct {
	ledger  Ledger
	auditor *audit.Publisher
	metrics *attmetrics.Metrics
	logger  *slog.Logger
}

func New(ledger Ledger, opts ...Option) *Reconciler {
	r := &Reconciler{
		ledger: ledger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *attmetrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithAuditor(a *audit.Publisher) Option {
	return func(r *Reconciler) {
		r.auditor = a
	}
}

// Duplicates returns the punches of day that Reconcile would delete, without
// deleting them.
func (r *Reconciler) Duplicates(ctx context.Context, day time.Time) ([]*models.Punch, error) {
	punches, err := r.ledger.FindAllForDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("find punches for %s: %w", models.DayKey(day), err)
	}
	return redundant(punches), nil
}

// Reconcile deletes every redundant punch of day and returns how many were
// removed. Only the initial read fails the run.
func (r *Reconciler) Reconcile(ctx context.Context, day time.Time) (int, error) {
	dups, err := r.Duplicates(ctx, day)
	if err != nil {
		r.metrics.IncrementReconcileRun("error")
		return 0, err
	}

	removed := 0
	failed := 0
	for _, p := range dups {
		if err := r.ledger.Delete(ctx, p.ID); err != nil {
			failed++
			r.logger.ErrorContext(ctx, "failed to delete duplicate punch",
				"punch_id", p.ID,
				"credential_id", p.CredentialID,
				"error", err,
			)
			continue
		}
		removed++
		if err := r.auditor.Emit(ctx, audit.Event{
			Action:       audit.ActionDuplicatesRemoved,
			CredentialID: p.CredentialID,
			OwnerMobile:  privacy.MaskMobile(p.OwnerMobile),
			DeviceID:     p.ScanningDeviceID,
			Reason:       "duplicate punch " + p.ID,
			Timestamp:    p.ScanTime,
		}); err != nil {
			r.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
		}
	}

	r.metrics.AddDuplicatesRemoved(removed)
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	r.metrics.IncrementReconcileRun(result)
	if removed > 0 || failed > 0 {
		r.logger.InfoContext(ctx, "duplicate punches reconciled",
			"day", models.DayKey(day),
			"removed", removed,
			"failed", failed,
		)
	}
	return removed, nil
}

type groupKey struct {
	mobile       string
	credentialID string
}

// redundant returns every punch that is not the earliest of its group. Ties
// on scan time keep the lowest id so repeated runs agree.
func redundant(punches []*models.Punch) []*models.Punch {
	groups := make(map[groupKey][]*models.Punch)
	for _, p := range punches {
		k := groupKey{mobile: p.OwnerMobile, credentialID: p.CredentialID}
		groups[k] = append(groups[k], p)
	}

	var out []*models.Punch
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if !group[i].ScanTime.Equal(group[j].ScanTime) {
				return group[i].ScanTime.Before(group[j].ScanTime)
			}
			return group[i].ID < group[j].ID
		})
		out = append(out, group[1:]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScanTime.Before(out[j].ScanTime) })
	return out
}
