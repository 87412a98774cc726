package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qrpass/internal/attendance/models"
)

const DefaultInterval = 15 * time.Minute

type WorkerOption func(*Worker)

// Worker reconciles the current day on a fixed interval.
type Worker struct {
	reconciler *Reconciler
	interval   time.Duration
	clock      func() time.Time
	logger     *slog.Logger
}

func WithInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides the time source used to pick the day.
func WithClock(clock func() time.Time) WorkerOption {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

func NewWorker(r *Reconciler, opts ...WorkerOption) (*Worker, error) {
	if r == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	w := &Worker{
		reconciler: r,
		interval:   DefaultInterval,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Start runs RunOnce every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "duplicate reconciliation failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce reconciles today. Shortly after midnight it also sweeps the
// previous day, whose last scans may have raced after the prior run.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock()
	removed, err := w.reconciler.Reconcile(ctx, now)
	if err != nil {
		return removed, err
	}
	if start, _ := models.DayBounds(now); now.Sub(start) < w.interval {
		prev, err := w.reconciler.Reconcile(ctx, now.AddDate(0, 0, -1))
		removed += prev
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}
