// Package service answers attendance read queries: today's punches, per-day
// counts and the daily usage aggregate.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qrpass/internal/attendance/models"
	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/validation"
)

const (
	DefaultRecentLimit = 50
	MaxStatsDays       = 90
)

// Ledger is the read side of the attendance ledger.
type Ledger interface {
	FindByOwnerForDay(ctx context.Context, mobile string, day time.Time) ([]*models.Punch, error)
	FindByOwnerSince(ctx context.Context, mobile string, since time.Time) ([]*models.Punch, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Punch, error)
}

// UsageReader reads the daily usage aggregate.
type UsageReader interface {
	Get(ctx context.Context, day time.Time, mobile string) (*models.DailyUsage, error)
}

type Option func(*Service)

type Service struct {
	ledger      Ledger
	usage       UsageReader
	recentLimit int
	logger      *slog.Logger
}

func New(ledger Ledger, usage UsageReader, opts ...Option) *Service {
	s := &Service{
		ledger:      ledger,
		usage:       usage,
		recentLimit: DefaultRecentLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecentLimit bounds the candidate set Today reads when no owner is given.
func WithRecentLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.recentLimit = limit
		}
	}
}

// Today returns the punches made on now's calendar day. Without a mobile it
// filters the most recent punches only, so a busy day is under-reported.
func (s *Service) Today(ctx context.Context, mobile string, now time.Time) ([]*models.Punch, error) {
	if mobile != "" {
		if err := checkMobile(mobile); err != nil {
			return nil, err
		}
		punches, err := s.ledger.FindByOwnerForDay(ctx, mobile, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load today's attendance")
		}
		return punches, nil
	}

	recent, err := s.ledger.ListRecent(ctx, s.recentLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load recent attendance")
	}
	start, end := models.DayBounds(now)
	out := make([]*models.Punch, 0, len(recent))
	for _, p := range recent {
		if !p.ScanTime.Before(start) && p.ScanTime.Before(end) {
			out = append(out, p)
		}
	}
	return out, nil
}

// UsageStats returns one entry per calendar day for the last days days
// ending today, oldest first, with zero counts for days without punches.
func (s *Service) UsageStats(ctx context.Context, mobile string, days int, now time.Time) ([]models.UsageStat, error) {
	if err := checkMobile(mobile); err != nil {
		return nil, err
	}
	if days < 1 || days > MaxStatsDays {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("days must be between 1 and %d", MaxStatsDays))
	}

	today, _ := models.DayBounds(now)
	first := today.AddDate(0, 0, -(days - 1))
	punches, err := s.ledger.FindByOwnerSince(ctx, mobile, first)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attendance history")
	}

	counts := make(map[string]int, days)
	for _, p := range punches {
		counts[models.DayKey(p.ScanTime.In(now.Location()))]++
	}
	stats := make([]models.UsageStat, 0, days)
	for d := first; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := models.DayKey(d)
		stats = append(stats, models.UsageStat{Date: key, Count: counts[key]})
	}
	return stats, nil
}

// DailyUsage returns the usage aggregate for (day, mobile).
func (s *Service) DailyUsage(ctx context.Context, mobile string, day time.Time) (*models.DailyUsage, error) {
	if err := checkMobile(mobile); err != nil {
		return nil, err
	}
	u, err := s.usage.Get(ctx, day, mobile)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load daily usage")
	}
	return u, nil
}

func checkMobile(mobile string) error {
	if !validation.IsMobile(mobile) {
		return dErrors.New(dErrors.CodeValidation, "mobile must be exactly 10 digits")
	}
	return nil
}
