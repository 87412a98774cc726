package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qrpass/internal/attendance/models"
	"qrpass/internal/sentinel"
)

// InMemoryLedger keeps punches in a map guarded by a RWMutex.
type InMemoryLedger struct {
	mu      sync.RWMutex
	punches map[string]*models.Punch
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{punches: make(map[string]*models.Punch)}
}

func (l *InMemoryLedger) Append(_ context.Context, p *models.Punch) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("punch id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.punches[p.ID]; ok {
		return sentinel.ErrConflict
	}
	l.punches[p.ID] = p.Clone()
	return nil
}

func (l *InMemoryLedger) FindByOwnerAndCredentialSince(_ context.Context, mobile, credentialID string, since time.Time) ([]*models.Punch, error) {
	return l.filter(func(p *models.Punch) bool {
		return p.OwnerMobile == mobile && p.CredentialID == credentialID && !p.ScanTime.Before(since)
	}, 0), nil
}

func (l *InMemoryLedger) FindByOwnerForDay(_ context.Context, mobile string, day time.Time) ([]*models.Punch, error) {
	start, end := models.DayBounds(day)
	return l.filter(func(p *models.Punch) bool {
		return p.OwnerMobile == mobile && inRange(p.ScanTime, start, end)
	}, 0), nil
}

func (l *InMemoryLedger) FindAllForDay(_ context.Context, day time.Time) ([]*models.Punch, error) {
	start, end := models.DayBounds(day)
	return l.filter(func(p *models.Punch) bool {
		return inRange(p.ScanTime, start, end)
	}, 0), nil
}

func (l *InMemoryLedger) FindByOwnerSince(_ context.Context, mobile string, since time.Time) ([]*models.Punch, error) {
	return l.filter(func(p *models.Punch) bool {
		return p.OwnerMobile == mobile && !p.ScanTime.Before(since)
	}, 0), nil
}

// ListRecent returns up to limit punches, newest first.
func (l *InMemoryLedger) ListRecent(_ context.Context, limit int) ([]*models.Punch, error) {
	return l.filter(func(*models.Punch) bool { return true }, limit), nil
}

func (l *InMemoryLedger) Delete(_ context.Context, punchID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.punches[punchID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(l.punches, punchID)
	return nil
}

// filter returns matching punches newest first, truncated to limit when limit > 0.
func (l *InMemoryLedger) filter(keep func(*models.Punch) bool, limit int) []*models.Punch {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.Punch, 0)
	for _, p := range l.punches {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScanTime.After(out[j].ScanTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
