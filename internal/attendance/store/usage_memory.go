package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"qrpass/internal/attendance/models"
)

type usageKey struct {
	date   string
	mobile string
}

// InMemoryUsage keeps daily usage aggregates in process.
type InMemoryUsage struct {
	mu   sync.Mutex
	days map[usageKey]*usageEntry
}

type usageEntry struct {
	credentials map[string]struct{}
	count       int
	lastDevice  string
}

func NewInMemoryUsage() *InMemoryUsage {
	return &InMemoryUsage{days: make(map[usageKey]*usageEntry)}
}

func (u *InMemoryUsage) Record(_ context.Context, day time.Time, mobile, credentialID, deviceID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := usageKey{date: models.DayKey(day), mobile: mobile}
	e, ok := u.days[key]
	if !ok {
		e = &usageEntry{credentials: make(map[string]struct{})}
		u.days[key] = e
	}
	e.credentials[credentialID] = struct{}{}
	e.count++
	e.lastDevice = deviceID
	return nil
}

// Get returns the aggregate, or an empty one when nothing was recorded.
func (u *InMemoryUsage) Get(_ context.Context, day time.Time, mobile string) (*models.DailyUsage, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := &models.DailyUsage{Date: models.DayKey(day), OwnerMobile: mobile, CredentialIDs: []string{}}
	e, ok := u.days[usageKey{date: out.Date, mobile: mobile}]
	if !ok {
		return out, nil
	}
	for id := range e.credentials {
		out.CredentialIDs = append(out.CredentialIDs, id)
	}
	sort.Strings(out.CredentialIDs)
	out.Count = e.count
	out.LastDeviceID = e.lastDevice
	return out, nil
}
