// Package store persists registered devices and caches approval decisions.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qrpass/internal/device/models"
	"qrpass/internal/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	devices map[string]*models.Device
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{devices: make(map[string]*models.Device)}
}

func (s *InMemoryStore) Get(_ context.Context, deviceID string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

// Put inserts or replaces a device.
func (s *InMemoryStore) Put(_ context.Context, d *models.Device) error {
	if d == nil {
		return fmt.Errorf("device is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.DeviceID] = d.Clone()
	return nil
}

// ListByStatus returns devices with status, oldest registration first.
func (s *InMemoryStore) ListByStatus(_ context.Context, status models.Status) ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Device, 0)
	for _, d := range s.devices {
		if d.Status == status {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (s *InMemoryStore) TouchLastActive(_ context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if at.After(d.LastActiveAt) {
		d.LastActiveAt = at
	}
	return nil
}
