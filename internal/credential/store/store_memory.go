package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qrpass/internal/credential/models"
	"qrpass/internal/sentinel"
)

// InMemoryStore keeps credentials in a map guarded by a RWMutex. Records are
// copied on the way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.Credential
	byToken map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]*models.Credential),
		byToken: make(map[string]string),
	}
}

func (s *InMemoryStore) Get(_ context.Context, credentialID string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// Put inserts or replaces a credential. A token already held by another
// credential is a conflict.
func (s *InMemoryStore) Put(_ context.Context, c *models.Credential) error {
	if c == nil {
		return fmt.Errorf("credential is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byToken[c.Token]; ok && owner != c.ID {
		return sentinel.ErrConflict
	}
	if prev, ok := s.byID[c.ID]; ok && prev.Token != c.Token {
		delete(s.byToken, prev.Token)
	}
	s.byID[c.ID] = c.Clone()
	s.byToken[c.Token] = c.ID
	return nil
}

func (s *InMemoryStore) FindByOwner(_ context.Context, mobile string) ([]*models.Credential, error) {
	return s.filter(func(c *models.Credential) bool { return c.OwnerMobile == mobile }), nil
}

func (s *InMemoryStore) FindByStatusAndOwner(_ context.Context, status models.StoredStatus, mobile string) ([]*models.Credential, error) {
	return s.filter(func(c *models.Credential) bool {
		return c.OwnerMobile == mobile && c.StoredStatus == status
	}), nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, token string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credentialID, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[credentialID].Clone(), nil
}

// RecordUsage increments the usage counter and stamps lastUsedAt.
func (s *InMemoryStore) RecordUsage(_ context.Context, credentialID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[credentialID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.UsageCount++
	usedAt := at
	c.LastUsedAt = &usedAt
	return nil
}

// SetStatus writes only the stored status and returns the updated credential.
func (s *InMemoryStore) SetStatus(_ context.Context, credentialID string, status models.StoredStatus) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c.StoredStatus = status
	return c.Clone(), nil
}

// ExtendExpiry adds days to an active credential's expiry duration. A
// disabled credential is left untouched and reported as ErrInvalidState.
func (s *InMemoryStore) ExtendExpiry(_ context.Context, credentialID string, days int) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c.StoredStatus != models.StoredActive {
		return nil, sentinel.ErrInvalidState
	}
	c.ExpiryDurationDays += days
	return c.Clone(), nil
}

func (s *InMemoryStore) filter(keep func(*models.Credential) bool) []*models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Credential, 0)
	for _, c := range s.byID {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
