package store

import (
	"context"
	"sync"
	"time"

	"qrpass/internal/device/models"
)

type cacheEntry struct {
	decision  models.Decision
	expiresAt time.Time
}

// InMemoryDecisionCache caches approval decisions for one process.
type InMemoryDecisionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	clock   func() time.Time
}

func NewInMemoryDecisionCache() *InMemoryDecisionCache {
	return &InMemoryDecisionCache{entries: make(map[string]cacheEntry), clock: time.Now}
}

// WithClock replaces the time source used for expiry. Tests only.
func (c *InMemoryDecisionCache) WithClock(clock func() time.Time) *InMemoryDecisionCache {
	c.clock = clock
	return c
}

func (c *InMemoryDecisionCache) Get(_ context.Context, deviceID string) (models.Decision, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[deviceID]
	if !ok {
		return "", false, nil
	}
	if !c.clock().Before(e.expiresAt) {
		delete(c.entries, deviceID)
		return "", false, nil
	}
	return e.decision, true, nil
}

func (c *InMemoryDecisionCache) Set(_ context.Context, deviceID string, decision models.Decision, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[deviceID] = cacheEntry{decision: decision, expiresAt: c.clock().Add(ttl)}
	return nil
}

func (c *InMemoryDecisionCache) Delete(_ context.Context, deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deviceID)
	return nil
}
