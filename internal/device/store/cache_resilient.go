package store

import (
	"context"
	"log/slog"
	"time"

	"qrpass/internal/device/models"
	"qrpass/pkg/platform/circuit"
)

type DecisionCache interface {
	Get(ctx context.Context, deviceID string) (models.Decision, bool, error)
	Set(ctx context.Context, deviceID string, decision models.Decision, ttl time.Duration) error
	Delete(ctx context.Context, deviceID string) error
}

// ResilientDecisionCache stops calling an unhealthy cache while its circuit
// is open. Reads become misses and writes are skipped, so approval checks
// fall through to the store. Deletes are always attempted because a missed
// eviction could keep a revoked device approved.
type ResilientDecisionCache struct {
	next    DecisionCache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewResilientDecisionCache(next DecisionCache, breaker *circuit.Breaker, logger *slog.Logger) *ResilientDecisionCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientDecisionCache{next: next, breaker: breaker, logger: logger}
}

func (c *ResilientDecisionCache) Get(ctx context.Context, deviceID string) (models.Decision, bool, error) {
	if !c.breaker.Allow() {
		return "", false, nil
	}
	decision, ok, err := c.next.Get(ctx, deviceID)
	c.record(ctx, err)
	return decision, ok, err
}

func (c *ResilientDecisionCache) Set(ctx context.Context, deviceID string, decision models.Decision, ttl time.Duration) error {
	if !c.breaker.Allow() {
		return nil
	}
	err := c.next.Set(ctx, deviceID, decision, ttl)
	c.record(ctx, err)
	return err
}

func (c *ResilientDecisionCache) Delete(ctx context.Context, deviceID string) error {
	err := c.next.Delete(ctx, deviceID)
	c.record(ctx, err)
	return err
}

func (c *ResilientDecisionCache) record(ctx context.Context, err error) {
	if err != nil {
		if c.breaker.Failure() {
			c.logger.WarnContext(ctx, "circuit opened, bypassing approval cache",
				"circuit", c.breaker.Name(),
				"error", err,
			)
		}
		return
	}
	if c.breaker.Success() {
		c.logger.InfoContext(ctx, "circuit closed, approval cache restored", "circuit", c.breaker.Name())
	}
}
