package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := New("cache", WithFailureThreshold(2), WithCooldown(10*time.Second), WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	assert.False(t, b.Failure())
	assert.True(t, b.Failure())
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow(), "first call after cooldown is a trial")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one trial at a time")

	assert.True(t, b.Failure(), "failed trial reopens")
	assert.False(t, b.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow())
	assert.True(t, b.Success())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New("cache", WithFailureThreshold(3))
	b.Failure()
	b.Failure()
	assert.False(t, b.Success())
	b.Failure()
	b.Failure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Failure())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
