package scan

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpass/pkg/testutil"
)

func TestCooldown(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("in flight", func(t *testing.T) {
		c := NewCooldown(0, 0, 0)
		release, r := c.Acquire("gate", "a", t0)
		require.Nil(t, r)

		_, r = c.Acquire("gate", "b", t0.Add(time.Minute))
		require.NotNil(t, r)
		assert.Equal(t, ReasonRateLimited, r.Reason)
		assert.Equal(t, "A scan is already being processed", r.Message)

		release()
		release()
		_, r = c.Acquire("gate", "b", t0.Add(time.Minute))
		assert.Nil(t, r)
	})

	t.Run("same token", func(t *testing.T) {
		c := NewCooldown(0, 0, 0)
		release, r := c.Acquire("gate", "a", t0)
		require.Nil(t, r)
		release()

		_, r = c.Acquire("gate", "a", t0.Add(10*time.Second))
		require.NotNil(t, r)
		assert.Equal(t, 5*time.Second, r.RetryAfter)
		assert.Equal(t, "Please wait 5s before scanning the same QR code again", r.Message)

		release, r = c.Acquire("gate", "a", t0.Add(15*time.Second))
		require.Nil(t, r)
		release()
	})

	t.Run("any token rounds wait up", func(t *testing.T) {
		c := NewCooldown(0, 0, 0)
		release, r := c.Acquire("gate", "a", t0)
		require.Nil(t, r)
		release()

		_, r = c.Acquire("gate", "b", t0.Add(3500*time.Millisecond))
		require.NotNil(t, r)
		assert.Equal(t, "Please wait 2s before scanning another QR code", r.Message)
	})

	t.Run("rejections are not recorded", func(t *testing.T) {
		c := NewCooldown(0, 0, 0)
		release, r := c.Acquire("gate", "a", t0)
		require.Nil(t, r)
		release()

		_, r = c.Acquire("gate", "a", t0.Add(14*time.Second))
		require.NotNil(t, r)
		release, r = c.Acquire("gate", "a", t0.Add(16*time.Second))
		require.Nil(t, r)
		release()
	})

	t.Run("scopes are independent", func(t *testing.T) {
		c := NewCooldown(0, 0, 0)
		_, r := c.Acquire("gate-1", "a", t0)
		require.Nil(t, r)
		_, r = c.Acquire("gate-2", "a", t0)
		assert.Nil(t, r)
	})

	t.Run("bounded", func(t *testing.T) {
		c := NewCooldown(time.Second, time.Second, 4)
		for i := range 10 {
			release, r := c.Acquire(fmt.Sprintf("gate-%d", i), "a", t0)
			require.Nil(t, r)
			release()
		}
		assert.LessOrEqual(t, c.Len(), 4)
	})
}

func TestCooldownAdmitsOneConcurrentScan(t *testing.T) {
	c := NewCooldown(0, 0, 0)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	results := testutil.RunConcurrentCollect(50, func(idx int) bool {
		_, r := c.Acquire("gate", fmt.Sprintf("token-%d", idx), now)
		return r == nil
	})

	admitted := 0
	for _, ok := range results {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
}
