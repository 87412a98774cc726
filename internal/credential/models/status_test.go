package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func credential(opts ...func(*Credential)) *Credential {
	c := &Credential{
		ID:                 "cred-1",
		OwnerName:          "Asha Rao",
		OwnerMobile:        "9876543210",
		CreatedAt:          now.AddDate(0, 0, -1),
		ExpiryDurationDays: 7,
		StoredStatus:       StoredActive,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func usedAt(t time.Time) func(*Credential) {
	return func(c *Credential) {
		c.UsageCount = 1
		c.LastUsedAt = &t
	}
}

func TestEffectiveStatus(t *testing.T) {
	tests := []struct {
		name string
		cred *Credential
		want Status
	}{
		{"fresh credential is active", credential(), StatusActive},
		{"created now is active", credential(func(c *Credential) { c.CreatedAt = now }), StatusActive},
		{"used earlier today", credential(usedAt(now.Add(-2 * time.Hour))), StatusUsed},
		{"used yesterday is active again", credential(usedAt(now.AddDate(0, 0, -1))), StatusActive},
		{"usage count without timestamp is active", credential(func(c *Credential) { c.UsageCount = 3 }), StatusActive},
		{"expired", credential(func(c *Credential) {
			c.CreatedAt = now.AddDate(0, 0, -31)
			c.ExpiryDurationDays = 30
		}), StatusExpired},
		{"exactly at expiry instant is not expired", credential(func(c *Credential) {
			c.CreatedAt = now.AddDate(0, 0, -7)
		}), StatusActive},
		{"expired beats used", credential(usedAt(now.Add(-time.Hour)), func(c *Credential) {
			c.CreatedAt = now.AddDate(0, 0, -10)
		}), StatusExpired},
		{"disabled", credential(func(c *Credential) { c.StoredStatus = StoredDisabled }), StatusDisabled},
		{"corrupt stored status", credential(func(c *Credential) { c.StoredStatus = "used" }), StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveStatus(tt.cred, now))
		})
	}
}

func TestDisabledPrecedence(t *testing.T) {
	variants := []*Credential{
		credential(),
		credential(usedAt(now)),
		credential(func(c *Credential) { c.CreatedAt = now.AddDate(-1, 0, 0) }),
		credential(usedAt(now), func(c *Credential) { c.CreatedAt = now.AddDate(0, 0, -90) }),
	}
	for _, c := range variants {
		c.StoredStatus = StoredDisabled
		assert.Equal(t, StatusDisabled, EffectiveStatus(c, now))
	}
}

func TestEffectiveStatusIsIdempotent(t *testing.T) {
	inputs := []*Credential{
		credential(),
		credential(usedAt(now.Add(-time.Minute))),
		credential(func(c *Credential) { c.StoredStatus = StoredDisabled }),
		credential(func(c *Credential) { c.CreatedAt = now.AddDate(0, 0, -8) }),
	}
	for _, c := range inputs {
		snapshot := c.Clone()
		first := EffectiveStatus(c, now)
		second := EffectiveStatus(c, now)
		assert.Equal(t, first, second)
		assert.Equal(t, snapshot, c, "status derivation must not mutate the credential")
	}
}

func TestExpiredScenario(t *testing.T) {
	c := credential(func(c *Credential) {
		c.CreatedAt = now.AddDate(0, 0, -31)
		c.ExpiryDurationDays = 30
	})
	assert.Equal(t, StatusExpired, EffectiveStatus(c, now))
	assert.False(t, IsActive(c, now))
	assert.False(t, IsLive(c, now))
}

func TestIsLive(t *testing.T) {
	assert.True(t, IsLive(credential(), now))
	assert.True(t, IsLive(credential(usedAt(now)), now), "used today still holds the slot")
	assert.False(t, IsActive(credential(usedAt(now)), now))
	assert.False(t, IsLive(credential(func(c *Credential) { c.StoredStatus = StoredDisabled }), now))
}

func TestSameDayUsesNowLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC on the 13th is 01:30 on the 14th in IST.
	lastUsed := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
	nowIST := time.Date(2026, 3, 14, 9, 0, 0, 0, ist)
	assert.True(t, SameDay(lastUsed, nowIST))
	assert.False(t, SameDay(lastUsed, nowIST.In(time.UTC)))
}

func TestStartOfDay(t *testing.T) {
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), StartOfDay(now))
}

func TestCloneIsDeep(t *testing.T) {
	orig := credential(usedAt(now), func(c *Credential) { c.Salt = []byte{1, 2, 3} })
	cp := orig.Clone()
	cp.Salt[0] = 9
	*cp.LastUsedAt = now.Add(time.Hour)
	assert.Equal(t, byte(1), orig.Salt[0])
	assert.Equal(t, now, *orig.LastUsedAt)
}

func TestPayloadOf(t *testing.T) {
	c := credential()
	p := PayloadOf(c)
	assert.Equal(t, "cred-1", p.CredentialID)
	assert.Equal(t, PayloadVersion, p.Version)
	assert.Equal(t, 7, p.ExpiryDurationDays)
	assert.Equal(t, "2026-03-13T10:30:00Z", p.Timestamp)
}
