package models

import "time"

// EffectiveStatus derives the status of c at now. It is pure: callers pass
// the clock reading, and identical inputs always give identical output.
//
// Precedence: Disabled, then Expired, then Used (used earlier on now's
// calendar day), then Active.
func EffectiveStatus(c *Credential, now time.Time) Status {
	switch c.StoredStatus {
	case StoredDisabled:
		return StatusDisabled
	case StoredActive:
	default:
		return StatusUnknown
	}
	if IsExpired(c, now) {
		return StatusExpired
	}
	if c.UsageCount > 0 && c.LastUsedAt != nil && SameDay(*c.LastUsedAt, now) {
		return StatusUsed
	}
	return StatusActive
}

// IsActive reports whether c is effectively Active (not used today).
func IsActive(c *Credential, now time.Time) bool {
	return EffectiveStatus(c, now) == StatusActive
}

// IsExpired reports whether now is strictly after the expiry instant.
func IsExpired(c *Credential, now time.Time) bool {
	return now.After(c.ExpiresAt())
}

// IsLive reports whether c still occupies its owner's active slot: stored
// Active and not expired, regardless of today's usage. Generation dedup and
// the per-owner cap count live credentials so that a credential scanned
// earlier today still blocks minting a second one.
func IsLive(c *Credential, now time.Time) bool {
	return c.StoredStatus == StoredActive && !IsExpired(c, now)
}

// SameDay reports whether a and b fall on the same calendar day in b's location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
