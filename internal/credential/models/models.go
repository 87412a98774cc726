package models

import "time"

// StoredStatus is the persisted status. Only Active and Disabled are ever
// written; Used and Expired are derived by EffectiveStatus.
type StoredStatus string

const (
	StoredActive   StoredStatus = "active"
	StoredDisabled StoredStatus = "disabled"
)

func (s StoredStatus) IsValid() bool {
	return s == StoredActive || s == StoredDisabled
}

// Status is the effective status computed from stored fields and a clock reading.
type Status string

const (
	StatusActive   Status = "active"
	StatusUsed     Status = "used"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
	// StatusUnknown is only produced for records with a corrupt stored status.
	StatusUnknown Status = "unknown"
)

// PayloadVersion is embedded in every token payload.
const PayloadVersion = "1.0"

// Credential is an issued attendance credential bound to one owner mobile.
type Credential struct {
	ID                 string
	OwnerName          string
	OwnerMobile        string
	CreatedAt          time.Time
	ExpiryDurationDays int
	StoredStatus       StoredStatus
	UsageCount         int
	LastUsedAt         *time.Time
	Token              string
	Salt               []byte
	IssuingDeviceID    string
	Version            string
}

// ExpiresAt is createdAt plus the expiry duration in whole days.
func (c *Credential) ExpiresAt() time.Time {
	return c.CreatedAt.AddDate(0, 0, c.ExpiryDurationDays)
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		out.LastUsedAt = &t
	}
	if c.Salt != nil {
		out.Salt = append([]byte(nil), c.Salt...)
	}
	return &out
}

// Payload is the metadata a token is bound to.
type Payload struct {
	OwnerName          string `json:"ownerName"`
	OwnerMobile        string `json:"ownerMobile"`
	Timestamp          string `json:"timestamp"`
	ExpiryDurationDays int    `json:"expiryDurationDays"`
	CredentialID       string `json:"credentialId"`
	Version            string `json:"version"`
}

// PayloadOf builds the token payload for c.
func PayloadOf(c *Credential) Payload {
	version := c.Version
	if version == "" {
		version = PayloadVersion
	}
	return Payload{
		OwnerName:          c.OwnerName,
		OwnerMobile:        c.OwnerMobile,
		Timestamp:          c.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExpiryDurationDays: c.ExpiryDurationDays,
		CredentialID:       c.ID,
		Version:            version,
	}
}

// View pairs a credential with its effective status at read time.
type View struct {
	Credential *Credential
	Status     Status
}
