package testutil

import (
	"time"

	"github.com/google/uuid"

	attmodels "qrpass/internal/attendance/models"
	credmodels "qrpass/internal/credential/models"
)

// TestSecret is a token codec secret for tests only.
var TestSecret = []byte("qrpass-test-secret-0123456789abcdef")

// CredentialBuilder builds credentials for tests.
type CredentialBuilder struct {
	c *credmodels.Credential
}

// NewCredential starts an active 30-day credential created at createdAt.
func NewCredential(createdAt time.Time) *CredentialBuilder {
	return &CredentialBuilder{c: &credmodels.Credential{
		ID:                 uuid.NewString(),
		OwnerName:          "Asha Rao",
		OwnerMobile:        "9876543210",
		CreatedAt:          createdAt,
		ExpiryDurationDays: 30,
		StoredStatus:       credmodels.StoredActive,
		Token:              uuid.NewString(),
		Salt:               []byte("0123456789abcdef"),
		IssuingDeviceID:    "owner-device",
		Version:            credmodels.PayloadVersion,
	}}
}

func (b *CredentialBuilder) WithID(id string) *CredentialBuilder {
	b.c.ID = id
	return b
}

func (b *CredentialBuilder) WithOwner(name, mobile string) *CredentialBuilder {
	b.c.OwnerName = name
	b.c.OwnerMobile = mobile
	return b
}

func (b *CredentialBuilder) WithExpiryDays(days int) *CredentialBuilder {
	b.c.ExpiryDurationDays = days
	return b
}

func (b *CredentialBuilder) Disabled() *CredentialBuilder {
	b.c.StoredStatus = credmodels.StoredDisabled
	return b
}

func (b *CredentialBuilder) UsedAt(at time.Time, count int) *CredentialBuilder {
	b.c.UsageCount = count
	b.c.LastUsedAt = &at
	return b
}

func (b *CredentialBuilder) WithToken(token string) *CredentialBuilder {
	b.c.Token = token
	return b
}

func (b *CredentialBuilder) Build() *credmodels.Credential {
	return b.c.Clone()
}

// NewPunch returns a punch for credentialID at scanTime.
func NewPunch(mobile, credentialID string, scanTime time.Time) *attmodels.Punch {
	return &attmodels.Punch{
		ID:               uuid.NewString(),
		OwnerMobile:      mobile,
		OwnerName:        "Asha Rao",
		ScanTime:         scanTime,
		CredentialID:     credentialID,
		ScanningDeviceID: "gate-1",
		ScannerInfo:      attmodels.DefaultScannerInfo,
	}
}
