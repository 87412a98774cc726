package handler

import (
	"time"

	"qrpass/internal/credential/models"
)

type GenerateRequest struct {
	Name       string `json:"name"`
	Mobile     string `json:"mobile"`
	ExpiryDays int    `json:"expiry_days"`
}

type ExtendRequest struct {
	Days int `json:"days" validate:"min=1,max=90"`
}

type CredentialResponse struct {
	ID              string     `json:"id"`
	OwnerName       string     `json:"owner_name"`
	OwnerMobile     string     `json:"owner_mobile"`
	Token           string     `json:"token"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ExpiryDays      int        `json:"expiry_days"`
	UsageCount      int        `json:"usage_count"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	IssuingDeviceID string     `json:"issuing_device_id,omitempty"`
}

type ListResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
	Live        int                  `json:"live"`
}

type ActiveCountResponse struct {
	Mobile string `json:"mobile"`
	Active int    `json:"active"`
}

func toResponse(c *models.Credential, status models.Status) CredentialResponse {
	return CredentialResponse{
		ID:              c.ID,
		OwnerName:       c.OwnerName,
		OwnerMobile:     c.OwnerMobile,
		Token:           c.Token,
		Status:          string(status),
		CreatedAt:       c.CreatedAt,
		ExpiresAt:       c.ExpiresAt(),
		ExpiryDays:      c.ExpiryDurationDays,
		UsageCount:      c.UsageCount,
		LastUsedAt:      c.LastUsedAt,
		IssuingDeviceID: c.IssuingDeviceID,
	}
}
