package handler

import (
	"strings"
	"time"

	"qrpass/internal/device/models"
	"qrpass/pkg/platform/middleware/auth"
)

type RegisterRequest struct {
	DeviceID     string `json:"device_id" validate:"required,notblank,max=128"`
	Model        string `json:"model" validate:"max=128"`
	Manufacturer string `json:"manufacturer" validate:"max=128"`
	Platform     string `json:"platform" validate:"max=64"`
	OSVersion    string `json:"os_version" validate:"max=64"`
	Role         string `json:"role" validate:"omitempty,oneof=owner scanner"`
}

func (r *RegisterRequest) Normalize() {
	r.DeviceID = strings.TrimSpace(r.DeviceID)
	r.Model = strings.TrimSpace(r.Model)
	r.Manufacturer = strings.TrimSpace(r.Manufacturer)
	r.Platform = strings.TrimSpace(r.Platform)
	r.OSVersion = strings.TrimSpace(r.OSVersion)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	if r.Role == "" {
		r.Role = auth.RoleOwner
	}
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

func (r *RejectRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

type DeviceResponse struct {
	DeviceID       string     `json:"device_id"`
	Status         string     `json:"status"`
	Model          string     `json:"model,omitempty"`
	Manufacturer   string     `json:"manufacturer,omitempty"`
	Platform       string     `json:"platform,omitempty"`
	OSVersion      string     `json:"os_version,omitempty"`
	RegisteredAt   time.Time  `json:"registered_at"`
	LastActiveAt   time.Time  `json:"last_active_at"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	RejectedReason string     `json:"rejected_reason,omitempty"`
}

type RegisterResponse struct {
	Device      DeviceResponse `json:"device"`
	Decision    string         `json:"decision"`
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
}

type ApprovalResponse struct {
	DeviceID string `json:"device_id"`
	Decision string `json:"decision"`
	Approved bool   `json:"approved"`
}

type ListResponse struct {
	Devices []DeviceResponse `json:"devices"`
}

func toResponse(d *models.Device) DeviceResponse {
	return DeviceResponse{
		DeviceID:       d.DeviceID,
		Status:         string(d.Status),
		Model:          d.Model,
		Manufacturer:   d.Manufacturer,
		Platform:       d.Platform,
		OSVersion:      d.OSVersion,
		RegisteredAt:   d.RegisteredAt,
		LastActiveAt:   d.LastActiveAt,
		ApprovedAt:     d.ApprovedAt,
		RejectedReason: d.RejectedReason,
	}
}
