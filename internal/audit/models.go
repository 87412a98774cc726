package audit

import "time"

// Event records one security-relevant action. Owner mobiles are stored masked.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	CredentialID string    `json:"credential_id,omitempty"`
	OwnerMobile  string    `json:"owner_mobile,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
}

type Action string

const (
	ActionCredentialIssued      Action = "credential_issued"
	ActionCredentialReactivated Action = "credential_reactivated"
	ActionCredentialDisabled    Action = "credential_disabled"
	ActionCredentialExtended    Action = "credential_extended"
	ActionGenerationRejected    Action = "generation_rejected"
	ActionScanAccepted          Action = "scan_accepted"
	ActionScanRejected          Action = "scan_rejected"
	ActionDuplicatesRemoved     Action = "duplicates_removed"
	ActionDeviceRegistered      Action = "device_registered"
	ActionDeviceApproved        Action = "device_approved"
	ActionDeviceRejected        Action = "device_rejected"
)
