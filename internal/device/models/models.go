package models

import "time"

// Decision is the approval gate's answer for a device.
type Decision string

const (
	DecisionApproved      Decision = "approved"
	DecisionPending       Decision = "pending"
	DecisionRejected      Decision = "rejected"
	DecisionNotRegistered Decision = "not_registered"
)

// Status is the persisted approval state of a registered device.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision maps a stored status to a gate decision. Unknown values are
// treated as pending so that a corrupt record never grants access.
func (s Status) Decision() Decision {
	switch s {
	case StatusApproved:
		return DecisionApproved
	case StatusRejected:
		return DecisionRejected
	default:
		return DecisionPending
	}
}

// Device is one registered phone or scanner.
type Device struct {
	DeviceID       string
	Status         Status
	Model          string
	Manufacturer   string
	Platform       string
	OSVersion      string
	RegisteredAt   time.Time
	LastActiveAt   time.Time
	ApprovedAt     *time.Time
	RejectedReason string
}

func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	out := *d
	if d.ApprovedAt != nil {
		t := *d.ApprovedAt
		out.ApprovedAt = &t
	}
	return &out
}
