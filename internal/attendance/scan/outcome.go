package scan

import (
	"time"

	"qrpass/internal/attendance/models"
)

// Outcome is the result of one verification: *Accepted or *Rejected.
// The set is closed; switch on the concrete type.
type Outcome interface {
	outcome()
}

// Accepted carries the punch written for the scan.
type Accepted struct {
	Punch *models.Punch
}

// Reason names why a scan was refused.
type Reason string

const (
	ReasonInvalidFormat    Reason = "invalid_format"
	ReasonDisabled         Reason = "disabled"
	ReasonExpired          Reason = "expired"
	ReasonAlreadyUsedToday Reason = "already_used_today"
	ReasonRateLimited      Reason = "rate_limited"
	ReasonUnknown          Reason = "unknown"
	ReasonTransientFailure Reason = "transient_failure"
)

// Rejected describes a refused scan. Err holds the underlying cause for
// TransientFailure and is for logs only.
type Rejected struct {
	Reason     Reason
	Message    string
	RetryAfter time.Duration
	// CredentialID is set once the token resolved to a credential.
	CredentialID string
	// Debounced marks a capture suppressed before any lookup ran.
	Debounced bool
	Err       error
}

func (*Accepted) outcome() {}
func (*Rejected) outcome() {}

var defaultMessages = map[Reason]string{
	ReasonInvalidFormat:    "Invalid QR code",
	ReasonDisabled:         "QR code is disabled",
	ReasonExpired:          "QR code has expired",
	ReasonAlreadyUsedToday: "QR code already used today",
	ReasonRateLimited:      "Please wait before scanning again",
	ReasonUnknown:          "QR code is not active",
	ReasonTransientFailure: "Network error, please try again",
}

// Message returns the user-facing text for reason.
func (r Reason) Message() string {
	if msg, ok := defaultMessages[r]; ok {
		return msg
	}
	return "Scan rejected"
}

func reject(reason Reason) *Rejected {
	return &Rejected{Reason: reason, Message: reason.Message()}
}

func transient(err error) *Rejected {
	return &Rejected{Reason: ReasonTransientFailure, Message: ReasonTransientFailure.Message(), Err: err}
}
