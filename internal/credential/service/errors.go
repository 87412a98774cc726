package service

import (
	"fmt"

	devicemodels "qrpass/internal/device/models"
	dErrors "qrpass/pkg/domain-errors"
)

// GenerationError is the closed set of reasons Generate can fail with.
// Only the variants in this file implement it.
type GenerationError interface {
	error
	generationError()
}

// ApprovalReason names why the issuing device was refused.
type ApprovalReason string

const (
	ApprovalPending       ApprovalReason = "pending"
	ApprovalRejected      ApprovalReason = "rejected"
	ApprovalNotRegistered ApprovalReason = "not_registered"
	ApprovalCheckFailed   ApprovalReason = "check_failed"
)

// ApprovalError: the issuing device is not approved.
type ApprovalError struct {
	Reason ApprovalReason
	Err    error
}

func (e *ApprovalError) Error() string {
	switch e.Reason {
	case ApprovalPending:
		return "Device is not approved for QR code generation. Please wait for admin approval."
	case ApprovalRejected:
		return "Device access has been rejected. Please contact support for assistance."
	case ApprovalNotRegistered:
		return "Device is not registered. Please restart the app to register your device."
	default:
		return "Unable to verify device approval. Please check your connection and try again."
	}
}

func (e *ApprovalError) Unwrap() error { return e.Err }

// ValidationError: a request field is out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ActiveCredentialExists: the owner already holds a live credential.
type ActiveCredentialExists struct {
	CredentialID string
}

func (e *ActiveCredentialExists) Error() string {
	return "An active QR code already exists for this mobile number. Please disable it first or wait for it to expire."
}

// RateLimitedError: the owner is at the live credential cap.
type RateLimitedError struct {
	Active int
	Limit  int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Maximum %d active QR codes allowed per mobile number.", e.Limit)
}

// IssuanceFailed: the token codec could not mint a token. Retrying draws new randomness.
type IssuanceFailed struct {
	Err error
}

func (e *IssuanceFailed) Error() string {
	return "Could not issue the QR code. Please try again."
}

func (e *IssuanceFailed) Unwrap() error { return e.Err }

// TransientFailure: a store read or write failed. Safe to retry.
type TransientFailure struct {
	Err error
}

func (e *TransientFailure) Error() string {
	return "Service temporarily unavailable. Please try again."
}

func (e *TransientFailure) Unwrap() error { return e.Err }

func (*ApprovalError) generationError()          {}
func (*ValidationError) generationError()        {}
func (*ActiveCredentialExists) generationError() {}
func (*RateLimitedError) generationError()       {}
func (*IssuanceFailed) generationError()         {}
func (*TransientFailure) generationError()       {}

// approvalFailure maps a non-approved decision to its error. Unrecognized
// decisions are reported as a failed check.
func approvalFailure(decision devicemodels.Decision) *ApprovalError {
	switch decision {
	case devicemodels.DecisionPending:
		return &ApprovalError{Reason: ApprovalPending}
	case devicemodels.DecisionRejected:
		return &ApprovalError{Reason: ApprovalRejected}
	case devicemodels.DecisionNotRegistered:
		return &ApprovalError{Reason: ApprovalNotRegistered}
	default:
		return &ApprovalError{Reason: ApprovalCheckFailed}
	}
}

// ToDomainError converts a GenerationError for transport layers.
func ToDomainError(err GenerationError) error {
	switch e := err.(type) {
	case *ApprovalError:
		if e.Reason == ApprovalCheckFailed {
			return dErrors.Wrap(e, dErrors.CodeUnavailable, e.Error())
		}
		return &dErrors.Error{Code: dErrors.CodeForbidden, Message: e.Error(), Err: e}
	case *ValidationError:
		return &dErrors.Error{Code: dErrors.CodeValidation, Message: e.Error(), Err: e}
	case *ActiveCredentialExists:
		return &dErrors.Error{Code: dErrors.CodeConflict, Message: e.Error(), Err: e}
	case *RateLimitedError:
		return &dErrors.Error{Code: dErrors.CodeRateLimited, Message: e.Error(), Err: e}
	case *IssuanceFailed:
		return &dErrors.Error{Code: dErrors.CodeInternal, Message: e.Error(), Err: e}
	case *TransientFailure:
		return &dErrors.Error{Code: dErrors.CodeUnavailable, Message: e.Error(), Err: e}
	default:
		return &dErrors.Error{Code: dErrors.CodeInternal, Message: "unexpected generation failure", Err: err}
	}
}
