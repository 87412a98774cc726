package sentinel

import "errors"

// Store-level errors. Stores return these (optionally wrapped) and services
// translate them into typed results or domain errors exactly once.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
