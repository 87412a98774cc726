package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "qrpass/pkg/domain-errors"
	"qrpass/pkg/requestcontext"
	"qrpass/pkg/validation"
)

// Normalizable request types trim and canonicalize their fields before validation.
type Normalizable interface {
	Normalize()
}

// DecodeJSON decodes the request body into T. Unknown fields are rejected.
// On failure it writes a 400 and returns false.
//
//	req, ok := httputil.DecodeJSON[GenerateRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// DecodeAndPrepare decodes T, normalizes it when it implements Normalizable
// and runs the struct tag validator.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if n, ok := any(req).(Normalizable); ok {
		n.Normalize()
	}
	if err := validation.Validate(req); err != nil {
		logger.WarnContext(r.Context(), "invalid request",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
