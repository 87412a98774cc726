package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"qrpass/pkg/requestcontext"
)

// Device roles carried in the token.
const (
	RoleOwner   = "owner"
	RoleScanner = "scanner"
)

// TokenValidator validates a bearer token and returns its device claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*DeviceClaims, error)
}

// DeviceClaims are the claims the middleware needs from a device token.
type DeviceClaims struct {
	DeviceID string
	Role     string
}

type contextKeyDeviceID struct{}
type contextKeyRole struct{}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireDevice validates the bearer token and stores the device id and role in context.
func RequireDevice(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil || claims.DeviceID == "" {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, contextKeyDeviceID{}, claims.DeviceID)
			ctx = context.WithValue(ctx, contextKeyRole{}, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose device role is not one of roles.
// Must run after RequireDevice.
func RequireRole(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := GetRole(ctx)
			if !slices.Contains(roles, role) {
				logger.WarnContext(ctx, "forbidden - device role not allowed",
					"role", role,
					"device_id", GetDeviceID(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Device role not allowed for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetDeviceID returns the authenticated device id, or "".
func GetDeviceID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyDeviceID{}).(string); ok {
		return v
	}
	return ""
}

// GetRole returns the authenticated device role, or "".
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRole{}).(string); ok {
		return v
	}
	return ""
}

// WithDevice injects device identity into ctx, for tests and internal callers.
func WithDevice(ctx context.Context, deviceID, role string) context.Context {
	ctx = context.WithValue(ctx, contextKeyDeviceID{}, deviceID)
	return context.WithValue(ctx, contextKeyRole{}, role)
}
