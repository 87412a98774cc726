package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"qrpass/pkg/requestcontext"
)

type contextKeyActor struct{}

// GetActor returns the admin actor recorded for audit attribution, or "".
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(contextKeyActor{}).(string); ok {
		return actor
	}
	return ""
}

// RequireAdminToken guards operator endpoints behind X-Admin-Token.
// An empty expected token rejects every request.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			if actor := r.Header.Get("X-Admin-Actor"); actor != "" {
				ctx = context.WithValue(ctx, contextKeyActor{}, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
