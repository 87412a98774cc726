package request

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpass/pkg/requestcontext"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates uuid when header missing", func(t *testing.T) {
		var captured string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = requestcontext.RequestID(r.Context())
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scans", nil))

		assert.Len(t, captured, 36)
		assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps valid client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/scans", nil)
		req.Header.Set("X-Request-ID", "gate-7.scan_42")
		rec := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, "gate-7.scan_42", rec.Header().Get("X-Request-ID"))
	})

	t.Run("replaces oversized or unsafe ids", func(t *testing.T) {
		for _, bad := range []string{strings.Repeat("a", MaxRequestIDLength+1), "id with spaces", "x\ny"} {
			req := httptest.NewRequest(http.MethodGet, "/scans", nil)
			req.Header.Set("X-Request-ID", bad)
			rec := httptest.NewRecorder()
			RequestID(okHandler()).ServeHTTP(rec, req)
			assert.NotEqual(t, bad, rec.Header().Get("X-Request-ID"))
			assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
		}
	})
}

func TestClientIP(t *testing.T) {
	capture := func(trust bool, remote, fwd string) string {
		var ip string
		h := ClientIP(trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip = requestcontext.ClientIP(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if fwd != "" {
			req.Header.Set("X-Forwarded-For", fwd)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		return ip
	}

	assert.Equal(t, "10.0.0.5", capture(false, "10.0.0.5:4312", "203.0.113.9"))
	assert.Equal(t, "203.0.113.9", capture(true, "10.0.0.5:4312", "203.0.113.9, 10.0.0.1"))
	assert.Equal(t, "10.0.0.5", capture(true, "10.0.0.5:4312", "garbage"))
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestContentTypeJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, "application/json", http.StatusOK},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"no content type", http.MethodPost, "", http.StatusOK},
		{"get ignores header", http.MethodGet, "text/plain", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/credentials", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			ContentTypeJSON(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	h := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	req := httptest.NewRequest(http.MethodPost, "/scans", strings.NewReader(strings.Repeat("x", 64)))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Error(t, readErr)
}
