package httputil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanBody struct {
	Token string `json:"token" validate:"required,notblank"`
}

type ownerBody struct {
	Mobile string `json:"mobile" validate:"required,mobile"`
	Days   int    `json:"days" validate:"min=1,max=90"`
}

func (b *ownerBody) Normalize() {
	b.Mobile = strings.TrimSpace(b.Mobile)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes body", func(t *testing.T) {
		w := httptest.NewRecorder()
		got, ok := DecodeJSON[scanBody](w, post(`{"token":"abc"}`), discardLogger())
		require.True(t, ok)
		assert.Equal(t, "abc", got.Token)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		got, ok := DecodeJSON[scanBody](w, post(`{token`), discardLogger())
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", errorCode(t, w))
	})

	t.Run("unknown field", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeJSON[scanBody](w, post(`{"token":"abc","extra":1}`), discardLogger())
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		w := httptest.NewRecorder()
		got, ok := DecodeAndPrepare[ownerBody](w, post(`{"mobile":" 9876543210 ","days":7}`), discardLogger())
		require.True(t, ok)
		assert.Equal(t, "9876543210", got.Mobile)
	})

	t.Run("validation failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[ownerBody](w, post(`{"mobile":"12345","days":7}`), discardLogger())
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", errorCode(t, w))
		assert.Contains(t, w.Body.String(), "mobile must be exactly 10 digits")
	})

	t.Run("blank token", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[scanBody](w, post(`{"token":"   "}`), discardLogger())
		assert.False(t, ok)
		assert.Contains(t, w.Body.String(), "token must not be blank")
	})
}
