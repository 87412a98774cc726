package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	AdminToken       string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	// RunID keeps device ids and mobiles unique across runs against a
	// long-lived server.
	RunID         string
	DeviceTokens  map[string]string
	Credentials   map[string]string
	CredentialIDs map[string]string
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &TestContext{
		BaseURL:       baseURL,
		AdminToken:    os.Getenv("QRPASS_SERVER_ADMIN_TOKEN"),
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		RunID:         fmt.Sprintf("%06d", time.Now().UnixNano()%1_000_000),
		DeviceTokens:  map[string]string{},
		Credentials:   map[string]string{},
		CredentialIDs: map[string]string{},
	}
}

// Do sends a request with an optional JSON body and stores the response.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any, headers map[string]string) error {
	return tc.Do(http.MethodPost, path, body, headers)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

// GetResponseField extracts a top-level field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}
	return false
}

// DeviceID scopes a scenario device name to this run.
func (tc *TestContext) DeviceID(name string) string {
	return "e2e-" + name + "-" + tc.RunID
}

// Mobile builds a 10 digit mobile number unique to this run from a 4 digit suffix.
func (tc *TestContext) Mobile(suffix string) string {
	return tc.RunID + suffix
}

func (tc *TestContext) GetAdminToken() string {
	return tc.AdminToken
}

func (tc *TestContext) DeviceToken(name string) string {
	return tc.DeviceTokens[name]
}

func (tc *TestContext) SetDeviceToken(name, token string) {
	tc.DeviceTokens[name] = token
}

func (tc *TestContext) CredentialToken(owner string) string {
	return tc.Credentials[owner]
}

func (tc *TestContext) CredentialID(owner string) string {
	return tc.CredentialIDs[owner]
}

func (tc *TestContext) SetCredential(owner, id, token string) {
	tc.CredentialIDs[owner] = id
	tc.Credentials[owner] = token
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}
