// Package e2e drives a running badguys server through Gherkin scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds per-scenario HTTP state.
type TestContext struct {
	BaseURL       string
	AdminEmail    string
	AdminPassword string
	// RunID makes urls and emails unique per scenario; "{run}" in step
	// arguments expands to it.
	RunID string

	client       *http.Client
	clientIP     string
	accessToken  string
	adminToken   string
	lastStatus   int
	lastBody     []byte
	lastHeaders  http.Header
	lastDuration time.Duration
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears state between scenarios. Each scenario gets its own client IP
// so rate limit buckets do not leak across scenarios.
func (tc *TestContext) Reset(runID, clientIP string) {
	tc.RunID = runID
	tc.clientIP = clientIP
	tc.accessToken = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeaders = nil
}

func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.clientIP != "" {
		req.Header.Set("X-Forwarded-For", tc.clientIP)
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastDuration = time.Since(start)
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

// GetResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var decoded map[string]any
	if err := json.Unmarshal(tc.lastBody, &decoded); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.lastBody)
	}
	v, ok := decoded[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) GetLastResponseStatus() int            { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte           { return tc.lastBody }
func (tc *TestContext) GetLastResponseHeader(k string) string { return tc.lastHeaders.Get(k) }
func (tc *TestContext) GetAccessToken() string                { return tc.accessToken }
func (tc *TestContext) SetAccessToken(token string)           { tc.accessToken = token }
func (tc *TestContext) GetAdminToken() string                 { return tc.adminToken }
func (tc *TestContext) SetAdminToken(token string)            { tc.adminToken = token }

// Expand substitutes the scenario run id into s.
func (tc *TestContext) Expand(s string) string {
	return strings.ReplaceAll(s, "{run}", tc.RunID)
}

func (tc *TestContext) GetLastDuration() time.Duration { return tc.lastDuration }

func (tc *TestContext) AdminLogin() (string, string) { return tc.AdminEmail, tc.AdminPassword }
