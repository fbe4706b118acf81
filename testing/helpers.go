// Package testing provides test utilities and helpers.
package testing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// TestContext creates a context with a timeout for testing.
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout creates a context with a custom timeout.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// HTTPTestRequest builds a request for handler tests.
type HTTPTestRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
}

// NewHTTPTestRequest creates a new HTTP test request.
func NewHTTPTestRequest(method, path string) *HTTPTestRequest {
	return &HTTPTestRequest{
		Method:  method,
		Path:    path,
		Query:   url.Values{},
		Headers: make(map[string]string),
	}
}

// WithQuery adds a query parameter.
func (r *HTTPTestRequest) WithQuery(key, value string) *HTTPTestRequest {
	r.Query.Add(key, value)
	return r
}

// WithHeader adds a header to the request.
func (r *HTTPTestRequest) WithHeader(key, value string) *HTTPTestRequest {
	r.Headers[key] = value
	return r
}

// Build builds the HTTP request.
func (r *HTTPTestRequest) Build(t *testing.T) *http.Request {
	t.Helper()
	target := r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}
	req := httptest.NewRequest(r.Method, target, nil)
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	return req
}

// HTTPTestResponse wraps httptest.ResponseRecorder with helper methods.
type HTTPTestResponse struct {
	*httptest.ResponseRecorder
	t *testing.T
}

// ExecuteRequest executes a request against a handler.
func ExecuteRequest(t *testing.T, handler http.Handler, req *http.Request) *HTTPTestResponse {
	t.Helper()
	resp := &HTTPTestResponse{ResponseRecorder: httptest.NewRecorder(), t: t}
	handler.ServeHTTP(resp, req)
	return resp
}

// AssertStatus asserts the response status code.
func (r *HTTPTestResponse) AssertStatus(expected int) *HTTPTestResponse {
	r.t.Helper()
	if r.Code != expected {
		r.t.Errorf("expected status %d, got %d: %s", expected, r.Code, r.Body.String())
	}
	return r
}

// AssertOK asserts status 200.
func (r *HTTPTestResponse) AssertOK() *HTTPTestResponse {
	r.t.Helper()
	return r.AssertStatus(http.StatusOK)
}

// AssertBadRequest asserts status 400.
func (r *HTTPTestResponse) AssertBadRequest() *HTTPTestResponse {
	r.t.Helper()
	return r.AssertStatus(http.StatusBadRequest)
}

// AssertHeader asserts a response header value.
func (r *HTTPTestResponse) AssertHeader(key, expected string) *HTTPTestResponse {
	r.t.Helper()
	if got := r.Header().Get(key); got != expected {
		r.t.Errorf("header %s: expected %q, got %q", key, expected, got)
	}
	return r
}

// DecodeJSON decodes the response body as JSON.
func (r *HTTPTestResponse) DecodeJSON(v any) *HTTPTestResponse {
	r.t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		r.t.Fatalf("failed to decode JSON: %v", err)
	}
	return r
}

