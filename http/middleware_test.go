package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/logging"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name           string
		existingID     string
		expectGenerate bool
	}{
		{
			name:           "generates new ID when none exists",
			existingID:     "",
			expectGenerate: true,
		},
		{
			name:           "uses existing ID from header",
			existingID:     "test-request-id-123",
			expectGenerate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromCtx string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromCtx = RequestIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.existingID != "" {
				req.Header.Set(RequestIDHeader, tt.existingID)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			requestID := w.Header().Get(RequestIDHeader)
			if requestID == "" {
				t.Fatal("X-Request-ID header should be set")
			}
			if fromCtx != requestID {
				t.Errorf("context ID %q != header ID %q", fromCtx, requestID)
			}
			if !tt.expectGenerate && requestID != tt.existingID {
				t.Errorf("expected request ID %s, got %s", tt.existingID, requestID)
			}
		})
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("id = %q, want empty", id)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		method         string
		expectOrigin   string
		expectStatus   int
		expectNext     bool
	}{
		{
			name:           "allows wildcard origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "https://example.com",
			method:         http.MethodGet,
			expectOrigin:   "https://example.com",
			expectStatus:   http.StatusOK,
			expectNext:     true,
		},
		{
			name:           "blocks non-allowed origin",
			allowedOrigins: []string{"https://example.com"},
			requestOrigin:  "https://evil.com",
			method:         http.MethodGet,
			expectOrigin:   "",
			expectStatus:   http.StatusOK,
			expectNext:     true,
		},
		{
			name:           "answers preflight without calling next",
			allowedOrigins: []string{"https://example.com"},
			requestOrigin:  "https://example.com",
			method:         http.MethodOptions,
			expectOrigin:   "https://example.com",
			expectStatus:   http.StatusNoContent,
			expectNext:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := CORS(tt.allowedOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.requestOrigin)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectStatus {
				t.Errorf("expected status %d, got %d", tt.expectStatus, w.Code)
			}
			if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != tt.expectOrigin {
				t.Errorf("expected origin %q, got %q", tt.expectOrigin, origin)
			}
			if nextCalled != tt.expectNext {
				t.Errorf("next called = %v, want %v", nextCalled, tt.expectNext)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
				t.Errorf("allow methods = %q", got)
			}
		})
	}
}

func TestLogger_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerWithWriter("info", &buf)

	handler := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logging.FromContext(r.Context()) == nil {
			t.Error("request logger missing from context")
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/facilities/nearby?lat=1", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if entry["msg"] != "request completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["request_id"] != "req-7" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["status"] != float64(http.StatusAccepted) {
		t.Errorf("status = %v", entry["status"])
	}
	if entry["bytes"] != float64(len("queued")) {
		t.Errorf("bytes = %v", entry["bytes"])
	}
}

func TestRecoverer(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		expectStatus int
	}{
		{
			name: "recovers from panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("test panic")
			},
			expectStatus: http.StatusInternalServerError,
		},
		{
			name: "normal execution",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			expectStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Recoverer(logging.Nop())(tt.handler)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			if w.Code != tt.expectStatus {
				t.Errorf("expected status %d, got %d", tt.expectStatus, w.Code)
			}
			if tt.expectStatus == http.StatusInternalServerError {
				var body errors.ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Error.Code != errors.CodeInternal {
					t.Errorf("code = %s", body.Error.Code)
				}
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

type budgetLimiter struct {
	mu     sync.Mutex
	budget int
	keys   []string
}

func (l *budgetLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.budget == 0 {
		return false
	}
	l.budget--
	return true
}

func TestRateLimit(t *testing.T) {
	limiter := &budgetLimiter{budget: 2}
	handler := RateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/locations/reverse", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status %d, want %d", i, codes[i], want[i])
		}
	}
	for _, k := range limiter.keys {
		if k != "client:203.0.113.9" {
			t.Errorf("limiter key = %q", k)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"no-port", "no-port"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := ClientIP(req); !strings.EqualFold(got, tt.want) {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
