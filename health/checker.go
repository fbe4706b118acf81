// Package health provides health check utilities.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carefinder/carefinder/resilience"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) error

// Check represents a single health check.
type Check struct {
	Name     string
	CheckFn  CheckFunc
	Critical bool // If true, failure means the service is unhealthy
}

// CheckResult represents the result of a health check.
type CheckResult struct {
	Name    string  `json:"name"`
	Status  Status  `json:"status"`
	Message string  `json:"message,omitempty"`
	Latency float64 `json:"latency_ms"`
}

// HealthResponse is the response for health endpoints.
type HealthResponse struct {
	Status    Status        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []CheckResult `json:"checks,omitempty"`
}

// Checker manages health checks.
type Checker struct {
	checks  []Check
	version string
	timeout time.Duration
	mu      sync.RWMutex
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		checks:  make([]Check, 0),
		version: version,
		timeout: 5 * time.Second,
	}
}

// AddCheck adds a health check.
func (c *Checker) AddCheck(name string, fn CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks = append(c.checks, Check{
		Name:     name,
		CheckFn:  fn,
		Critical: critical,
	})
}

// Check runs all health checks concurrently. A failing critical check makes
// the service unhealthy; a failing non-critical check degrades it.
func (c *Checker) Check(ctx context.Context) HealthResponse {
	c.mu.RLock()
	checks := append([]Check(nil), c.checks...)
	c.mu.RUnlock()

	results := make([]CheckResult, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()

			start := time.Now()
			err := check.CheckFn(ctx)

			results[i] = CheckResult{
				Name:    check.Name,
				Status:  StatusHealthy,
				Latency: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				results[i].Status = StatusUnhealthy
				results[i].Message = err.Error()
			}
		}(i, check)
	}
	wg.Wait()

	overall := StatusHealthy
	for i, r := range results {
		if r.Status == StatusHealthy {
			continue
		}
		if checks[i].Critical {
			overall = StatusUnhealthy
			break
		}
		overall = StatusDegraded
	}

	return HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
		Checks:    results,
	}
}

// LivenessHandler returns an HTTP handler for liveness checks.
// Liveness just checks if the service is running.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessHandler returns an HTTP handler for readiness checks.
// Readiness checks if the service is ready to accept traffic.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()

		response := c.Check(ctx)

		w.Header().Set("Content-Type", "application/json")

		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// RedisCheck creates a health check for a Redis connection.
func RedisCheck(client redis.UniversalClient, timeout time.Duration) CheckFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// CircuitBreakerCheck fails while any registered breaker is open. Searches
// still answer from the static dataset in that state, so callers usually
// register it as non-critical.
func CircuitBreakerCheck(registry *resilience.CircuitBreakerRegistry) CheckFunc {
	return func(ctx context.Context) error {
		var open []string
		for _, m := range registry.AllMetrics() {
			if m.State == resilience.StateOpen.String() {
				open = append(open, m.Name)
			}
		}
		if len(open) > 0 {
			return fmt.Errorf("circuit open: %s", strings.Join(open, ", "))
		}
		return nil
	}
}

// MinimumCheck fails when a counted resource holds fewer than min entries,
// e.g. an empty fallback dataset.
func MinimumCheck(what string, count func() int, min int) CheckFunc {
	return func(ctx context.Context) error {
		if n := count(); n < min {
			return fmt.Errorf("%s: have %d, need at least %d", what, n, min)
		}
		return nil
	}
}
