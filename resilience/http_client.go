package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/carefinder/carefinder/errors"
)

// ResilientHTTPClient wraps an HTTP client with retries and circuit breaker
// protection. Every request is retried, so only idempotent provider reads
// should go through it.
type ResilientHTTPClient struct {
	client         *http.Client
	circuitBreaker *CircuitBreaker
	retries        int
	retryDelay     time.Duration
}

// ResilientHTTPClientConfig configures a resilient HTTP client.
type ResilientHTTPClientConfig struct {
	// Name for the circuit breaker.
	Name string

	// Timeout for a single HTTP attempt.
	Timeout time.Duration

	// Retries is the number of retry attempts after the first.
	Retries int

	// RetryDelay is the initial delay between retries; it grows exponentially.
	RetryDelay time.Duration

	// Transport overrides the default transport (optional).
	Transport http.RoundTripper

	// CircuitBreaker is shared with other clients when set; otherwise one is
	// created from CircuitBreakerConfig or the defaults.
	CircuitBreaker       *CircuitBreaker
	CircuitBreakerConfig *CircuitBreakerConfig
}

// DefaultResilientHTTPClientConfig returns defaults suited to map provider calls.
func DefaultResilientHTTPClientConfig(name string) ResilientHTTPClientConfig {
	return ResilientHTTPClientConfig{
		Name:       name,
		Timeout:    10 * time.Second,
		Retries:    2,
		RetryDelay: 100 * time.Millisecond,
	}
}

// NewResilientHTTPClient creates a new resilient HTTP client.
func NewResilientHTTPClient(config ResilientHTTPClientConfig) *ResilientHTTPClient {
	cb := config.CircuitBreaker
	if cb == nil {
		cbConfig := DefaultCircuitBreakerConfig(config.Name)
		if config.CircuitBreakerConfig != nil {
			cbConfig = *config.CircuitBreakerConfig
		}
		cb = NewCircuitBreaker(cbConfig)
	}

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 100 * time.Millisecond
	}
	if config.Retries < 0 {
		config.Retries = 0
	}

	return &ResilientHTTPClient{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		circuitBreaker: cb,
		retries:        config.Retries,
		retryDelay:     config.RetryDelay,
	}
}

// StatusError reports a non-retryable or exhausted HTTP status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// Get performs an HTTP GET with retry and circuit breaker protection. A
// response is returned only for statuses below 500 other than 429; the
// caller closes its body.
func (c *ResilientHTTPClient) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, header, nil)
}

// Do sends a request with retry and circuit breaker protection. body is
// replayed on every attempt.
func (c *ResilientHTTPClient) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	var resp *http.Response

	op := func() error {
		err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return backoff.Permanent(err)
			}
			for k, v := range header {
				req.Header[k] = v
			}

			r, err := c.client.Do(req)
			if err != nil {
				return err
			}

			if retryableStatus(r.StatusCode) {
				// Drain and close body to allow connection reuse
				_, _ = io.Copy(io.Discard, r.Body)
				r.Body.Close()
				return &StatusError{StatusCode: r.StatusCode}
			}

			resp = r
			return nil
		})

		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrCircuitOpen), ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// CircuitBreaker returns the underlying circuit breaker.
func (c *ResilientHTTPClient) CircuitBreaker() *CircuitBreaker {
	return c.circuitBreaker
}

// ClassifyError maps a Get failure onto the application error codes. Only
// an open breaker or a host that cannot be resolved or dialed is
// unavailable. 429 is rate limited, a deadline is a timeout, and exhausted
// 5xx or a broken connection mid-request is a provider error.
func ClassifyError(err error, provider string) error {
	var se *StatusError
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return apperrors.UnavailableWrap(err, provider+" circuit open")
	case errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests:
		return apperrors.RateLimited(provider + " rate limited")
	case errors.As(err, &se):
		return apperrors.Provider(fmt.Sprintf("%d", se.StatusCode), provider+" server error")
	case errors.Is(err, context.Canceled):
		return err
	case unreachable(err):
		return apperrors.UnavailableWrap(err, provider+" unreachable")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.CodeTimeout, provider+" request timed out")
	}
	return apperrors.Wrap(err, apperrors.CodeProvider, provider+" request failed")
}

// unreachable reports whether err shows the host could not be resolved or
// no connection could be opened.
func unreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsTimeout
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout()
}
