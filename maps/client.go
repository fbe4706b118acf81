// Package maps provides a Google Maps Platform adapter for place search,
// route matrices and reverse geocoding. It implements search.Provider and
// geocoding.Provider.
package maps

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/geocoding"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/resilience"
	"github.com/carefinder/carefinder/search"
)

const (
	// Google Maps Platform API endpoints
	defaultPlacesURL  = "https://maps.googleapis.com/maps/api/place"
	defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultMatrixURL  = "https://routes.googleapis.com/distanceMatrix/v2:computeRouteMatrix"

	defaultCacheTTL = 24 * time.Hour
	providerName    = "google maps"
)

var (
	_ search.Provider    = (*Client)(nil)
	_ geocoding.Provider = (*Client)(nil)
)

// TravelMode specifies the travel mode for routing.
type TravelMode string

const (
	TravelModeDrive TravelMode = "DRIVE"
	TravelModeWalk  TravelMode = "WALK"
)

// Config holds Google Maps adapter configuration.
type Config struct {
	// APIKey is the server-side API key.
	APIKey string

	// Language for names and addresses in responses.
	Language string

	// Region biases results towards a ccTLD country code.
	Region string

	// TravelMode for travel time estimates.
	TravelMode TravelMode

	// CacheTTL for cached place and geocode responses.
	CacheTTL time.Duration

	// Endpoint overrides, for tests.
	PlacesURL  string
	GeocodeURL string
	MatrixURL  string
}

// DefaultConfig returns a configuration for Arabic results biased to Egypt.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:     apiKey,
		Language:   "ar",
		Region:     "eg",
		TravelMode: TravelModeDrive,
		CacheTTL:   defaultCacheTTL,
		PlacesURL:  defaultPlacesURL,
		GeocodeURL: defaultGeocodeURL,
		MatrixURL:  defaultMatrixURL,
	}
}

// Client is the Google Maps Platform client.
type Client struct {
	config  Config
	http    *resilience.ResilientHTTPClient
	logger  *logging.Logger
	tracer  *Tracer
	cache   Cache
	limiter RateLimiter
}

// NewClient creates a new Google Maps client. cache, limiter and tracer may
// be nil.
func NewClient(config Config, httpClient *resilience.ResilientHTTPClient, logger *logging.Logger, tracer *Tracer, cache Cache, limiter RateLimiter) *Client {
	def := DefaultConfig(config.APIKey)
	if config.PlacesURL == "" {
		config.PlacesURL = def.PlacesURL
	}
	if config.GeocodeURL == "" {
		config.GeocodeURL = def.GeocodeURL
	}
	if config.MatrixURL == "" {
		config.MatrixURL = def.MatrixURL
	}
	if config.TravelMode == "" {
		config.TravelMode = def.TravelMode
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = def.CacheTTL
	}
	if httpClient == nil {
		httpClient = resilience.NewResilientHTTPClient(resilience.DefaultResilientHTTPClientConfig("google-maps"))
	}
	if cache == nil {
		cache = NoopCache{}
	}
	if limiter == nil {
		limiter = NoopRateLimiter{}
	}

	return &Client{
		config:  config,
		http:    httpClient,
		logger:  logging.OrNop(logger).WithComponent("google_maps"),
		tracer:  tracer,
		cache:   cache,
		limiter: limiter,
	}
}

// CircuitBreaker exposes the breaker guarding all calls, for health checks.
func (c *Client) CircuitBreaker() *resilience.CircuitBreaker {
	return c.http.CircuitBreaker()
}

// prepare checks the key and waits for the rate limiter. Limiter backend
// failures are logged and the call proceeds.
func (c *Client) prepare(ctx context.Context, bucket string) error {
	if c.config.APIKey == "" {
		return errors.Unavailable("google maps api key not configured")
	}
	if err := c.limiter.Wait(ctx, bucket); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("rate limiter failed", "bucket", bucket, "error", err.Error())
	}
	return nil
}

// fetch sends a request and decodes a 200 JSON body into out.
func (c *Client) fetch(ctx context.Context, method, url string, header http.Header, body []byte, out any) error {
	resp, err := c.http.Do(ctx, method, url, header, body)
	if err != nil {
		return resilience.ClassifyError(err, providerName)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.Unavailable(providerName + " rejected the api key")
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.Provider(strconv.Itoa(resp.StatusCode), providerName+" request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CodeProvider, "failed to decode "+providerName+" response")
	}
	return nil
}

// checkStatus maps the status field of the legacy web service APIs.
// ZERO_RESULTS is not an error.
func checkStatus(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT":
		return errors.RateLimited(providerName + " quota exceeded")
	case "REQUEST_DENIED":
		return errors.Unavailable(providerName + " request denied: " + message)
	default:
		return errors.Provider(status, providerName+" error: "+message)
	}
}

// cached decodes a cache hit into out.
func (c *Client) cached(ctx context.Context, key string, out any) bool {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Debug("cache get failed", "key", key, "error", err.Error())
		return false
	}
	if data == nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Client) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.CacheTTL); err != nil {
		c.logger.Debug("cache set failed", "key", key, "error", err.Error())
	}
}

// startSpan starts a telemetry span if tracer is configured.
func (c *Client) startSpan(ctx context.Context, name string) (context.Context, *Span) {
	if c.tracer != nil {
		return c.tracer.StartSpan(ctx, name)
	}
	return ctx, &Span{}
}

// parseDuration parses a protobuf duration string such as "123s" to seconds.
func parseDuration(d string) int {
	if d == "" {
		return 0
	}
	v, err := time.ParseDuration(d)
	if err != nil {
		return 0
	}
	return int(v.Seconds())
}
