// Package telemetry provides observability utilities.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/carefinder/carefinder/resilience"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP endpoint; empty keeps metrics in process
	Insecure       bool
	ExportInterval time.Duration
}

// MetricsProvider provides metrics functionality.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	config   MetricsConfig
}

// NewMetricsProvider creates a new metrics provider. Extra readers (such as
// a manual reader in tests) are attached next to the OTLP exporter.
func NewMetricsProvider(ctx context.Context, config MetricsConfig, readers ...sdkmetric.Reader) (*MetricsProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if config.Endpoint != "" {
		exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}

		interval := config.ExportInterval
		if interval <= 0 {
			interval = 60 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		))
	}

	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	return &MetricsProvider{
		provider: provider,
		meter:    provider.Meter(config.ServiceName),
		config:   config,
	}, nil
}

// Meter returns the meter for creating instruments.
func (m *MetricsProvider) Meter() metric.Meter {
	return m.meter
}

// Shutdown flushes and shuts down the metrics provider.
func (m *MetricsProvider) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// HTTPMetrics provides HTTP-related metrics.
type HTTPMetrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	responseSize    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTP metrics.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"http_response_size_bytes",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		responseSize:    responseSize,
		activeRequests:  activeRequests,
	}, nil
}

// RecordRequest records HTTP request metrics.
func (m *HTTPMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration, respSize int64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", status),
		attribute.String("status_class", statusClass(status)),
	)

	m.requestsTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.responseSize.Record(ctx, respSize, attrs)
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// SearchMetrics records facility search and location resolution metrics.
// It satisfies the observer interfaces of the search and geocoding packages.
type SearchMetrics struct {
	searchesTotal    metric.Int64Counter
	searchDuration   metric.Float64Histogram
	facilitiesFound  metric.Int64Histogram
	providerCalls    metric.Int64Counter
	providerDuration metric.Float64Histogram
	resolutions      metric.Int64Counter
	resolveDuration  metric.Float64Histogram
}

// NewSearchMetrics creates search metrics.
func NewSearchMetrics(meter metric.Meter) (*SearchMetrics, error) {
	searchesTotal, err := meter.Int64Counter(
		"facility_searches_total",
		metric.WithDescription("Facility searches by completion"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"facility_search_duration_seconds",
		metric.WithDescription("Facility search wall-clock duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 1, 2, 3, 5, 8, 12, 16, 20),
	)
	if err != nil {
		return nil, err
	}

	facilitiesFound, err := meter.Int64Histogram(
		"facility_search_results",
		metric.WithDescription("Facilities returned per search"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 20, 50, 100),
	)
	if err != nil {
		return nil, err
	}

	providerCalls, err := meter.Int64Counter(
		"places_provider_calls_total",
		metric.WithDescription("Places provider calls by strategy and outcome"),
	)
	if err != nil {
		return nil, err
	}

	providerDuration, err := meter.Float64Histogram(
		"places_provider_call_duration_seconds",
		metric.WithDescription("Places provider call duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	resolutions, err := meter.Int64Counter(
		"location_resolutions_total",
		metric.WithDescription("Reverse geocoding resolutions by source tier"),
	)
	if err != nil {
		return nil, err
	}

	resolveDuration, err := meter.Float64Histogram(
		"location_resolution_duration_seconds",
		metric.WithDescription("Reverse geocoding duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return &SearchMetrics{
		searchesTotal:    searchesTotal,
		searchDuration:   searchDuration,
		facilitiesFound:  facilitiesFound,
		providerCalls:    providerCalls,
		providerDuration: providerDuration,
		resolutions:      resolutions,
		resolveDuration:  resolveDuration,
	}, nil
}

// ProviderCall records one places provider call.
func (m *SearchMetrics) ProviderCall(ctx context.Context, strategy, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	)
	m.providerCalls.Add(ctx, 1, attrs)
	m.providerDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// SearchCompleted records a finished search.
func (m *SearchMetrics) SearchCompleted(ctx context.Context, completion string, facilities int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("completion", completion))
	m.searchesTotal.Add(ctx, 1, attrs)
	m.searchDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.facilitiesFound.Record(ctx, int64(facilities), attrs)
}

// AddressResolved records a reverse geocoding resolution.
func (m *SearchMetrics) AddressResolved(ctx context.Context, source string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.resolutions.Add(ctx, 1, attrs)
	m.resolveDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RegisterCircuitBreakers exports the state of every registered breaker as
// a gauge: 0 closed, 1 half-open, 2 open.
func RegisterCircuitBreakers(meter metric.Meter, registry *resilience.CircuitBreakerRegistry) error {
	_, err := meter.Int64ObservableGauge(
		"circuit_breaker_state",
		metric.WithDescription("Circuit breaker state (0 closed, 1 half-open, 2 open)"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			for _, cb := range registry.All() {
				o.Observe(breakerLevel(cb.State()), metric.WithAttributes(
					attribute.String("breaker", cb.Name()),
				))
			}
			return nil
		}),
	)
	return err
}

func breakerLevel(s resilience.CircuitState) int64 {
	switch s {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	default:
		return 0
	}
}

// MetricsMiddleware creates an HTTP middleware that records metrics. The
// route label is the chi route pattern, so path parameters do not explode
// cardinality.
func MetricsMiddleware(metrics *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			metrics.activeRequests.Add(ctx, 1)
			defer metrics.activeRequests.Add(ctx, -1)

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			metrics.RecordRequest(ctx, r.Method, routePattern(r), wrapped.status, time.Since(start), int64(wrapped.size))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}
