package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carefinder/carefinder/resilience"
)

func newTestMetrics(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp, err := NewMetricsProvider(context.Background(), MetricsConfig{ServiceName: "carefinder-test"}, reader)
	if err != nil {
		t.Fatalf("NewMetricsProvider() error = %v", err)
	}
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterValue(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestSearchMetrics(t *testing.T) {
	mp, reader := newTestMetrics(t)
	sm, err := NewSearchMetrics(mp.Meter())
	if err != nil {
		t.Fatalf("NewSearchMetrics() error = %v", err)
	}

	ctx := context.Background()
	sm.ProviderCall(ctx, "type", "success", 120*time.Millisecond)
	sm.ProviderCall(ctx, "type", "error", 80*time.Millisecond)
	sm.ProviderCall(ctx, "keyword", "success", 90*time.Millisecond)
	sm.SearchCompleted(ctx, "ok", 5, time.Second)
	sm.SearchCompleted(ctx, "fallback-timeout", 2, 12*time.Second)
	sm.SearchCompleted(ctx, "ok", 3, 2*time.Second)
	sm.AddressResolved(ctx, "region", time.Millisecond)

	metrics := collect(t, reader)

	searches, ok := metrics["facility_searches_total"]
	if !ok {
		t.Fatal("facility_searches_total not exported")
	}
	if got := counterValue(t, searches, "completion", "ok"); got != 2 {
		t.Errorf("ok searches = %d, want 2", got)
	}
	if got := counterValue(t, searches, "completion", "fallback-timeout"); got != 1 {
		t.Errorf("timeout searches = %d, want 1", got)
	}

	calls := metrics["places_provider_calls_total"]
	sum := calls.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 3 {
		t.Errorf("provider call series = %d, want 3", len(sum.DataPoints))
	}

	if got := counterValue(t, metrics["location_resolutions_total"], "source", "region"); got != 1 {
		t.Errorf("region resolutions = %d, want 1", got)
	}

	if _, ok := metrics["facility_search_duration_seconds"].Data.(metricdata.Histogram[float64]); !ok {
		t.Error("facility_search_duration_seconds is not a float histogram")
	}
}

func TestRegisterCircuitBreakers(t *testing.T) {
	mp, reader := newTestMetrics(t)

	registry := resilience.NewCircuitBreakerRegistry()
	cfg := resilience.DefaultCircuitBreakerConfig("google-maps")
	cfg.FailureThreshold = 1
	cb := registry.Get(cfg)
	registry.Get(resilience.DefaultCircuitBreakerConfig("nominatim"))

	if err := RegisterCircuitBreakers(mp.Meter(), registry); err != nil {
		t.Fatalf("RegisterCircuitBreakers() error = %v", err)
	}

	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("boom") })

	gauge, ok := collect(t, reader)["circuit_breaker_state"].Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatal("circuit_breaker_state is not an int64 gauge")
	}

	states := make(map[string]int64)
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value("breaker")
		states[v.AsString()] = dp.Value
	}
	if states["google-maps"] != 2 {
		t.Errorf("google-maps state = %d, want 2 (open)", states["google-maps"])
	}
	if states["nominatim"] != 0 {
		t.Errorf("nominatim state = %d, want 0 (closed)", states["nominatim"])
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	mp, reader := newTestMetrics(t)
	hm, err := NewHTTPMetrics(mp.Meter())
	if err != nil {
		t.Fatalf("NewHTTPMetrics() error = %v", err)
	}

	r := chi.NewRouter()
	r.Use(MetricsMiddleware(hm))
	r.Get("/v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/things/"+id, nil))
	}

	requests := collect(t, reader)["http_requests_total"]
	if got := counterValue(t, requests, "route", "/v1/things/{id}"); got != 3 {
		t.Errorf("requests for route = %d, want 3", got)
	}
	sum := requests.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Errorf("series = %d, want 1", len(sum.DataPoints))
	}
	v, _ := sum.DataPoints[0].Attributes.Value("status_class")
	if v.AsString() != "4xx" {
		t.Errorf("status_class = %q, want 4xx", v.AsString())
	}
}

func TestTracingMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := NewTracingProvider(context.Background(), DefaultTracingConfig(), recorder)
	if err != nil {
		t.Fatalf("NewTracingProvider() error = %v", err)
	}
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var traceID string
	r := chi.NewRouter()
	r.Use(TracingMiddleware(tp.Tracer()))
	r.Get("/v1/facilities/nearby", func(w http.ResponseWriter, req *http.Request) {
		traceID = TraceID(req.Context())
		SetSpanAttributes(req.Context(), SearchAttributes("s-1", "ok", 5, 4)...)
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/facilities/nearby?lat=1&lng=2", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /v1/facilities/nearby" {
		t.Errorf("span name = %q", span.Name())
	}
	if traceID == "" || span.SpanContext().TraceID().String() != traceID {
		t.Errorf("handler trace id %q does not match span", traceID)
	}

	found := false
	for _, kv := range span.Attributes() {
		if kv.Key == "search.completion" && kv.Value.AsString() == "ok" {
			found = true
		}
	}
	if !found {
		t.Error("search attributes missing from server span")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
