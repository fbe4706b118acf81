package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/geocoding"
	"github.com/carefinder/carefinder/health"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/search"
	testutil "github.com/carefinder/carefinder/testing"
	"github.com/carefinder/carefinder/testing/fakes"
)

var tahrir = geo.NewPoint(30.0444, 31.2357)

type nearbyEnvelope struct {
	Success bool           `json:"success"`
	Data    NearbyResponse `json:"data"`
}

type addressEnvelope struct {
	Success bool                        `json:"success"`
	Data    geocoding.AddressResolution `json:"data"`
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

func newTestRouter(t *testing.T, provider search.Provider, geocoder geocoding.Provider, limiter Limiter) http.Handler {
	t.Helper()

	ds, err := facility.BundledDataset()
	if err != nil {
		t.Fatalf("BundledDataset: %v", err)
	}

	cfg := search.DefaultConfig()
	cfg.DeadlineFloor = 2 * time.Second
	cfg.DeadlineCeiling = 2 * time.Second
	cfg.EnrichTravelTimes = false

	orch := search.NewOrchestrator(provider, facility.NewDefaultClassifier(), ds, cfg)
	resolver := geocoding.NewResolver(nil, geocoder, nil, geocoding.DefaultConfig())

	return NewRouter(RouterConfig{
		Handler: NewHandler(orch, resolver, 5),
		Health:  health.NewChecker("test"),
		Logger:  logging.Nop(),
		Limiter: limiter,
	})
}

func TestNearby(t *testing.T) {
	provider := fakes.Returning(facility.Candidate{
		ProviderID: "p1",
		Name:       "Nile Pharmacy",
		Location:   geo.Offset(tahrir, 0.5, 0),
		Types:      []string{"pharmacy"},
	})
	router := newTestRouter(t, provider, &fakes.Geocoder{}, nil)

	req := testutil.NewHTTPTestRequest(http.MethodGet, "/v1/facilities/nearby").
		WithQuery("lat", "30.0444").
		WithQuery("lng", "31.2357").
		Build(t)

	var body nearbyEnvelope
	testutil.ExecuteRequest(t, router, req).
		AssertOK().
		AssertHeader("Content-Type", "application/json").
		DecodeJSON(&body)

	if !body.Success {
		t.Error("success = false")
	}
	if body.Data.Completion != search.CompletionOK || body.Data.Fallback {
		t.Errorf("completion = %s, fallback = %v", body.Data.Completion, body.Data.Fallback)
	}
	if body.Data.RadiusKm != 5 {
		t.Errorf("radius = %v, want default 5", body.Data.RadiusKm)
	}
	if len(body.Data.Facilities) != 1 || body.Data.Facilities[0].ID != "p1" {
		t.Fatalf("facilities = %+v", body.Data.Facilities)
	}
	if body.Data.Counts[facility.CategoryPharmacy] != 1 {
		t.Errorf("counts = %v", body.Data.Counts)
	}
	if body.Data.SearchID == "" {
		t.Error("search id missing")
	}
}

func TestNearby_ProviderUnavailableFallsBack(t *testing.T) {
	router := newTestRouter(t, fakes.Failing(errors.Unavailable("maps down")), &fakes.Geocoder{}, nil)

	req := testutil.NewHTTPTestRequest(http.MethodGet, "/v1/facilities/nearby").
		WithQuery("lat", "30.0444").
		WithQuery("lng", "31.2357").
		WithQuery("radius_km", "10").
		WithQuery("category", "all").
		Build(t)

	var body nearbyEnvelope
	testutil.ExecuteRequest(t, router, req).AssertOK().DecodeJSON(&body)

	if body.Data.Completion != search.CompletionProviderUnavailable || !body.Data.Fallback {
		t.Errorf("completion = %s, fallback = %v", body.Data.Completion, body.Data.Fallback)
	}
	if len(body.Data.Facilities) == 0 {
		t.Error("expected bundled facilities around Tahrir")
	}
}

func TestNearby_InvalidQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     map[string]string
		wantField string
	}{
		{"missing lat", map[string]string{"lng": "31.2"}, "lat"},
		{"bad lng", map[string]string{"lat": "30", "lng": "east"}, "lng"},
		{"bad radius", map[string]string{"lat": "30", "lng": "31", "radius_km": "far"}, "radius_km"},
		{"radius over max", map[string]string{"lat": "30", "lng": "31", "radius_km": "500"}, "radius_km"},
		{"zero radius", map[string]string{"lat": "30", "lng": "31", "radius_km": "0"}, "radius_km"},
		{"latitude out of range", map[string]string{"lat": "91", "lng": "31"}, "center.lat"},
		{"unknown category", map[string]string{"lat": "30", "lng": "31", "category": "dentist"}, "category"},
	}

	router := newTestRouter(t, fakes.Returning(), &fakes.Geocoder{}, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewHTTPTestRequest(http.MethodGet, "/v1/facilities/nearby")
			for k, v := range tt.query {
				b.WithQuery(k, v)
			}

			var body errors.ErrorResponse
			testutil.ExecuteRequest(t, router, b.Build(t)).AssertBadRequest().DecodeJSON(&body)

			if body.Error.Code != errors.CodeValidation {
				t.Errorf("code = %s, want %s", body.Error.Code, errors.CodeValidation)
			}
			if _, ok := body.Error.Details[tt.wantField]; !ok {
				t.Errorf("details = %v, want key %s", body.Error.Details, tt.wantField)
			}
		})
	}
}

func TestReverse(t *testing.T) {
	geocoder := &fakes.Geocoder{Address: fakes.CityAddress("Cairo", "Cairo Governorate", "Egypt")}
	router := newTestRouter(t, fakes.Returning(), geocoder, nil)

	req := testutil.NewHTTPTestRequest(http.MethodGet, "/v1/locations/reverse").
		WithQuery("lat", "30.0444").
		WithQuery("lng", "31.2357").
		Build(t)

	var body addressEnvelope
	testutil.ExecuteRequest(t, router, req).AssertOK().DecodeJSON(&body)

	if body.Data.City != "Cairo" || body.Data.Country != "Egypt" {
		t.Errorf("address = %+v", body.Data)
	}
	if body.Data.Source != geocoding.SourcePrimary {
		t.Errorf("source = %s, want primary", body.Data.Source)
	}
	if body.Data.Street != geocoding.Unknown {
		t.Errorf("street = %q, want %q", body.Data.Street, geocoding.Unknown)
	}
}

func TestReverse_InvalidCoordinates(t *testing.T) {
	router := newTestRouter(t, fakes.Returning(), &fakes.Geocoder{}, nil)

	for _, lat := range []string{"", "north", "100"} {
		b := testutil.NewHTTPTestRequest(http.MethodGet, "/v1/locations/reverse").WithQuery("lng", "31")
		if lat != "" {
			b.WithQuery("lat", lat)
		}
		testutil.ExecuteRequest(t, router, b.Build(t)).AssertBadRequest()
	}
}

func TestRouter_RateLimited(t *testing.T) {
	router := newTestRouter(t, fakes.Returning(), &fakes.Geocoder{}, denyAll{})

	req := testutil.NewHTTPTestRequest(http.MethodGet, "/v1/locations/reverse").
		WithQuery("lat", "30").
		WithQuery("lng", "31").
		Build(t)

	var body errors.ErrorResponse
	testutil.ExecuteRequest(t, router, req).
		AssertStatus(http.StatusTooManyRequests).
		AssertHeader("Retry-After", "60").
		DecodeJSON(&body)

	if body.Error.Code != errors.CodeRateLimited {
		t.Errorf("code = %s", body.Error.Code)
	}
	if body.RequestID == "" {
		t.Error("request id missing from error body")
	}
}

func TestRouter_HealthIsNotRateLimited(t *testing.T) {
	router := newTestRouter(t, fakes.Returning(), &fakes.Geocoder{}, denyAll{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := testutil.NewHTTPTestRequest(http.MethodGet, path).Build(t)
		testutil.ExecuteRequest(t, router, req).AssertOK()
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, fakes.Returning(), &fakes.Geocoder{}, nil)

	req := testutil.NewHTTPTestRequest(http.MethodGet, "/v1/doctors").
		WithHeader(RequestIDHeader, "req-42").
		Build(t)

	var body errors.ErrorResponse
	testutil.ExecuteRequest(t, router, req).
		AssertStatus(http.StatusNotFound).
		AssertHeader(RequestIDHeader, "req-42").
		DecodeJSON(&body)

	if body.Error.Code != errors.CodeNotFound || body.RequestID != "req-42" {
		t.Errorf("body = %+v", body)
	}
}
