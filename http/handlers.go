package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/geocoding"
	"github.com/carefinder/carefinder/search"
	"github.com/carefinder/carefinder/telemetry"
)

// FacilitySearcher runs nearby facility searches.
type FacilitySearcher interface {
	Search(ctx context.Context, req search.Request, token *search.CancelToken) (search.Result, error)
}

// LocationResolver turns coordinates into addresses.
type LocationResolver interface {
	Resolve(ctx context.Context, p geo.Point) (geocoding.AddressResolution, error)
}

// Handler serves the public API.
type Handler struct {
	searcher        FacilitySearcher
	resolver        LocationResolver
	defaultRadiusKm float64
}

// NewHandler creates a Handler. Searches without a radius_km parameter use
// defaultRadiusKm.
func NewHandler(searcher FacilitySearcher, resolver LocationResolver, defaultRadiusKm float64) *Handler {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 5
	}
	return &Handler{
		searcher:        searcher,
		resolver:        resolver,
		defaultRadiusKm: defaultRadiusKm,
	}
}

// NearbyResponse is the body of a nearby facility search.
type NearbyResponse struct {
	SearchID   string                    `json:"search_id"`
	Center     geo.Point                 `json:"center"`
	RadiusKm   float64                   `json:"radius_km"`
	Completion search.Completion         `json:"completion"`
	Fallback   bool                      `json:"fallback"`
	Facilities []facility.Facility       `json:"facilities"`
	Counts     map[facility.Category]int `json:"counts_by_category"`
	ElapsedMs  int64                     `json:"elapsed_ms"`
}

// Nearby handles GET /v1/facilities/nearby?lat&lng&radius_km&category.
// Closing the connection cancels the search, which then answers from what
// was collected so far.
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	details := make(map[string]string)

	center := parsePoint(q.Get("lat"), q.Get("lng"), details)
	radius := h.defaultRadiusKm
	if v := q.Get("radius_km"); v != "" {
		radius = parseFloat("radius_km", v, details)
	}
	category := strings.ToLower(strings.TrimSpace(q.Get("category")))
	if category == "all" {
		category = ""
	}

	if len(details) > 0 {
		Error(w, r, errors.ValidationWithDetails("invalid query parameters", details))
		return
	}

	req := search.Request{
		Center:   center,
		RadiusKm: radius,
		Category: facility.Category(category),
	}
	res, err := h.searcher.Search(r.Context(), req, nil)
	if err != nil {
		Error(w, r, err)
		return
	}

	telemetry.SetSpanAttributes(r.Context(),
		telemetry.SearchAttributes(res.SearchID, string(res.Completion), radius, len(res.Facilities))...)

	OK(w, NearbyResponse{
		SearchID:   res.SearchID,
		Center:     center,
		RadiusKm:   radius,
		Completion: res.Completion,
		Fallback:   res.Completion.IsFallback(),
		Facilities: res.Facilities,
		Counts:     res.CountsByCategory,
		ElapsedMs:  res.Elapsed.Milliseconds(),
	})
}

// Reverse handles GET /v1/locations/reverse?lat&lng.
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	details := make(map[string]string)

	p := parsePoint(q.Get("lat"), q.Get("lng"), details)
	if len(details) > 0 {
		Error(w, r, errors.ValidationWithDetails("invalid query parameters", details))
		return
	}

	addr, err := h.resolver.Resolve(r.Context(), p)
	if err != nil {
		Error(w, r, err)
		return
	}

	telemetry.SetSpanAttributes(r.Context(),
		telemetry.LocationAttributes(string(addr.Source), addr.City, addr.Country)...)

	OK(w, addr)
}

func parsePoint(lat, lng string, details map[string]string) geo.Point {
	return geo.Point{
		Lat: parseFloat("lat", lat, details),
		Lng: parseFloat("lng", lng, details),
	}
}

func parseFloat(name, v string, details map[string]string) float64 {
	if v == "" {
		details[name] = "is required"
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		details[name] = "must be a number"
		return 0
	}
	return f
}
