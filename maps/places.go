package maps

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/search"
)

const (
	// placesCachePrecision keys cached searches by ~150m geohash cells.
	placesCachePrecision = 7
	maxPlacesRadiusM     = 50000
)

type placesResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID          string `json:"place_id"`
	Name             string `json:"name"`
	Vicinity         string `json:"vicinity"`
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Types            []string `json:"types"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	OpeningHours     *struct {
		OpenNow *bool `json:"open_now"`
	} `json:"opening_hours"`
	BusinessStatus string `json:"business_status"`
}

// SearchByType runs a Nearby Search restricted to a place type.
func (c *Client) SearchByType(ctx context.Context, at geo.Point, placeType string, radiusKm float64) ([]facility.Candidate, error) {
	params := url.Values{}
	params.Set("type", placeType)
	return c.searchPlaces(ctx, search.StrategyType, "nearbysearch", at, placeType, radiusKm, params)
}

// SearchByKeyword runs a Nearby Search matching a keyword.
func (c *Client) SearchByKeyword(ctx context.Context, at geo.Point, keyword string, radiusKm float64) ([]facility.Candidate, error) {
	params := url.Values{}
	params.Set("keyword", keyword)
	return c.searchPlaces(ctx, search.StrategyKeyword, "nearbysearch", at, keyword, radiusKm, params)
}

// SearchByText runs a Text Search biased to the circle around at.
func (c *Client) SearchByText(ctx context.Context, at geo.Point, query string, radiusKm float64) ([]facility.Candidate, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.searchPlaces(ctx, search.StrategyText, "textsearch", at, query, radiusKm, params)
}

func (c *Client) searchPlaces(ctx context.Context, strategy search.Strategy, endpoint string, at geo.Point, term string, radiusKm float64, params url.Values) ([]facility.Candidate, error) {
	ctx, span := c.startSpan(ctx, "maps.SearchPlaces")
	defer span.End()

	radiusM := radiusMeters(radiusKm)
	cacheKey := fmt.Sprintf("places:%s:%s:%d:%s", strategy, geo.Encode(at, placesCachePrecision), radiusM, term)

	var candidates []facility.Candidate
	if c.cached(ctx, cacheKey, &candidates) {
		span.SetAttributes(PlacesAttributes(string(strategy), term, len(candidates), true)...)
		return candidates, nil
	}

	if err := c.prepare(ctx, "places"); err != nil {
		span.RecordError(err)
		return nil, err
	}

	params.Set("location", fmt.Sprintf("%f,%f", at.Lat, at.Lng))
	params.Set("radius", fmt.Sprintf("%d", radiusM))
	if c.config.Language != "" {
		params.Set("language", c.config.Language)
	}
	if c.config.Region != "" && endpoint == "textsearch" {
		params.Set("region", c.config.Region)
	}
	params.Set("key", c.config.APIKey)
	reqURL := fmt.Sprintf("%s/%s/json?%s", c.config.PlacesURL, endpoint, params.Encode())

	var resp placesResponse
	if err := c.fetch(ctx, http.MethodGet, reqURL, nil, nil, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		span.RecordError(err)
		return nil, err
	}

	candidates = make([]facility.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.BusinessStatus == "CLOSED_PERMANENTLY" {
			continue
		}
		candidates = append(candidates, r.candidate())
	}

	c.store(ctx, cacheKey, withoutOpenNow(candidates))
	span.SetAttributes(PlacesAttributes(string(strategy), term, len(candidates), false)...)

	c.logger.Debug("places search completed",
		"strategy", strategy,
		"term", term,
		"results", len(candidates))

	return candidates, nil
}

func (r placeResult) candidate() facility.Candidate {
	address := r.Vicinity
	if address == "" {
		address = r.FormattedAddress
	}
	c := facility.Candidate{
		ProviderID:  r.PlaceID,
		Name:        r.Name,
		Address:     address,
		Location:    geo.NewPoint(r.Geometry.Location.Lat, r.Geometry.Location.Lng),
		Types:       r.Types,
		Rating:      r.Rating,
		ReviewCount: r.UserRatingsTotal,
	}
	if r.OpeningHours != nil {
		c.OpenNow = r.OpeningHours.OpenNow
	}
	return c
}

// withoutOpenNow copies candidates without opening state, which goes stale
// long before a cache entry expires.
func withoutOpenNow(candidates []facility.Candidate) []facility.Candidate {
	out := make([]facility.Candidate, len(candidates))
	for i, c := range candidates {
		c.OpenNow = nil
		out[i] = c
	}
	return out
}

func radiusMeters(radiusKm float64) int {
	m := int(math.Round(radiusKm * 1000))
	switch {
	case m < 1:
		return 1
	case m > maxPlacesRadiusM:
		return maxPlacesRadiusM
	}
	return m
}
