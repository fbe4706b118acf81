package maps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/geocoding"
)

// geocodeCachePrecision keys cached addresses by ~38m geohash cells.
const geocodeCachePrecision = 8

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// ReverseGeocode converts coordinates to raw address components. Components
// of all results are returned from the most to the least specific result.
func (c *Client) ReverseGeocode(ctx context.Context, location geo.Point) (*geocoding.RawAddress, error) {
	ctx, span := c.startSpan(ctx, "maps.ReverseGeocode")
	defer span.End()

	cacheKey := "revgeo:" + geo.Encode(location, geocodeCachePrecision)
	var raw geocoding.RawAddress
	if c.cached(ctx, cacheKey, &raw) {
		c.logger.Debug("reverse geocode cache hit", "lat", location.Lat, "lng", location.Lng)
		return &raw, nil
	}

	if err := c.prepare(ctx, "geocode"); err != nil {
		span.RecordError(err)
		return nil, err
	}

	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", location.Lat, location.Lng))
	if c.config.Language != "" {
		params.Set("language", c.config.Language)
	}
	params.Set("key", c.config.APIKey)
	reqURL := fmt.Sprintf("%s?%s", c.config.GeocodeURL, params.Encode())

	var resp geocodeResponse
	if err := c.fetch(ctx, http.MethodGet, reqURL, nil, nil, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, errors.NoResults("no address found for coordinates")
	}

	raw = geocoding.RawAddress{FormattedAddress: resp.Results[0].FormattedAddress}
	for _, r := range resp.Results {
		for _, comp := range r.AddressComponents {
			raw.Components = append(raw.Components, geocoding.Component{
				LongName:  comp.LongName,
				ShortName: comp.ShortName,
				Types:     comp.Types,
			})
		}
	}

	c.store(ctx, cacheKey, raw)
	span.SetAttributes(GeocodeAttributes(location.Lat, location.Lng, len(raw.Components))...)

	c.logger.Debug("reverse geocode completed",
		"lat", location.Lat,
		"lng", location.Lng,
		"components", len(raw.Components))

	return &raw, nil
}
