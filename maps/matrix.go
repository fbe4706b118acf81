package maps

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/search"
)

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type matrixWaypoint struct {
	Waypoint struct {
		Location struct {
			LatLng latLng `json:"latLng"`
		} `json:"location"`
	} `json:"waypoint"`
}

func waypoint(p geo.Point) matrixWaypoint {
	var w matrixWaypoint
	w.Waypoint.Location.LatLng = latLng{Latitude: p.Lat, Longitude: p.Lng}
	return w
}

type matrixRequest struct {
	Origins      []matrixWaypoint `json:"origins"`
	Destinations []matrixWaypoint `json:"destinations"`
	TravelMode   TravelMode       `json:"travelMode"`
	LanguageCode string           `json:"languageCode,omitempty"`
}

type matrixElement struct {
	OriginIndex      int    `json:"originIndex"`
	DestinationIndex int    `json:"destinationIndex"`
	Duration         string `json:"duration"`
	DistanceMeters   int    `json:"distanceMeters"`
	Condition        string `json:"condition"`
	Status           *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	LocalizedValues struct {
		Duration struct {
			Text string `json:"text"`
		} `json:"duration"`
	} `json:"localizedValues"`
}

func (e matrixElement) routed() bool {
	if e.Status != nil && e.Status.Code != 0 {
		return false
	}
	return e.Condition == "" || e.Condition == "ROUTE_EXISTS"
}

// TravelTimes computes a one-origin route matrix. The result is aligned with
// destinations; unrouted elements have OK false.
func (c *Client) TravelTimes(ctx context.Context, origin geo.Point, destinations []geo.Point) ([]search.TravelEstimate, error) {
	ctx, span := c.startSpan(ctx, "maps.ComputeRouteMatrix")
	defer span.End()

	if len(destinations) == 0 {
		return nil, nil
	}
	if err := c.prepare(ctx, "route_matrix"); err != nil {
		span.RecordError(err)
		return nil, err
	}

	req := matrixRequest{
		Origins:      []matrixWaypoint{waypoint(origin)},
		Destinations: make([]matrixWaypoint, len(destinations)),
		TravelMode:   c.config.TravelMode,
		LanguageCode: c.config.Language,
	}
	for i, d := range destinations {
		req.Destinations[i] = waypoint(d)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to marshal route matrix request")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Goog-Api-Key", c.config.APIKey)
	header.Set("X-Goog-FieldMask", "originIndex,destinationIndex,duration,distanceMeters,status,condition,localizedValues")

	var elements []matrixElement
	if err := c.fetch(ctx, http.MethodPost, c.config.MatrixURL, header, body, &elements); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]search.TravelEstimate, len(destinations))
	routed := 0
	for _, e := range elements {
		if e.OriginIndex != 0 || e.DestinationIndex < 0 || e.DestinationIndex >= len(out) || !e.routed() {
			continue
		}
		out[e.DestinationIndex] = search.TravelEstimate{
			OK:              true,
			DistanceKm:      float64(e.DistanceMeters) / 1000,
			DurationSeconds: parseDuration(e.Duration),
			DurationText:    e.LocalizedValues.Duration.Text,
		}
		routed++
	}

	span.SetAttributes(MatrixAttributes(len(destinations), routed)...)
	c.logger.Debug("route matrix computed",
		"destinations", len(destinations),
		"routed", routed)

	return out, nil
}
