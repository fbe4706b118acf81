// Package search runs the nearby facility pipeline: fan-out provider calls
// over a set of search points, deduplicate, classify and rank the hits, and
// fall back to the bundled dataset when the provider cannot answer in time.
package search

import (
	"context"

	"github.com/carefinder/carefinder/facility"
	"github.com/carefinder/carefinder/geo"
)

// Provider is a places backend able to look up facilities around a point.
type Provider interface {
	// SearchByType returns places of a provider-defined type such as
	// "hospital" or "pharmacy".
	SearchByType(ctx context.Context, at geo.Point, placeType string, radiusKm float64) ([]facility.Candidate, error)
	// SearchByKeyword returns places matching a keyword near at.
	SearchByKeyword(ctx context.Context, at geo.Point, keyword string, radiusKm float64) ([]facility.Candidate, error)
	// SearchByText runs a free text query biased towards at.
	SearchByText(ctx context.Context, at geo.Point, query string, radiusKm float64) ([]facility.Candidate, error)
	// TravelTimes estimates the route from origin to every destination. The
	// result is index-aligned with destinations.
	TravelTimes(ctx context.Context, origin geo.Point, destinations []geo.Point) ([]TravelEstimate, error)
}

// TravelEstimate is one element of a travel time matrix. OK is false when
// the provider found no route.
type TravelEstimate struct {
	OK              bool
	DistanceKm      float64
	DurationSeconds int
	DurationText    string
}

// Strategy names the provider method a task uses.
type Strategy string

const (
	StrategyType    Strategy = "type"
	StrategyKeyword Strategy = "keyword"
	StrategyText    Strategy = "text"
)

// Queries lists the search terms issued at every search point.
type Queries struct {
	Types    []string
	Keywords []string
	Texts    []string
}

// DefaultQueries returns the place types, Arabic keywords and free text
// phrases used for medical facility discovery.
func DefaultQueries() Queries {
	return Queries{
		Types:    []string{"hospital", "doctor", "pharmacy", "drugstore", "health"},
		Keywords: []string{"مستشفى", "عيادة", "صيدلية"},
		Texts:    []string{"hospital clinic pharmacy near me"},
	}
}

func (q Queries) size() int {
	return len(q.Types) + len(q.Keywords) + len(q.Texts)
}
