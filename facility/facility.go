// Package facility holds the medical facility model and the pure stages of
// the search pipeline: deduplication, classification and distance ranking.
package facility

import (
	"github.com/carefinder/carefinder/geo"
)

// Category is the kind of medical facility.
type Category string

// Facility categories.
const (
	CategoryHospital  Category = "hospital"
	CategoryClinic    Category = "clinic"
	CategoryPharmacy  Category = "pharmacy"
	CategoryEmergency Category = "emergency"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryHospital, CategoryClinic, CategoryPharmacy, CategoryEmergency}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryHospital, CategoryClinic, CategoryPharmacy, CategoryEmergency:
		return true
	}
	return false
}

// Candidate is a raw provider search hit. The same ProviderID may appear
// many times across search strategies and points.
type Candidate struct {
	ProviderID  string
	Name        string
	Address     string
	Location    geo.Point
	Types       []string
	Rating      *float64
	ReviewCount *int
	OpenNow     *bool
}

// TravelTime is a best-effort route estimate from the search center.
type TravelTime struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationSeconds int     `json:"duration_seconds"`
	DurationText    string  `json:"duration_text"`
}

// Facility is a deduplicated, classified and ranked search result.
type Facility struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Location    geo.Point   `json:"location"`
	Category    Category    `json:"category"`
	Rating      *float64    `json:"rating,omitempty"`
	ReviewCount *int        `json:"review_count,omitempty"`
	OpenNow     *bool       `json:"open_now,omitempty"`
	DistanceKm  float64     `json:"distance_km"`
	TravelTime  *TravelTime `json:"travel_time,omitempty"`
}

// CountByCategory tallies facilities per category. Categories with no
// facilities are omitted.
func CountByCategory(facilities []Facility) map[Category]int {
	counts := make(map[Category]int)
	for _, f := range facilities {
		counts[f.Category]++
	}
	return counts
}

// FilterCategory returns the facilities of category c. An empty c keeps all.
func FilterCategory(facilities []Facility, c Category) []Facility {
	if c == "" {
		return facilities
	}
	out := make([]Facility, 0, len(facilities))
	for _, f := range facilities {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}
