// Package geocoding turns coordinates into structured addresses through a
// chain of resolution tiers that never fails outward.
package geocoding

import (
	"strings"

	"github.com/carefinder/carefinder/geo"
)

// Unknown fills every address field that no tier could resolve.
const Unknown = "unknown"

// Source names the tier that produced an AddressResolution.
type Source string

// Resolution tiers, in the order they are tried.
const (
	SourceRegion    Source = "region"
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceDefault   Source = "default"
)

// AddressResolution is a structured address. Every string field is
// non-empty; unresolved fields hold Unknown.
type AddressResolution struct {
	PlaceName    string `json:"place_name"`
	Neighborhood string `json:"neighborhood"`
	Street       string `json:"street"`
	District     string `json:"district"`
	City         string `json:"city"`
	Governorate  string `json:"governorate"`
	Country      string `json:"country"`
	FullAddress  string `json:"full_address"`
	Source       Source `json:"source"`
}

// Component is one typed piece of a provider's reverse-geocoding answer,
// using Google address component type names.
type Component struct {
	LongName  string
	ShortName string
	Types     []string
}

// RawAddress is what a Provider returns before parsing.
type RawAddress struct {
	FormattedAddress string
	Components       []Component
}

// Meaningful reports whether the address pins down at least a city or a
// governorate.
func (a AddressResolution) Meaningful() bool {
	return a.City != Unknown || a.Governorate != Unknown
}

func (a *AddressResolution) fields() []*string {
	return []*string{
		&a.PlaceName, &a.Neighborhood, &a.Street, &a.District,
		&a.City, &a.Governorate, &a.Country, &a.FullAddress,
	}
}

// complete replaces blank fields with Unknown and composes FullAddress
// from the resolved parts when none was given.
func (a *AddressResolution) complete() {
	for _, f := range a.fields() {
		*f = strings.TrimSpace(*f)
	}

	if a.FullAddress == "" {
		var parts []string
		for _, p := range []string{a.PlaceName, a.Street, a.Neighborhood, a.District, a.City, a.Governorate, a.Country} {
			if p != "" && p != Unknown && (len(parts) == 0 || parts[len(parts)-1] != p) {
				parts = append(parts, p)
			}
		}
		a.FullAddress = strings.Join(parts, ", ")
	}

	for _, f := range a.fields() {
		if *f == "" {
			*f = Unknown
		}
	}
}

// ParseComponents maps provider components onto address fields. The first
// component of a given kind wins, matching providers that list components
// from the most to the least specific.
func ParseComponents(raw *RawAddress) AddressResolution {
	var a AddressResolution
	if raw == nil {
		a.complete()
		return a
	}

	var streetNumber string
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}

	for _, c := range raw.Components {
		name := strings.TrimSpace(c.LongName)
		if name == "" {
			continue
		}
		for _, t := range c.Types {
			switch t {
			case "point_of_interest", "establishment", "premise", "hospital", "pharmacy":
				set(&a.PlaceName, name)
			case "street_number":
				set(&streetNumber, name)
			case "route":
				set(&a.Street, name)
			case "neighborhood", "sublocality_level_1", "sublocality":
				set(&a.Neighborhood, name)
			case "administrative_area_level_3", "administrative_area_level_2":
				set(&a.District, name)
			case "locality", "postal_town":
				set(&a.City, name)
			case "administrative_area_level_1":
				set(&a.Governorate, name)
			case "country":
				set(&a.Country, name)
			}
		}
	}

	if streetNumber != "" && a.Street != "" {
		a.Street = streetNumber + " " + a.Street
	}
	a.FullAddress = raw.FormattedAddress
	a.complete()
	return a
}

type countryRange struct {
	name string
	box  geo.BoundingBox
}

// countryRanges is a coarse, ordered coordinate table used only when every
// other tier failed. Earlier entries win where boxes overlap.
var countryRanges = []countryRange{
	{"Egypt", geo.BoundingBox{MinLat: 22.0, MaxLat: 31.7, MinLng: 24.7, MaxLng: 36.9}},
	{"Libya", geo.BoundingBox{MinLat: 19.5, MaxLat: 33.2, MinLng: 9.3, MaxLng: 25.2}},
	{"Sudan", geo.BoundingBox{MinLat: 8.7, MaxLat: 22.0, MinLng: 21.8, MaxLng: 38.6}},
	{"Jordan", geo.BoundingBox{MinLat: 29.2, MaxLat: 33.4, MinLng: 34.9, MaxLng: 39.3}},
	{"Saudi Arabia", geo.BoundingBox{MinLat: 16.3, MaxLat: 32.2, MinLng: 34.5, MaxLng: 55.7}},
	{"United Arab Emirates", geo.BoundingBox{MinLat: 22.6, MaxLat: 26.1, MinLng: 51.5, MaxLng: 56.4}},
}

// InferCountry returns the country whose coarse box contains p, or Unknown.
func InferCountry(p geo.Point) string {
	for _, c := range countryRanges {
		if c.box.Contains(p) {
			return c.name
		}
	}
	return Unknown
}

func defaultResolution(p geo.Point) AddressResolution {
	// Only the country is inferred; the address itself stays unresolved.
	a := AddressResolution{Country: InferCountry(p), FullAddress: Unknown, Source: SourceDefault}
	a.complete()
	return a
}
