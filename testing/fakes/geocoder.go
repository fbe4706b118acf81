package fakes

import (
	"context"
	"sync/atomic"

	"github.com/carefinder/carefinder/geo"
	"github.com/carefinder/carefinder/geocoding"
)

// Geocoder is a geocoding.Provider returning a fixed address or error.
type Geocoder struct {
	Address *geocoding.RawAddress
	Err     error

	calls atomic.Int32
}

// ReverseGeocode implements geocoding.Provider.
func (g *Geocoder) ReverseGeocode(ctx context.Context, _ geo.Point) (*geocoding.RawAddress, error) {
	g.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Address, nil
}

// Calls returns the number of ReverseGeocode calls.
func (g *Geocoder) Calls() int {
	return int(g.calls.Load())
}

// CityAddress returns raw components resolving to city and governorate.
func CityAddress(city, governorate, country string) *geocoding.RawAddress {
	return &geocoding.RawAddress{
		Components: []geocoding.Component{
			{LongName: city, Types: []string{"locality"}},
			{LongName: governorate, Types: []string{"administrative_area_level_1"}},
			{LongName: country, Types: []string{"country"}},
		},
	}
}
