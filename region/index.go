// Package region is an offline index of named local areas, consulted before
// any geocoding provider.
package region

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/carefinder/carefinder/geo"
)

//go:embed regions.json
var bundledRegions []byte

// Shape is an area that can test point membership.
type Shape interface {
	Contains(p geo.Point) bool
}

// Region is a named area with its resolved administrative labels.
type Region struct {
	Name         string
	Neighborhood string
	District     string
	City         string
	Governorate  string
	Country      string
	Shape        Shape

	bounds geo.BoundingBox
}

// Index answers point-in-region queries over an ordered region list. When
// regions overlap the earliest one wins.
type Index struct {
	regions []Region
}

// NewIndex builds an index from regions, keeping their order.
func NewIndex(regions []Region) *Index {
	idx := &Index{regions: make([]Region, 0, len(regions))}
	for _, r := range regions {
		if r.Shape == nil {
			continue
		}
		r.bounds = boundsOf(r.Shape)
		idx.regions = append(idx.regions, r)
	}
	return idx
}

func boundsOf(s Shape) geo.BoundingBox {
	switch v := s.(type) {
	case geo.BoundingBox:
		return v
	case *geo.Polygon:
		return v.BoundingBox()
	}
	return geo.BoundingBox{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}
}

// Lookup returns the first region containing p.
func (i *Index) Lookup(p geo.Point) (Region, bool) {
	if i == nil || !p.IsValid() {
		return Region{}, false
	}
	for _, r := range i.regions {
		if r.bounds.Contains(p) && r.Shape.Contains(p) {
			return r, true
		}
	}
	return Region{}, false
}

// Len returns the number of indexed regions.
func (i *Index) Len() int {
	return len(i.regions)
}

type record struct {
	Name         string           `json:"name"`
	Neighborhood string           `json:"neighborhood"`
	District     string           `json:"district"`
	City         string           `json:"city"`
	Governorate  string           `json:"governorate"`
	Country      string           `json:"country"`
	BBox         *geo.BoundingBox `json:"bbox,omitempty"`
	Polygon      []geo.Point      `json:"polygon,omitempty"`
}

// Load decodes a JSON array of region records. Each record carries either
// a bbox or a polygon of at least three points.
func Load(r io.Reader) (*Index, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}

	regions := make([]Region, 0, len(records))
	for n, rec := range records {
		if rec.Name == "" {
			return nil, fmt.Errorf("region %d: missing name", n)
		}

		var shape Shape
		switch {
		case rec.BBox != nil && len(rec.Polygon) > 0:
			return nil, fmt.Errorf("region %s: both bbox and polygon given", rec.Name)
		case rec.BBox != nil:
			if !rec.BBox.IsValid() {
				return nil, fmt.Errorf("region %s: invalid bbox", rec.Name)
			}
			shape = *rec.BBox
		case len(rec.Polygon) > 0:
			poly := geo.NewPolygon(rec.Polygon)
			if !poly.IsValid() {
				return nil, fmt.Errorf("region %s: invalid polygon", rec.Name)
			}
			shape = poly
		default:
			return nil, fmt.Errorf("region %s: no shape", rec.Name)
		}

		regions = append(regions, Region{
			Name:         rec.Name,
			Neighborhood: rec.Neighborhood,
			District:     rec.District,
			City:         rec.City,
			Governorate:  rec.Governorate,
			Country:      rec.Country,
			Shape:        shape,
		})
	}

	return NewIndex(regions), nil
}

// Default returns the index of the regions bundled with the binary.
func Default() (*Index, error) {
	return Load(bytes.NewReader(bundledRegions))
}
