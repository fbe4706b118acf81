// Package geo provides geospatial utilities.
package geo

import (
	"math"
)

const (
	// EarthRadiusKm is the Earth's radius in kilometers.
	EarthRadiusKm = 6371.0
	// KmPerDegreeLat is the approximate length of one degree of latitude.
	KmPerDegreeLat = 111.0
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// NewPoint creates a new Point.
func NewPoint(lat, lng float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// IsValid checks if the point has valid coordinates.
func (p Point) IsValid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineDistance calculates the great-circle distance between two points
// using the Haversine formula. Returns distance in kilometers.
func HaversineDistance(p1, p2 Point) float64 {
	lat1 := degreesToRadians(p1.Lat)
	lat2 := degreesToRadians(p2.Lat)
	deltaLat := degreesToRadians(p2.Lat - p1.Lat)
	deltaLng := degreesToRadians(p2.Lng - p1.Lng)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Offset returns the point displaced northKm to the north and eastKm to the
// east of p, using a flat-earth approximation that is accurate for the few
// tens of kilometers a facility search covers.
func Offset(p Point, northKm, eastKm float64) Point {
	lat := p.Lat + northKm/KmPerDegreeLat
	cosLat := math.Cos(degreesToRadians(p.Lat))
	if cosLat < 1e-6 {
		return Point{Lat: lat, Lng: p.Lng}
	}
	return Point{Lat: lat, Lng: p.Lng + eastKm/(KmPerDegreeLat*cosLat)}
}

// BoundingBox is an axis-aligned latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// BoundingBoxFromPoint creates a bounding box around a point.
func BoundingBoxFromPoint(center Point, radiusKm float64) BoundingBox {
	latDelta := radiusKm / KmPerDegreeLat
	lngDelta := radiusKm / (KmPerDegreeLat * math.Cos(degreesToRadians(center.Lat)))

	return BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLng: center.Lng - lngDelta,
		MaxLng: center.Lng + lngDelta,
	}
}

// Contains checks if a point is within the bounding box. Edges are inclusive.
func (bb BoundingBox) Contains(p Point) bool {
	return p.Lat >= bb.MinLat && p.Lat <= bb.MaxLat &&
		p.Lng >= bb.MinLng && p.Lng <= bb.MaxLng
}

// IsValid reports whether the box has ordered, in-range corners.
func (bb BoundingBox) IsValid() bool {
	return bb.MinLat <= bb.MaxLat && bb.MinLng <= bb.MaxLng &&
		Point{Lat: bb.MinLat, Lng: bb.MinLng}.IsValid() &&
		Point{Lat: bb.MaxLat, Lng: bb.MaxLng}.IsValid()
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
