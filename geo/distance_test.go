package geo

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name     string
		p1, p2   Point
		expected float64
		delta    float64
	}{
		{"same point", NewPoint(30.0444, 31.2357), NewPoint(30.0444, 31.2357), 0, 0.0001},
		{"cairo to alexandria", NewPoint(30.0444, 31.2357), NewPoint(31.2001, 29.9187), 179, 3},
		{"cairo to mansoura", NewPoint(30.0444, 31.2357), NewPoint(31.0409, 31.3785), 111, 3},
		{"one degree of latitude", NewPoint(0, 0), NewPoint(1, 0), 111.19, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineDistance(tt.p1, tt.p2)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("HaversineDistance() = %f, want %f ± %f", got, tt.expected, tt.delta)
			}
		})
	}
}

func TestHaversineDistance_Symmetric(t *testing.T) {
	a := NewPoint(30.0444, 31.2357)
	b := NewPoint(30.1, 31.3)
	if d1, d2 := HaversineDistance(a, b), HaversineDistance(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestPoint_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		p     Point
		valid bool
	}{
		{"cairo", NewPoint(30.0444, 31.2357), true},
		{"north pole", NewPoint(90, 0), true},
		{"date line", NewPoint(0, -180), true},
		{"lat too high", NewPoint(90.1, 0), false},
		{"lng too low", NewPoint(0, -180.5), false},
		{"nan", NewPoint(math.NaN(), 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	center := NewPoint(30.0444, 31.2357)

	north := Offset(center, 5, 0)
	if d := HaversineDistance(center, north); math.Abs(d-5) > 0.05 {
		t.Errorf("north offset distance = %f, want ~5", d)
	}

	east := Offset(center, 0, 5)
	if d := HaversineDistance(center, east); math.Abs(d-5) > 0.05 {
		t.Errorf("east offset distance = %f, want ~5", d)
	}
	if east.Lat != center.Lat {
		t.Errorf("east offset changed latitude: %f", east.Lat)
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	bb := BoundingBox{MinLat: 31.05, MaxLat: 31.10, MinLng: 31.76, MaxLng: 31.82}

	if !bb.Contains(NewPoint(31.075, 31.793)) {
		t.Error("expected point inside box")
	}
	if !bb.Contains(NewPoint(31.05, 31.76)) {
		t.Error("expected corner to be inclusive")
	}
	if bb.Contains(NewPoint(31.2, 31.793)) {
		t.Error("expected point outside box")
	}
	if !bb.IsValid() {
		t.Error("expected box to be valid")
	}
	if (BoundingBox{MinLat: 2, MaxLat: 1}).IsValid() {
		t.Error("inverted box should be invalid")
	}
}

func TestBoundingBoxFromPoint(t *testing.T) {
	center := NewPoint(30.0444, 31.2357)
	bb := BoundingBoxFromPoint(center, 3)

	if !bb.Contains(Offset(center, 2, 2)) {
		t.Error("point 2km north and east should be inside a 3km box")
	}
	if bb.Contains(Offset(center, 0, 4)) {
		t.Error("point 4km east should be outside a 3km box")
	}
	if !bb.IsValid() {
		t.Errorf("unexpected box %+v", bb)
	}
	if BoundingBoxFromPoint(NewPoint(10, 179.99), 50).IsValid() {
		t.Error("box across the antimeridian should be invalid")
	}
}

func TestPolygon_Contains(t *testing.T) {
	square := NewPolygon([]Point{
		{Lat: 30.0, Lng: 31.0},
		{Lat: 30.0, Lng: 31.5},
		{Lat: 30.5, Lng: 31.5},
		{Lat: 30.5, Lng: 31.0},
	})

	if !square.Contains(NewPoint(30.2, 31.2)) {
		t.Error("expected point inside polygon")
	}
	if square.Contains(NewPoint(30.7, 31.2)) {
		t.Error("expected point outside polygon")
	}
	if bb := square.BoundingBox(); bb.MinLat != 30.0 || bb.MaxLng != 31.5 {
		t.Errorf("unexpected bounding box %+v", bb)
	}
}

func TestEncode(t *testing.T) {
	p := NewPoint(30.0444, 31.2357)

	h := Encode(p, 7)
	if len(h) != 7 {
		t.Fatalf("expected 7 chars, got %q", h)
	}
	if !DecodeBounds(h).Contains(p) {
		t.Errorf("decoded bounds of %q do not contain the source point", h)
	}
	if Encode(p, 5) != h[:5] {
		t.Error("shorter precision should be a prefix")
	}
}

func TestH3Index_DiskCoversRadius(t *testing.T) {
	idx := NewH3Index(H3ResolutionCity)
	center := NewPoint(30.0444, 31.2357)

	cells := make(map[string]bool)
	for _, c := range idx.Disk(center, 5) {
		cells[c.String()] = true
	}

	for _, p := range []Point{Offset(center, 4.9, 0), Offset(center, 0, -4.9), Offset(center, 3, 3)} {
		if !cells[idx.Cell(p).String()] {
			t.Errorf("point %+v within radius not covered by disk", p)
		}
	}
}
