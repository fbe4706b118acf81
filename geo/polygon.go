package geo

// Polygon is a simple closed ring of vertices; the last vertex connects
// back to the first. Region outlines use it where a box is too coarse.
type Polygon struct {
	Points []Point `json:"points"`
}

// NewPolygon creates a polygon from its vertices.
func NewPolygon(points []Point) *Polygon {
	return &Polygon{Points: points}
}

// Contains reports whether point lies inside the ring (even-odd rule).
// Points exactly on an edge may fall either way.
func (p *Polygon) Contains(point Point) bool {
	n := len(p.Points)
	if n < 3 {
		return false
	}

	inside := false
	prev := p.Points[n-1]
	for _, cur := range p.Points {
		if (cur.Lat > point.Lat) != (prev.Lat > point.Lat) {
			crossLng := cur.Lng + (point.Lat-cur.Lat)*(prev.Lng-cur.Lng)/(prev.Lat-cur.Lat)
			if point.Lng < crossLng {
				inside = !inside
			}
		}
		prev = cur
	}
	return inside
}

// BoundingBox returns the smallest box enclosing every vertex.
func (p *Polygon) BoundingBox() BoundingBox {
	if len(p.Points) == 0 {
		return BoundingBox{}
	}

	first := p.Points[0]
	bb := BoundingBox{MinLat: first.Lat, MaxLat: first.Lat, MinLng: first.Lng, MaxLng: first.Lng}
	for _, pt := range p.Points[1:] {
		bb.MinLat = min(bb.MinLat, pt.Lat)
		bb.MaxLat = max(bb.MaxLat, pt.Lat)
		bb.MinLng = min(bb.MinLng, pt.Lng)
		bb.MaxLng = max(bb.MaxLng, pt.Lng)
	}
	return bb
}

// IsValid reports whether the polygon has at least three in-range vertices.
func (p *Polygon) IsValid() bool {
	if len(p.Points) < 3 {
		return false
	}
	for _, pt := range p.Points {
		if !pt.IsValid() {
			return false
		}
	}
	return true
}
