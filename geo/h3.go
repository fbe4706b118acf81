package geo

import (
	"math"

	"github.com/uber/h3-go/v4"
)

// H3Resolution defines the H3 resolution levels.
// Resolution 6: ~36 km² average hexagon area (~3.7 km edge)
// Resolution 7: ~5.16 km² average hexagon area (~1.4 km edge)
// Resolution 8: ~0.74 km² average hexagon area (~0.53 km edge)
type H3Resolution int

const (
	// H3ResolutionRegion suits metropolitan-scale lookups.
	H3ResolutionRegion H3Resolution = 6
	// H3ResolutionCity is for city-level operations.
	H3ResolutionCity H3Resolution = 7
	// H3ResolutionNeighborhood is for neighborhood-level operations.
	H3ResolutionNeighborhood H3Resolution = 8
)

// approximate hexagon edge lengths in km, indexed by resolution.
var h3EdgeKm = map[H3Resolution]float64{
	H3ResolutionRegion:       3.72,
	H3ResolutionCity:         1.41,
	H3ResolutionNeighborhood: 0.53,
}

// H3Index maps points to H3 cells at a fixed resolution.
type H3Index struct {
	resolution H3Resolution
}

// NewH3Index creates a new H3 indexer with the specified resolution.
func NewH3Index(resolution H3Resolution) *H3Index {
	if _, ok := h3EdgeKm[resolution]; !ok {
		resolution = H3ResolutionCity
	}
	return &H3Index{resolution: resolution}
}

// Resolution returns the configured resolution.
func (h *H3Index) Resolution() H3Resolution {
	return h.resolution
}

// Cell converts a point to its H3 cell.
func (h *H3Index) Cell(p Point) h3.Cell {
	return h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), int(h.resolution))
}

// RingsForRadius returns the grid distance k such that the k-disk around a
// point's cell covers every point within radiusKm of it.
func (h *H3Index) RingsForRadius(radiusKm float64) int {
	if radiusKm <= 0 {
		return 0
	}
	// Adjacent cell centers are sqrt(3) average edges apart, but cell size
	// varies across the globe; stepping one edge per ring stays covering for
	// the smallest cells. One extra ring absorbs the offset between the
	// point and its cell center.
	return int(math.Ceil(radiusKm/h3EdgeKm[h.resolution])) + 1
}

// Disk returns every cell within the radius of p.
func (h *H3Index) Disk(p Point, radiusKm float64) []h3.Cell {
	return h3.GridDisk(h.Cell(p), h.RingsForRadius(radiusKm))
}
