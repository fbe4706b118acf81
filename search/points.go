package search

import (
	"github.com/carefinder/carefinder/geo"
)

// DefaultMaxPoints caps the number of search points per request.
const DefaultMaxPoints = 8

// gridSteps is the number of grid steps from the center to the radius.
const gridSteps = 3

// GeneratePoints returns up to max points covering the circle around center.
// The center always comes first. The remaining points lie on a grid with a
// step of radiusKm/3; only grid points within radiusKm of the center are
// kept. When more grid points qualify than fit under max, an evenly spaced
// subset is taken in grid order so the whole circle stays covered.
func GeneratePoints(center geo.Point, radiusKm float64, max int) []geo.Point {
	if max <= 0 {
		max = DefaultMaxPoints
	}
	points := []geo.Point{center}
	if max == 1 || radiusKm <= 0 {
		return points
	}

	step := radiusKm / gridSteps
	seen := map[geo.Point]struct{}{center: {}}
	var grid []geo.Point
	for i := -gridSteps; i <= gridSteps; i++ {
		for j := -gridSteps; j <= gridSteps; j++ {
			p := geo.Offset(center, float64(i)*step, float64(j)*step)
			if _, dup := seen[p]; dup {
				continue
			}
			if !p.IsValid() || geo.HaversineDistance(center, p) > radiusKm {
				continue
			}
			seen[p] = struct{}{}
			grid = append(grid, p)
		}
	}

	room := max - 1
	if len(grid) <= room {
		return append(points, grid...)
	}
	for k := 0; k < room; k++ {
		points = append(points, grid[k*len(grid)/room])
	}
	return points
}
