package facility

import (
	"sort"

	"github.com/carefinder/carefinder/geo"
)

// Rank sets DistanceKm from center on every facility, drops those farther
// than radiusKm and sorts the rest by distance, then name. The input slice
// is not modified.
func Rank(center geo.Point, radiusKm float64, facilities []Facility) []Facility {
	out := make([]Facility, 0, len(facilities))
	for _, f := range facilities {
		f.DistanceKm = geo.HaversineDistance(center, f.Location)
		if f.DistanceKm > radiusKm {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Name < out[j].Name
	})
	return out
}
