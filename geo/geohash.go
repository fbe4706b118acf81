package geo

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of p at the given precision, clamped to
// [1, 12]. Provider cache keys use it to share entries between nearby
// queries: at precision 6 a cell is roughly 1.2km by 0.6km.
func Encode(p Point, precision int) string {
	precision = min(max(precision, 1), 12)

	lat := [2]float64{-90, 90}
	lng := [2]float64{-180, 180}
	out := make([]byte, precision)

	even := true
	for i := range out {
		var idx byte
		for b := 0; b < 5; b++ {
			idx <<= 1
			if even {
				idx |= halve(&lng, p.Lng)
			} else {
				idx |= halve(&lat, p.Lat)
			}
			even = !even
		}
		out[i] = geohashAlphabet[idx]
	}
	return string(out)
}

// DecodeBounds returns the cell covered by hash. Characters outside the
// geohash alphabet are ignored.
func DecodeBounds(hash string) BoundingBox {
	lat := [2]float64{-90, 90}
	lng := [2]float64{-180, 180}

	even := true
	for i := 0; i < len(hash); i++ {
		idx := indexGeohash(hash[i])
		if idx < 0 {
			continue
		}
		for b := 4; b >= 0; b-- {
			bit := idx>>b&1 == 1
			if even {
				narrow(&lng, bit)
			} else {
				narrow(&lat, bit)
			}
			even = !even
		}
	}
	return BoundingBox{MinLat: lat[0], MaxLat: lat[1], MinLng: lng[0], MaxLng: lng[1]}
}

// halve narrows r to the half containing v and returns 1 for the upper half.
func halve(r *[2]float64, v float64) byte {
	mid := (r[0] + r[1]) / 2
	if v >= mid {
		r[0] = mid
		return 1
	}
	r[1] = mid
	return 0
}

func narrow(r *[2]float64, upper bool) {
	mid := (r[0] + r[1]) / 2
	if upper {
		r[0] = mid
	} else {
		r[1] = mid
	}
}

func indexGeohash(c byte) int {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	for i := 0; i < len(geohashAlphabet); i++ {
		if geohashAlphabet[i] == c {
			return i
		}
	}
	return -1
}
