package facility

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/uber/h3-go/v4"

	"github.com/carefinder/carefinder/geo"
)

//go:embed fallback_facilities.json
var bundledFacilities []byte

// maxDiskRings bounds the H3 disk walked per query; wider searches scan the
// whole dataset instead.
const maxDiskRings = 25

// Dataset is an immutable set of known facilities used when live search
// yields nothing. It is safe for concurrent use.
type Dataset struct {
	facilities []Facility
	index      *geo.H3Index
	cells      map[h3.Cell][]int
}

type datasetRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Category Category `json:"category"`
}

// LoadDataset decodes a JSON array of facility records and indexes them.
func LoadDataset(r io.Reader) (*Dataset, error) {
	var records []datasetRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode facility dataset: %w", err)
	}

	facilities := make([]Facility, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		loc := geo.NewPoint(rec.Lat, rec.Lng)
		switch {
		case rec.ID == "":
			return nil, fmt.Errorf("facility record %d: missing id", i)
		case !loc.IsValid():
			return nil, fmt.Errorf("facility %s: invalid coordinates (%v, %v)", rec.ID, rec.Lat, rec.Lng)
		case !rec.Category.IsValid():
			return nil, fmt.Errorf("facility %s: unknown category %q", rec.ID, rec.Category)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("facility %s: duplicate id", rec.ID)
		}
		seen[rec.ID] = struct{}{}

		facilities = append(facilities, Facility{
			ID:       rec.ID,
			Name:     rec.Name,
			Address:  rec.Address,
			Location: loc,
			Category: rec.Category,
		})
	}

	return NewDataset(facilities), nil
}

// BundledDataset returns the dataset compiled into the binary.
func BundledDataset() (*Dataset, error) {
	return LoadDataset(bytes.NewReader(bundledFacilities))
}

// NewDataset indexes facilities by H3 cell. The slice is copied.
func NewDataset(facilities []Facility) *Dataset {
	d := &Dataset{
		facilities: append([]Facility(nil), facilities...),
		index:      geo.NewH3Index(geo.H3ResolutionRegion),
		cells:      make(map[h3.Cell][]int),
	}
	for i, f := range d.facilities {
		cell := d.index.Cell(f.Location)
		d.cells[cell] = append(d.cells[cell], i)
	}
	return d
}

// Len returns the number of facilities in the dataset.
func (d *Dataset) Len() int {
	return len(d.facilities)
}

// Within returns copies of the facilities within radiusKm of center,
// ranked by distance.
func (d *Dataset) Within(center geo.Point, radiusKm float64) []Facility {
	if radiusKm <= 0 || !center.IsValid() {
		return []Facility{}
	}

	if d.index.RingsForRadius(radiusKm) > maxDiskRings {
		return Rank(center, radiusKm, d.scan(center, radiusKm))
	}

	var candidates []Facility
	for _, cell := range d.index.Disk(center, radiusKm) {
		for _, i := range d.cells[cell] {
			candidates = append(candidates, d.facilities[i])
		}
	}
	return Rank(center, radiusKm, candidates)
}

// scan prefilters the full dataset with a padded bounding box. Boxes that
// cross a pole or the antimeridian fall back to every facility.
func (d *Dataset) scan(center geo.Point, radiusKm float64) []Facility {
	bb := geo.BoundingBoxFromPoint(center, radiusKm*1.05)
	if !bb.IsValid() {
		return d.facilities
	}
	candidates := make([]Facility, 0, len(d.facilities))
	for _, f := range d.facilities {
		if bb.Contains(f.Location) {
			candidates = append(candidates, f)
		}
	}
	return candidates
}
