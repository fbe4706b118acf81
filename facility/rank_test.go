package facility

import (
	"math"
	"testing"

	"github.com/carefinder/carefinder/geo"
)

var cairo = geo.NewPoint(30.0444, 31.2357)

func at(km float64) geo.Point {
	return geo.Offset(cairo, km, 0)
}

func TestRank_SortsAndFilters(t *testing.T) {
	in := []Facility{
		{ID: "h3", Name: "Far Hospital", Location: at(9.9), Category: CategoryHospital},
		{ID: "p1", Name: "Near Pharmacy", Location: at(0.5), Category: CategoryPharmacy},
		{ID: "out", Name: "Outside", Location: at(12), Category: CategoryClinic},
		{ID: "h1", Name: "Close Hospital", Location: at(1.2), Category: CategoryHospital},
	}

	got := Rank(cairo, 10, in)

	wantIDs := []string{"p1", "h1", "h3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d facilities, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	if math.Abs(got[0].DistanceKm-0.5) > 0.01 {
		t.Errorf("distance = %v, want ~0.5", got[0].DistanceKm)
	}
	if in[1].DistanceKm != 0 {
		t.Error("input slice was modified")
	}
}

func TestRank_TiesBrokenByName(t *testing.T) {
	loc := at(2)
	in := []Facility{
		{ID: "2", Name: "Zamalek Clinic", Location: loc},
		{ID: "1", Name: "Abbassia Clinic", Location: loc},
		{ID: "3", Name: "Maadi Clinic", Location: loc},
	}

	got := Rank(cairo, 5, in)
	want := []string{"Abbassia Clinic", "Maadi Clinic", "Zamalek Clinic"}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("got[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestRank_RadiusBound(t *testing.T) {
	var in []Facility
	for i := 0; i < 40; i++ {
		km := float64(i) * 0.5
		in = append(in, Facility{ID: string(rune('a' + i)), Location: geo.Offset(cairo, km/2, km/2)})
	}

	for _, radius := range []float64{0.5, 1, 3, 7.5, 10} {
		got := Rank(cairo, radius, in)
		for i, f := range got {
			if f.DistanceKm > radius || f.DistanceKm < 0 {
				t.Fatalf("radius %v: facility %s at %v km", radius, f.ID, f.DistanceKm)
			}
			if i > 0 && got[i-1].DistanceKm > f.DistanceKm {
				t.Fatalf("radius %v: not sorted at %d", radius, i)
			}
		}
	}
}

func TestCountAndFilterCategory(t *testing.T) {
	in := []Facility{
		{ID: "1", Category: CategoryHospital},
		{ID: "2", Category: CategoryPharmacy},
		{ID: "3", Category: CategoryHospital},
	}

	counts := CountByCategory(in)
	if counts[CategoryHospital] != 2 || counts[CategoryPharmacy] != 1 || len(counts) != 2 {
		t.Errorf("unexpected counts %v", counts)
	}

	if got := FilterCategory(in, CategoryHospital); len(got) != 2 {
		t.Errorf("got %d hospitals, want 2", len(got))
	}
	if got := FilterCategory(in, ""); len(got) != 3 {
		t.Errorf("empty filter should keep all, got %d", len(got))
	}
	if got := FilterCategory(in, CategoryEmergency); len(got) != 0 {
		t.Errorf("got %d emergency facilities, want 0", len(got))
	}
}
