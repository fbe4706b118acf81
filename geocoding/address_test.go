package geocoding

import (
	"testing"

	"github.com/carefinder/carefinder/geo"
)

func TestParseComponents(t *testing.T) {
	raw := &RawAddress{
		FormattedAddress: "12 Talaat Harb, Qasr El Nil, Cairo Governorate, Egypt",
		Components: []Component{
			{LongName: "12", Types: []string{"street_number"}},
			{LongName: "Talaat Harb", Types: []string{"route"}},
			{LongName: "Wust El Balad", Types: []string{"neighborhood", "political"}},
			{LongName: "Qasr El Nil", Types: []string{"administrative_area_level_3", "political"}},
			{LongName: "Cairo Markaz", Types: []string{"administrative_area_level_2", "political"}},
			{LongName: "Cairo", Types: []string{"locality", "political"}},
			{LongName: "Cairo Governorate", Types: []string{"administrative_area_level_1", "political"}},
			{LongName: "Egypt", ShortName: "EG", Types: []string{"country", "political"}},
		},
	}

	got := ParseComponents(raw)
	want := AddressResolution{
		PlaceName:    Unknown,
		Neighborhood: "Wust El Balad",
		Street:       "12 Talaat Harb",
		District:     "Qasr El Nil",
		City:         "Cairo",
		Governorate:  "Cairo Governorate",
		Country:      "Egypt",
		FullAddress:  raw.FormattedAddress,
	}
	if got != want {
		t.Errorf("ParseComponents() =\n%+v\nwant\n%+v", got, want)
	}
	if !got.Meaningful() {
		t.Error("expected a meaningful address")
	}
}

func TestParseComponents_SparseInput(t *testing.T) {
	tests := []struct {
		name           string
		raw            *RawAddress
		wantMeaningful bool
		wantFull       string
	}{
		{"nil", nil, false, Unknown},
		{"country only", &RawAddress{Components: []Component{{LongName: "Egypt", Types: []string{"country"}}}}, false, "Egypt"},
		{"governorate only", &RawAddress{Components: []Component{{LongName: "Dakahlia", Types: []string{"administrative_area_level_1"}}}}, true, "Dakahlia"},
		{"blank names ignored", &RawAddress{Components: []Component{{LongName: "  ", Types: []string{"locality"}}}}, false, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseComponents(tt.raw)
			assertComplete(t, got)
			if got.Meaningful() != tt.wantMeaningful {
				t.Errorf("Meaningful() = %v, want %v", got.Meaningful(), tt.wantMeaningful)
			}
			if got.FullAddress != tt.wantFull {
				t.Errorf("FullAddress = %q, want %q", got.FullAddress, tt.wantFull)
			}
		})
	}
}

func TestInferCountry(t *testing.T) {
	tests := []struct {
		point geo.Point
		want  string
	}{
		{geo.NewPoint(30.0444, 31.2357), "Egypt"},
		{geo.NewPoint(24.7136, 46.6753), "Saudi Arabia"},
		{geo.NewPoint(32.8872, 13.1913), "Libya"},
		{geo.NewPoint(15.5007, 32.5599), "Sudan"},
		{geo.NewPoint(-30, -30), Unknown},
	}
	for _, tt := range tests {
		if got := InferCountry(tt.point); got != tt.want {
			t.Errorf("InferCountry(%v) = %q, want %q", tt.point, got, tt.want)
		}
	}
}

func assertComplete(t *testing.T, a AddressResolution) {
	t.Helper()
	for i, f := range a.fields() {
		if *f == "" {
			t.Errorf("field %d is empty in %+v", i, a)
		}
	}
}
