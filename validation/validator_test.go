package validation

import (
	"math"
	"testing"

	"github.com/carefinder/carefinder/geo"
)

func TestValidateLatitude(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		wantErr bool
	}{
		{"cairo", 30.0444, false},
		{"southern hemisphere", -33.8688, false},
		{"zero", 0, false},
		{"max", 90, false},
		{"min", -90, false},
		{"too high", 91, true},
		{"too low", -91, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GetValidator().Var(tt.lat, "latitude")
			if (err != nil) != tt.wantErr {
				t.Errorf("Var(%v, 'latitude') error = %v, wantErr %v", tt.lat, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLongitude(t *testing.T) {
	tests := []struct {
		name    string
		lng     float64
		wantErr bool
	}{
		{"cairo", 31.2357, false},
		{"max", 180, false},
		{"min", -180, false},
		{"too high", 180.5, true},
		{"too low", -181, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GetValidator().Var(tt.lng, "longitude")
			if (err != nil) != tt.wantErr {
				t.Errorf("Var(%v, 'longitude') error = %v, wantErr %v", tt.lng, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	tests := []struct {
		category string
		wantErr  bool
	}{
		{"hospital", false},
		{"clinic", false},
		{"pharmacy", false},
		{"emergency", false},
		{"dentist", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			err := GetValidator().Var(tt.category, "category")
			if (err != nil) != tt.wantErr {
				t.Errorf("Var(%q, 'category') error = %v, wantErr %v", tt.category, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRadius(t *testing.T) {
	tests := []struct {
		name    string
		radius  float64
		wantErr bool
	}{
		{"positive", 5, false},
		{"small", 0.1, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"infinite", math.Inf(1), true},
		{"nan", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GetValidator().Var(tt.radius, "radius")
			if (err != nil) != tt.wantErr {
				t.Errorf("Var(%v, 'radius') error = %v, wantErr %v", tt.radius, err, tt.wantErr)
			}
		})
	}
}

type nearbyQuery struct {
	Center   geo.Point `json:"center"`
	RadiusKm float64   `json:"radius_km" validate:"radius,lte=50"`
	Category string    `json:"category" validate:"omitempty,category"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      nearbyQuery
		wantFields []string
	}{
		{
			name:  "valid",
			input: nearbyQuery{Center: geo.NewPoint(30.0444, 31.2357), RadiusKm: 10, Category: "hospital"},
		},
		{
			name:  "empty category allowed",
			input: nearbyQuery{Center: geo.NewPoint(30.0444, 31.2357), RadiusKm: 10},
		},
		{
			name:       "bad latitude and radius",
			input:      nearbyQuery{Center: geo.NewPoint(120, 31.2357), RadiusKm: 0},
			wantFields: []string{"center.lat", "radius_km"},
		},
		{
			name:       "radius above cap",
			input:      nearbyQuery{Center: geo.NewPoint(30, 31), RadiusKm: 80},
			wantFields: []string{"radius_km"},
		},
		{
			name:       "unknown category",
			input:      nearbyQuery{Center: geo.NewPoint(30, 31), RadiusKm: 5, Category: "spa"},
			wantFields: []string{"category"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ParseValidationErrors(Validate(tt.input))
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("got %d errors (%v), want %d", len(errs), errs, len(tt.wantFields))
			}
			details := errs.Details()
			for _, f := range tt.wantFields {
				if _, ok := details[f]; !ok {
					t.Errorf("missing error for field %q in %v", f, details)
				}
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	ve := ValidationErrors{
		{Field: "radius_km", Message: "must be a positive distance"},
		{Field: "category", Message: "is invalid"},
	}
	want := "radius_km: must be a positive distance; category: is invalid"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if ValidationErrors(nil).Error() != "" {
		t.Error("empty errors should render as empty string")
	}
	if ParseValidationErrors(nil) != nil {
		t.Error("nil error should parse to nil")
	}
}
