// Package validation provides input validation utilities.
package validation

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/carefinder/carefinder/facility"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Use JSON tag names for error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		registerCustomValidations(validate)
	})

	return validate
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("latitude", validateLatitude)
	v.RegisterValidation("longitude", validateLongitude)

	// Facility category (hospital, clinic, pharmacy, emergency)
	v.RegisterValidation("category", validateCategory)

	// Finite, strictly positive distance
	v.RegisterValidation("radius", validateRadius)
}

// Latitude validates latitude values (-90 to 90).
func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

// Longitude validates longitude values (-180 to 180).
func validateLongitude(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180 && lng <= 180
}

func validateCategory(fl validator.FieldLevel) bool {
	return facility.Category(fl.Field().String()).IsValid()
}

func validateRadius(fl validator.FieldLevel) bool {
	r := fl.Field().Float()
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

// Validate validates a struct and returns validation errors.
func Validate(s interface{}) error {
	return GetValidator().Struct(s)
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.Field)
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// Details flattens the errors into a field → message map.
func (ve ValidationErrors) Details() map[string]string {
	if len(ve) == 0 {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, e := range ve {
		out[e.Field] = e.Message
	}
	return out
}

// ParseValidationErrors converts validator.ValidationErrors to our format.
func ParseValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var validationErrors ValidationErrors

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, e := range ve {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Namespace()[strings.Index(e.Namespace(), ".")+1:],
				Message: getErrorMessage(e),
			})
		}
	}

	return validationErrors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "latitude":
		return "must be a valid latitude (-90 to 90)"
	case "longitude":
		return "must be a valid longitude (-180 to 180)"
	case "category":
		return "must be one of: hospital, clinic, pharmacy, emergency"
	case "radius":
		return "must be a positive distance"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
