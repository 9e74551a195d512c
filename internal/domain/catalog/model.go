package catalog

import (
	"time"

	"github.com/google/uuid"
)

// LabTest is one orderable entry in the test catalog.
type LabTest struct {
	ID                  uuid.UUID `json:"id"`
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Category            string    `json:"category"`
	SampleType          string    `json:"sample_type"`
	Price               float64   `json:"price"`
	TurnaroundTimeHours int       `json:"turnaround_time_hours"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Parameter is a single measurable analyte, e.g. Hemoglobin.
type Parameter struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	DataType      string    `json:"data_type"`
	DecimalPlaces int       `json:"decimal_places"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TestParameter links a test to one of its parameters.
type TestParameter struct {
	ID           uuid.UUID `json:"id"`
	TestID       uuid.UUID `json:"test_id"`
	ParameterID  uuid.UUID `json:"parameter_id"`
	DisplayOrder int       `json:"display_order"`
}

// ReferenceRange holds the normal and critical bounds for a parameter,
// optionally restricted by sex and age.
type ReferenceRange struct {
	ID           uuid.UUID `json:"id"`
	ParameterID  uuid.UUID `json:"parameter_id"`
	Sex          string    `json:"sex"` // Male, Female, All
	AgeMin       int       `json:"age_min"`
	AgeMax       int       `json:"age_max"`
	Unit         string    `json:"unit"`
	NormalLow    *float64  `json:"normal_low,omitempty"`
	NormalHigh   *float64  `json:"normal_high,omitempty"`
	CriticalLow  *float64  `json:"critical_low,omitempty"`
	CriticalHigh *float64  `json:"critical_high,omitempty"`
}

// AppliesTo reports whether the range covers a patient of the given sex and
// age in years.
func (r *ReferenceRange) AppliesTo(sex string, ageYears int) bool {
	if ageYears < r.AgeMin || ageYears > r.AgeMax {
		return false
	}
	switch r.Sex {
	case "All", "":
		return true
	case "Male":
		return sex == "M"
	case "Female":
		return sex == "F"
	}
	return false
}
