package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"mortuary/pkg/domain"
)

// Labels of the required record fields, in the order they are reported.
const (
	LabelDeceasedName    = "Deceased Name"
	LabelBodyTagNo       = "Body Tag Number"
	LabelDateOfDeath     = "Date of Death"
	LabelStorageLocation = "Storage Location"
)

var validate = validator.New()

// RequiredField pairs a display label with the collected value. Value may be
// a string, a time.Time, a pointer, or nil.
type RequiredField struct {
	Label string
	Value any
}

// ValidateRequired returns the labels of fields whose value is missing: a
// blank string after trimming, a nil pointer, a zero time, or nil. An empty
// result means every field is present.
func ValidateRequired(fields []RequiredField) []string {
	missing := []string{}
	for _, f := range fields {
		if err := validate.Var(presence(f.Value), "required"); err != nil {
			missing = append(missing, f.Label)
		}
	}
	return missing
}

// presence reduces a collected value to the string the required rule checks.
func presence(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case *string:
		if val == nil {
			return ""
		}
		return strings.TrimSpace(*val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil || val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// requiredFields maps a record input onto the required set shared by the
// create and edit flows. A date of death that does not parse counts as unset.
func requiredFields(in RecordInput) []RequiredField {
	var dod *time.Time
	if d, err := domain.ParseDate(in.DodDate); err == nil {
		dod = &d
	}
	return []RequiredField{
		{Label: LabelDeceasedName, Value: in.DeceasedName},
		{Label: LabelBodyTagNo, Value: in.BodyTagNo},
		{Label: LabelDateOfDeath, Value: dod},
		{Label: LabelStorageLocation, Value: in.StorageLocation},
	}
}

// ValidateInput checks the required set for in and returns a
// *ValidationError when anything is missing.
func ValidateInput(in RecordInput) error {
	if missing := ValidateRequired(requiredFields(in)); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
