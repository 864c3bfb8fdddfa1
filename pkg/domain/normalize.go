package domain

import "strings"

// enumColumn pairs an enumerated column with its option set and the value
// substituted for anything outside that set.
type enumColumn struct {
	column   string
	options  []string
	fallback string
}

var enumColumns = []enumColumn{
	{column: ColSex, options: SexOptions, fallback: string(SexUnknown)},
	{column: ColIDDocsSeen, options: YesNoOptions, fallback: string(No)},
	{column: ColAutopsyRequired, options: AutopsyOptions, fallback: string(AutopsyPending)},
	{column: ColReleaseStatus, options: StatusOptions, fallback: string(StatusInStorage)},
}

// Coercion records a single enum value that was replaced by its default.
type Coercion struct {
	RecordID string `json:"record_id"`
	Column   string `json:"column"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// EnumOptions returns the option set for an enumerated column.
func EnumOptions(column string) ([]string, bool) {
	for _, ec := range enumColumns {
		if ec.column == column {
			return append([]string(nil), ec.options...), true
		}
	}
	return nil, false
}

// EnumDefault returns the fallback value for an enumerated column.
func EnumDefault(column string) string {
	for _, ec := range enumColumns {
		if ec.column == column {
			return ec.fallback
		}
	}
	return ""
}

// Contains reports whether value is one of options.
func Contains(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}

// Canonical resolves value to the matching member of options, ignoring case
// and surrounding space.
func Canonical(options []string, value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, opt := range options {
		if strings.EqualFold(opt, value) {
			return opt, true
		}
	}
	return "", false
}

// Normalize returns a copy of r whose enumerated fields all hold a value from
// their option set, together with one Coercion per replaced value. Case
// variants of an option are rewritten to its canonical spelling and are not
// reported.
func Normalize(r Record) (Record, []Coercion) {
	var coercions []Coercion
	for _, ec := range enumColumns {
		current := r.Get(ec.column)
		if canon, ok := Canonical(ec.options, current); ok {
			if canon != current {
				r.Set(ec.column, canon)
			}
			continue
		}
		r.Set(ec.column, ec.fallback)
		coercions = append(coercions, Coercion{RecordID: r.RecordID, Column: ec.column, From: current, To: ec.fallback})
	}
	return r, coercions
}

// NormalizeAll applies Normalize to every record, preserving order.
func NormalizeAll(records []Record) ([]Record, []Coercion) {
	out := make([]Record, len(records))
	var coercions []Coercion
	for i, r := range records {
		var cs []Coercion
		out[i], cs = Normalize(r)
		coercions = append(coercions, cs...)
	}
	return out, coercions
}
