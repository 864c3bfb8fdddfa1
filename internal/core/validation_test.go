package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestValidateRequired(t *testing.T) {
	var nilTime *time.Time
	when := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	blank := "   "
	cases := []struct {
		name   string
		fields []RequiredField
		want   []string
	}{
		{"all present", []RequiredField{{"A", "x"}, {"B", &when}, {"C", when}}, []string{}},
		{"whitespace is missing", []RequiredField{{"A", "  \t"}, {"B", "ok"}}, []string{"A"}},
		{"nil pointer and nil", []RequiredField{{"A", nilTime}, {"B", nil}}, []string{"A", "B"}},
		{"zero time", []RequiredField{{"A", time.Time{}}}, []string{"A"}},
		{"blank string pointer", []RequiredField{{"A", &blank}}, []string{"A"}},
		{"non string value", []RequiredField{{"A", 42}}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateRequired(tc.fields)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ValidateRequired = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateInputReportsLabelsInOrder(t *testing.T) {
	err := ValidateInput(RecordInput{DodDate: "2024-13-45"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{LabelDeceasedName, LabelBodyTagNo, LabelDateOfDeath, LabelStorageLocation}
	if !reflect.DeepEqual(verr.Missing, want) {
		t.Fatalf("missing = %v", verr.Missing)
	}
	if verr.Error() != "please fill required fields: Deceased Name, Body Tag Number, Date of Death, Storage Location" {
		t.Fatalf("unexpected message %q", verr.Error())
	}
	if err := ValidateInput(janeDoe()); err != nil {
		t.Fatalf("complete input rejected: %v", err)
	}
}

func TestValidateInputAcceptsUnpaddedDateOfDeath(t *testing.T) {
	in := RecordInput{DeceasedName: "Jane Doe", BodyTagNo: "B-102", DodDate: "2024-3-1", StorageLocation: "Drawer 4"}
	if err := ValidateInput(in); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
