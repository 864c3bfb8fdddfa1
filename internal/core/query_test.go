package core

import (
	"reflect"
	"testing"
	"time"

	"mortuary/pkg/domain"
)

func fixtureRecords() []domain.Record {
	return []domain.Record{
		{RecordID: "1", DeceasedName: "Jane Doe", BodyTagNo: "B-102", Sex: "Female", DodDate: "2024-03-01", ReleaseStatus: "In Storage", StorageLocation: "Drawer 4", CauseOfDeath: "Cardiac arrest"},
		{RecordID: "2", DeceasedName: "John Roe", BodyTagNo: "B-103", Sex: "Male", DodDate: "2024-03-05", ReleaseStatus: "Released", StorageLocation: "Drawer 7", NextOfKin: "Mary Doe"},
		{RecordID: "3", DeceasedName: "Unknown", BodyTagNo: "X-1", Sex: "Unknown", DodDate: "not a date", ReleaseStatus: "Transferred", StorageLocation: "Cold room", CauseOfDeath: "Trauma"},
		{RecordID: "4", DeceasedName: "Ann Poe", BodyTagNo: "B-104", Sex: "Female", DodDate: "2024-02-20", ReleaseStatus: "Released", StorageLocation: "drawer 9"},
	}
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.RecordID
	}
	return out
}

func datePtr(s string) *time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestFilterPredicates(t *testing.T) {
	recs := fixtureRecords()
	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter keeps all in order", Filter{}, []string{"1", "2", "3", "4"}},
		{"status membership", Filter{Statuses: []string{"Released"}}, []string{"2", "4"}},
		{"sex membership", Filter{Sexes: []string{"Female", "Unknown"}}, []string{"1", "3", "4"}},
		{"date range inclusive drops unparseable", Filter{DodFrom: datePtr("2024-03-01"), DodTo: datePtr("2024-03-05")}, []string{"1", "2"}},
		{"open lower bound", Filter{DodTo: datePtr("2024-03-01")}, []string{"1", "4"}},
		{"text searches name tag and kin", Filter{Text: "  doe "}, []string{"1", "2"}},
		{"text matches tag", Filter{Text: "x-1"}, []string{"3"}},
		{"location substring", Filter{Location: "DRAWER"}, []string{"1", "2", "4"}},
		{"cause substring", Filter{Cause: "trauma"}, []string{"3"}},
		{"predicates combine with and", Filter{Statuses: []string{"Released"}, Sexes: []string{"Female"}, Location: "drawer"}, []string{"4"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(tc.filter.Apply(recs))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Apply = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterCompositionCommutes(t *testing.T) {
	recs := fixtureRecords()
	byStatus := Filter{Statuses: []string{"Released", "In Storage"}}
	bySex := Filter{Sexes: []string{"Female"}}
	a := bySex.Apply(byStatus.Apply(recs))
	b := byStatus.Apply(bySex.Apply(recs))
	if !reflect.DeepEqual(ids(a), ids(b)) {
		t.Fatalf("status then sex %v != sex then status %v", ids(a), ids(b))
	}
	combined := Filter{Statuses: byStatus.Statuses, Sexes: bySex.Sexes}.Apply(recs)
	if !reflect.DeepEqual(ids(a), ids(combined)) {
		t.Fatalf("sequential %v != combined %v", ids(a), ids(combined))
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	recs := fixtureRecords()
	before := append([]domain.Record(nil), recs...)
	_ = Filter{Statuses: []string{"Released"}}.Apply(recs)
	if !reflect.DeepEqual(recs, before) {
		t.Fatalf("input mutated")
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(map[string][]string{
		"status":   {"released,in storage", "Released"},
		"sex":      {"female"},
		"dod_from": {"2024-01-01"},
		"q":        {" doe "},
		"location": {"drawer"},
		"cause":    {""},
	})
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if !reflect.DeepEqual(f.Statuses, []string{"Released", "In Storage"}) || !reflect.DeepEqual(f.Sexes, []string{"Female"}) {
		t.Fatalf("unexpected option lists %+v", f)
	}
	if f.DodFrom == nil || f.DodTo != nil || f.Text != "doe" || f.Location != "drawer" || f.Cause != "" {
		t.Fatalf("unexpected filter %+v", f)
	}
	if !f.Active() || (Filter{}).Active() {
		t.Fatalf("Active mismatch")
	}
	if _, err := ParseFilter(map[string][]string{"status": {"Buried"}}); err == nil {
		t.Fatalf("expected invalid status error")
	}
	if _, err := ParseFilter(map[string][]string{"dod_to": {"03/01/2024"}}); err == nil {
		t.Fatalf("expected invalid date error")
	}
}

func TestFilterDateRangeIncludesUnpaddedDates(t *testing.T) {
	recs := []domain.Record{
		{RecordID: "a", DodDate: "2024-3-1"},
		{RecordID: "b", DodDate: "2024-5-9"},
	}
	f := Filter{DodFrom: datePtr("2024-02-01"), DodTo: datePtr("2024-04-01")}
	if got := ids(f.Apply(recs)); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("Apply = %v, want [a]", got)
	}
	parsed, err := ParseFilter(map[string][]string{"dod_from": {"2024-2-1"}})
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if got := ids(parsed.Apply(recs)); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Apply = %v, want [a b]", got)
	}
}
