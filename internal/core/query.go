package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mortuary/pkg/domain"
)

// Filter selects records from a loaded table. Every active predicate must
// hold; zero values disable a predicate.
type Filter struct {
	Statuses []string   `json:"status,omitempty"`
	Sexes    []string   `json:"sex,omitempty"`
	DodFrom  *time.Time `json:"dod_from,omitempty"`
	DodTo    *time.Time `json:"dod_to,omitempty"`
	Text     string     `json:"q,omitempty"`
	Location string     `json:"location,omitempty"`
	Cause    string     `json:"cause,omitempty"`
}

// Active reports whether any predicate is set.
func (f Filter) Active() bool {
	return len(f.Statuses) > 0 || len(f.Sexes) > 0 || f.DodFrom != nil || f.DodTo != nil ||
		strings.TrimSpace(f.Text) != "" || strings.TrimSpace(f.Location) != "" || strings.TrimSpace(f.Cause) != ""
}

// Apply returns the matching records in their original order. The input is
// never modified.
func (f Filter) Apply(records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Match evaluates every active predicate against r.
func (f Filter) Match(r domain.Record) bool {
	if len(f.Statuses) > 0 && !domain.Contains(f.Statuses, r.ReleaseStatus) {
		return false
	}
	if len(f.Sexes) > 0 && !domain.Contains(f.Sexes, r.Sex) {
		return false
	}
	if f.DodFrom != nil || f.DodTo != nil {
		dod, err := domain.ParseDate(r.DodDate)
		if err != nil {
			return false
		}
		if f.DodFrom != nil && dod.Before(dateOnly(*f.DodFrom)) {
			return false
		}
		if f.DodTo != nil && dod.After(dateOnly(*f.DodTo)) {
			return false
		}
	}
	if q := needle(f.Text); q != "" {
		if !containsFold(r.DeceasedName, q) && !containsFold(r.BodyTagNo, q) && !containsFold(r.NextOfKin, q) {
			return false
		}
	}
	if q := needle(f.Location); q != "" && !containsFold(r.StorageLocation, q) {
		return false
	}
	if q := needle(f.Cause); q != "" && !containsFold(r.CauseOfDeath, q) {
		return false
	}
	return true
}

func needle(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

// dateOnly drops the clock and zone so bounds compare against parsed dates.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseFilter builds a Filter from query parameters or flag values. Repeated
// and comma separated values are both accepted for status and sex. Unknown
// option values are rejected so a typo does not silently match nothing.
func ParseFilter(values map[string][]string) (Filter, error) {
	var f Filter
	var err error
	if f.Statuses, err = optionList(values["status"], domain.StatusOptions, "status"); err != nil {
		return Filter{}, err
	}
	if f.Sexes, err = optionList(values["sex"], domain.SexOptions, "sex"); err != nil {
		return Filter{}, err
	}
	if f.DodFrom, err = optionalDate(first(values["dod_from"]), "dod_from"); err != nil {
		return Filter{}, err
	}
	if f.DodTo, err = optionalDate(first(values["dod_to"]), "dod_to"); err != nil {
		return Filter{}, err
	}
	f.Text = strings.TrimSpace(first(values["q"]))
	f.Location = strings.TrimSpace(first(values["location"]))
	f.Cause = strings.TrimSpace(first(values["cause"]))
	return f, nil
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func optionList(raw []string, options []string, name string) ([]string, error) {
	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			matched, ok := domain.Canonical(options, part)
			if !ok {
				return nil, fmt.Errorf("invalid %s %q (want one of %s)", name, part, strings.Join(options, ", "))
			}
			if !domain.Contains(out, matched) {
				out = append(out, matched)
			}
		}
	}
	return out, nil
}

func optionalDate(raw, name string) (*time.Time, error) {
	d, err := domain.ParseDate(raw)
	if errors.Is(err, domain.ErrAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &d, nil
}
