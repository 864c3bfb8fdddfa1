package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Text layouts used by persisted values.
const (
	DateLayout            = "2006-01-02"
	ClockLayout           = "15:04"
	MinuteTimestampLayout = "2006-01-02T15:04-07:00"
	SecondTimestampLayout = "2006-01-02T15:04:05-07:00"

	// Input layouts accept month, day, hour and minute with or without a
	// leading zero.
	dateInputLayout  = "2006-1-2"
	clockInputLayout = "15:4"
)

// ErrAbsent reports a date or time that was simply not supplied.
var ErrAbsent = errors.New("value absent")

// ParseError reports a malformed date, time or timestamp. Callers treat it as
// absent; it exists so that "invalid" stays distinguishable from "empty".
type ParseError struct {
	Kind  string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Kind, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseDate parses a YYYY-MM-DD calendar date. Unpadded months and days
// such as 2024-3-1 are accepted.
func ParseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, ErrAbsent
	}
	d, err := time.Parse(dateInputLayout, v)
	if err != nil {
		return time.Time{}, &ParseError{Kind: "date", Value: value, Err: err}
	}
	return d, nil
}

// ParseClock parses an HH:MM time of day. A value carrying seconds is
// malformed.
func ParseClock(value string) (hour, minute int, err error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, 0, ErrAbsent
	}
	t, perr := time.Parse(clockInputLayout, v)
	if perr != nil {
		return 0, 0, &ParseError{Kind: "time", Value: value, Err: perr}
	}
	return t.Hour(), t.Minute(), nil
}

// CombineDateTime joins a calendar date and a time of day into a timestamp in
// loc, truncated to the minute. A blank date yields ErrAbsent; a blank time
// means midnight; malformed input yields a *ParseError.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseClock(clock)
	if err != nil && !errors.Is(err, ErrAbsent) {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc), nil
}

// CombineDateTimeString is the lenient form of CombineDateTime: any failure,
// absent or malformed, produces the empty string.
func CombineDateTimeString(date, clock string, loc *time.Location) string {
	t, err := CombineDateTime(date, clock, loc)
	if err != nil {
		return ""
	}
	return FormatMinute(t)
}

// FormatMinute renders t with minute precision and its zone offset.
func FormatMinute(t time.Time) string {
	return t.Format(MinuteTimestampLayout)
}

// FormatSecond renders t with second precision and its zone offset.
func FormatSecond(t time.Time) string {
	return t.Truncate(time.Second).Format(SecondTimestampLayout)
}

// FormatDate renders the calendar date of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatClock renders the time of day of t as HH:MM.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

var timestampLayouts = []string{
	SecondTimestampLayout,
	MinuteTimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses any timestamp layout this system has written.
func ParseTimestamp(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, ErrAbsent
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &ParseError{Kind: "timestamp", Value: value, Err: lastErr}
}

// NormalizeDate returns value re-rendered as YYYY-MM-DD, or "" if it does not
// parse.
func NormalizeDate(value string) string {
	d, err := ParseDate(value)
	if err != nil {
		return ""
	}
	return FormatDate(d)
}

// NormalizeClock returns value re-rendered as HH:MM, defaulting to midnight
// when it is blank or malformed.
func NormalizeClock(value string) string {
	hour, minute, err := ParseClock(value)
	if err != nil {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
