package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate   = errors.New("invalid date; expected YYYY-MM-DD")
	ErrInvertedRange = errors.New("end date must be on or after start date")
	ErrPartialRange  = errors.New("start and end dates must be set together")
)

// ParseDate parses a YYYY-MM-DD string as a calendar date (UTC midnight, no timezone shift).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders a calendar date, empty for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// Day strips the time of day, keeping the calendar date as seen in t's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DaysBetween returns the inclusive number of days from a to b, 0 when b is before a.
func DaysBetween(a, b time.Time) int {
	a, b = Day(a), Day(b)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

// DateRange is an inclusive range of calendar days. A nil bound means "not set".
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// NewRange builds a range from two YYYY-MM-DD strings. Both empty yields an empty range.
func NewRange(start, end string) (DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return DateRange{}, nil
	}
	if start == "" || end == "" {
		return DateRange{}, ErrPartialRange
	}

	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return RangeOf(s, e)
}

// RangeOf builds a fully specified range from two dates.
func RangeOf(start, end time.Time) (DateRange, error) {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return DateRange{}, ErrInvertedRange
	}
	return DateRange{Start: &s, End: &e}, nil
}

// MustRange is NewRange for literals in fixtures and seeds; it panics on bad input.
func MustRange(start, end string) DateRange {
	r, err := NewRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// IsSet reports whether both bounds are present.
func (r DateRange) IsSet() bool {
	return r.Start != nil && r.End != nil
}

// IsEmpty reports whether neither bound is present.
func (r DateRange) IsEmpty() bool {
	return r.Start == nil && r.End == nil
}

// Validate checks the both-or-neither and ordering invariants.
func (r DateRange) Validate() error {
	if r.IsEmpty() {
		return nil
	}
	if !r.IsSet() {
		return ErrPartialRange
	}
	if Day(*r.End).Before(Day(*r.Start)) {
		return ErrInvertedRange
	}
	return nil
}

// Days returns the inclusive day count, 0 when a bound is missing.
func (r DateRange) Days() int {
	if !r.IsSet() {
		return 0
	}
	return DaysBetween(*r.Start, *r.End)
}

// Contains reports whether the calendar day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	if !r.IsSet() {
		return false
	}
	d := Day(day)
	return !d.Before(Day(*r.Start)) && !d.After(Day(*r.End))
}

// Clip intersects the range with [from, to]. ok is false when they do not intersect.
func (r DateRange) Clip(from, to time.Time) (DateRange, bool) {
	if !r.IsSet() {
		return DateRange{}, false
	}
	s, e := Day(*r.Start), Day(*r.End)
	from, to = Day(from), Day(to)
	if s.Before(from) {
		s = from
	}
	if e.After(to) {
		e = to
	}
	if s.After(e) {
		return DateRange{}, false
	}
	return DateRange{Start: &s, End: &e}, true
}

// Equal compares two ranges by calendar day.
func (r DateRange) Equal(o DateRange) bool {
	return sameDay(r.Start, o.Start) && sameDay(r.End, o.End)
}

func (r DateRange) String() string {
	if !r.IsSet() {
		return "-"
	}
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Day(*a).Equal(Day(*b))
}

// Overlaps reports whether two ranges share at least one calendar day.
// Ranges with a missing bound never overlap anything.
func Overlaps(a, b DateRange) bool {
	if !a.IsSet() || !b.IsSet() {
		return false
	}
	aStart, aEnd := Day(*a.Start), Day(*a.End)
	bStart, bEnd := Day(*b.Start), Day(*b.End)
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

type dateRangeJSON struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// MarshalJSON encodes the range as {"start":"YYYY-MM-DD","end":"YYYY-MM-DD"} with nulls for missing bounds.
func (r DateRange) MarshalJSON() ([]byte, error) {
	var out dateRangeJSON
	if r.Start != nil {
		s := FormatDate(r.Start)
		out.Start = &s
	}
	if r.End != nil {
		e := FormatDate(r.End)
		out.End = &e
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates the wire form.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var in dateRangeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var start, end string
	if in.Start != nil {
		start = *in.Start
	}
	if in.End != nil {
		end = *in.End
	}
	parsed, err := NewRange(start, end)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
