package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a date
func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, day(2025, 6, 10), got)

	_, err = ParseDate("10/06/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("2025-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDayStripsTimeWithoutShifting(t *testing.T) {
	loc := time.FixedZone("UTC+11", 11*3600)
	late := time.Date(2025, 6, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, day(2025, 6, 10), Day(late))

	early := time.Date(2025, 6, 10, 0, 15, 0, 0, time.FixedZone("UTC-9", -9*3600))
	assert.Equal(t, day(2025, 6, 10), Day(early))
}

func TestNewRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr error
		empty   bool
	}{
		{name: "both empty is an empty range", empty: true},
		{name: "single day", start: "2025-06-10", end: "2025-06-10"},
		{name: "multi day", start: "2025-06-10", end: "2025-06-12"},
		{name: "missing end", start: "2025-06-10", wantErr: ErrPartialRange},
		{name: "missing start", end: "2025-06-10", wantErr: ErrPartialRange},
		{name: "inverted", start: "2025-06-12", end: "2025-06-10", wantErr: ErrInvertedRange},
		{name: "garbage", start: "soon", end: "2025-06-10", wantErr: ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRange(tt.start, tt.end)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.empty, r.IsEmpty())
			assert.Equal(t, !tt.empty, r.IsSet())
		})
	}
}

func TestOverlaps(t *testing.T) {
	base := MustRange("2026-01-15", "2026-01-20")

	tests := []struct {
		name    string
		other   DateRange
		overlap bool
	}{
		{"before", MustRange("2026-01-10", "2026-01-14"), false},
		{"after", MustRange("2026-01-21", "2026-01-25"), false},
		{"starts before, ends during", MustRange("2026-01-13", "2026-01-16"), true},
		{"starts during, ends after", MustRange("2026-01-19", "2026-01-25"), true},
		{"contained", MustRange("2026-01-16", "2026-01-18"), true},
		{"contains", MustRange("2026-01-10", "2026-01-25"), true},
		{"shares last day", MustRange("2026-01-20", "2026-01-25"), true},
		{"shares first day", MustRange("2026-01-10", "2026-01-15"), true},
		{"missing bounds", DateRange{}, false},
		{"half open", DateRange{Start: base.Start}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlap, Overlaps(base, tt.other))
			assert.Equal(t, tt.overlap, Overlaps(tt.other, base), "overlap must be symmetric")
		})
	}
}

func TestOverlapsIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC)
	a := DateRange{Start: &evening, End: &evening}
	b := DateRange{Start: &morning, End: &morning}
	assert.True(t, Overlaps(a, b))
}

func TestOverlapsSelf(t *testing.T) {
	for _, r := range []DateRange{
		MustRange("2025-01-01", "2025-01-01"),
		MustRange("2024-02-28", "2024-03-01"),
		MustRange("2025-12-31", "2026-01-02"),
	} {
		assert.True(t, Overlaps(r, r), r.String())
	}
}

func TestDateRange_Days(t *testing.T) {
	assert.Equal(t, 1, MustRange("2025-06-10", "2025-06-10").Days())
	assert.Equal(t, 6, MustRange("2025-01-15", "2025-01-20").Days())
	assert.Equal(t, 3, MustRange("2024-02-28", "2024-03-01").Days(), "leap day counted")
	assert.Equal(t, 0, DateRange{}.Days())
}

func TestDateRange_Clip(t *testing.T) {
	r := MustRange("2025-01-25", "2025-02-10")

	clipped, ok := r.Clip(day(2025, 1, 1), day(2025, 1, 31))
	require.True(t, ok)
	assert.Equal(t, "2025-01-25..2025-01-31", clipped.String())
	assert.Equal(t, 7, clipped.Days())

	_, ok = r.Clip(day(2025, 3, 1), day(2025, 3, 31))
	assert.False(t, ok)
}

func TestDateRange_Contains(t *testing.T) {
	r := MustRange("2025-06-10", "2025-06-12")
	assert.True(t, r.Contains(day(2025, 6, 10)))
	assert.True(t, r.Contains(time.Date(2025, 6, 12, 18, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(day(2025, 6, 13)))
	assert.False(t, DateRange{}.Contains(day(2025, 6, 10)))
}

func TestDateRange_Validate(t *testing.T) {
	s := day(2025, 6, 10)
	e := day(2025, 6, 9)
	assert.NoError(t, DateRange{}.Validate())
	assert.ErrorIs(t, DateRange{Start: &s}.Validate(), ErrPartialRange)
	assert.ErrorIs(t, DateRange{Start: &s, End: &e}.Validate(), ErrInvertedRange)
}

func TestDateRange_JSON(t *testing.T) {
	data, err := json.Marshal(MustRange("2025-08-01", "2025-08-03"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2025-08-01","end":"2025-08-03"}`, string(data))

	data, err = json.Marshal(DateRange{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":null,"end":null}`, string(data))

	var r DateRange
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2025-08-01","end":"2025-08-03"}`), &r))
	assert.Equal(t, 3, r.Days())

	err = json.Unmarshal([]byte(`{"start":"2025-08-01","end":null}`), &r)
	assert.ErrorIs(t, err, ErrPartialRange)
}
