// Package calendar lays out the month view of the facility calendar.
package calendar

import (
	"fmt"
	"time"

	"smflab/internal/holidays"
	"smflab/internal/models"
)

// Cells is the size of the month grid: six Monday-first weeks.
const Cells = 42

// EventKind tells test events from block events.
type EventKind string

const (
	EventTest  EventKind = "test"
	EventBlock EventKind = "block"
)

// Event is a test or block covering a day.
type Event struct {
	Kind  EventKind `json:"kind"`
	Code  string    `json:"code"`
	Label string    `json:"label"`
}

// Day is one grid cell.
type Day struct {
	Date    string  `json:"date"`
	InMonth bool    `json:"in_month"`
	Weekend bool    `json:"weekend"`
	Holiday bool    `json:"holiday"`
	Events  []Event `json:"events"`
}

// Month is the rendered grid.
type Month struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Title string `json:"title"`
	Days  []Day  `json:"days"`
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q; expected YYYY-MM", s)
	}
	return t, nil
}

// Grid returns the 42 days shown for the month of base, starting on the Monday
// on or before the first of the month.
func Grid(base time.Time) []time.Time {
	first := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7 // Monday first
	start := first.AddDate(0, 0, -offset)

	out := make([]time.Time, Cells)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// Build renders the month of base. Tests appear on every day of their range when
// they are not archived and have dates, planned or not.
func Build(base time.Time, tests []*models.Test, blocks []models.FacilityBlock, closed holidays.Set) Month {
	m := Month{
		Year:  base.Year(),
		Month: int(base.Month()),
		Title: fmt.Sprintf("%s %d", base.Month(), base.Year()),
	}

	for _, d := range Grid(base) {
		wd := d.Weekday()
		cell := Day{
			Date:    d.Format(models.DateLayout),
			InMonth: d.Month() == base.Month(),
			Weekend: wd == time.Saturday || wd == time.Sunday,
			Holiday: closed != nil && closed.Has(d),
			Events:  []Event{},
		}
		for _, t := range tests {
			if t.Archived || !t.Dates.IsSet() || !t.Dates.Contains(d) {
				continue
			}
			cell.Events = append(cell.Events, Event{Kind: EventTest, Code: t.Code, Label: t.Code + " — " + t.Name})
		}
		for i := range blocks {
			b := &blocks[i]
			if b.Range().Contains(d) {
				cell.Events = append(cell.Events, Event{Kind: EventBlock, Code: b.Code, Label: b.Title})
			}
		}
		m.Days = append(m.Days, cell)
	}
	return m
}
