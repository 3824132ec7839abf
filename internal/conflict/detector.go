// Package conflict decides whether a candidate date range can be committed
// against the planned tests and facility blocks on the shared calendar.
package conflict

import (
	"time"

	"smflab/internal/models"
	"smflab/internal/workflow"
)

// Kind describes what a candidate range collides with.
type Kind string

const (
	KindTest  Kind = "test"
	KindBlock Kind = "block"
)

// Conflict names one entity that overlaps the candidate range.
type Conflict struct {
	Kind  Kind             `json:"kind"`
	Code  string           `json:"code"`
	Title string           `json:"title"`
	Range models.DateRange `json:"range"`
}

// Result is the outcome of an availability check. A conflict is a business
// outcome, not an error.
type Result struct {
	Available bool       `json:"available"`
	Conflicts []Conflict `json:"conflicts"`
}

// Detector is stateless; every method only reads its arguments and is safe for concurrent use.
type Detector struct{}

// New returns a Detector.
func New() Detector { return Detector{} }

// Overlaps reports whether two ranges share a calendar day.
func (Detector) Overlaps(a, b models.DateRange) bool {
	return models.Overlaps(a, b)
}

// Blocking reports whether a test holds the calendar against other tests:
// active, planned, and not the test being edited.
func Blocking(t *models.Test, excludeCode string) bool {
	return t.Code != excludeCode && !t.Archived && workflow.IsPlanned(t)
}

// IsAvailable returns false if the candidate overlaps any blocking test or any block.
func (d Detector) IsAvailable(candidate models.DateRange, excludeCode string, tests []*models.Test, blocks []models.FacilityBlock) bool {
	for _, t := range tests {
		if Blocking(t, excludeCode) && d.Overlaps(candidate, t.Dates) {
			return false
		}
	}
	for i := range blocks {
		if d.Overlaps(candidate, blocks[i].Range()) {
			return false
		}
	}
	return true
}

// Check is IsAvailable that also reports every conflicting entity.
func (d Detector) Check(candidate models.DateRange, excludeCode string, tests []*models.Test, blocks []models.FacilityBlock) Result {
	res := Result{Conflicts: []Conflict{}}
	for _, t := range tests {
		if Blocking(t, excludeCode) && d.Overlaps(candidate, t.Dates) {
			res.Conflicts = append(res.Conflicts, Conflict{
				Kind:  KindTest,
				Code:  t.Code,
				Title: t.Name,
				Range: t.Dates,
			})
		}
	}
	for i := range blocks {
		b := &blocks[i]
		if d.Overlaps(candidate, b.Range()) {
			res.Conflicts = append(res.Conflicts, Conflict{
				Kind:  KindBlock,
				Code:  b.Code,
				Title: b.Title,
				Range: b.Range(),
			})
		}
	}
	res.Available = len(res.Conflicts) == 0
	return res
}

// BusyDays lists the days of month that a date picker must disable for the test excludeCode.
func (d Detector) BusyDays(month time.Time, excludeCode string, tests []*models.Test, blocks []models.FacilityBlock) []time.Time {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	var busy []time.Time
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		r, _ := models.RangeOf(day, day)
		if !d.IsAvailable(r, excludeCode, tests, blocks) {
			busy = append(busy, day)
		}
	}
	return busy
}
