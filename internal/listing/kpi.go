package listing

import (
	"math"
	"sort"
	"time"

	"smflab/internal/models"
	"smflab/internal/workflow"
)

// UtilizationWindowDays is the length of the KPI window after today.
const UtilizationWindowDays = 30

// KPIs are the dashboard headline figures.
type KPIs struct {
	Ongoing            int `json:"ongoing"`
	Planned            int `json:"planned"`
	UtilizationPercent int `json:"utilization_percent"`
	BookedDays30       int `json:"booked_days_30"`
}

// ComputeKPIs aggregates over non-archived tests. The window is today..today+30
// inclusive; facility blocks do not count toward utilization.
func ComputeKPIs(tests []*models.Test, today time.Time) KPIs {
	from := models.Day(today)
	to := models.AddDays(from, UtilizationWindowDays)

	var k KPIs
	for _, t := range tests {
		if t.Archived {
			continue
		}
		k.Ongoing++
		if !workflow.IsPlanned(t) {
			continue
		}
		k.Planned++

		r := t.Dates
		if r.Start == nil {
			continue
		}
		if r.End == nil {
			r.End = r.Start
		}
		if clipped, ok := r.Clip(from, to); ok {
			k.BookedDays30 += clipped.Days()
		}
	}

	pct := float64(k.BookedDays30) / UtilizationWindowDays * 100
	k.UtilizationPercent = int(math.Floor(math.Min(100, pct) + 0.5))
	return k
}

// Field selects the value analytics group by.
type Field string

const (
	FieldRequester     Field = "requester"
	FieldDivision      Field = "division"
	FieldRequesterRole Field = "requester_role"
	FieldStatus        Field = "status"
)

// MissingKey buckets tests whose field is empty.
const MissingKey = "-"

// Value extracts the grouping value from a test.
func (f Field) Value(t *models.Test) string {
	switch f {
	case FieldRequester:
		return t.Requester
	case FieldDivision:
		return t.Division
	case FieldRequesterRole:
		return t.RequesterRole
	case FieldStatus:
		return t.Status
	default:
		return ""
	}
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	switch f {
	case FieldRequester, FieldDivision, FieldRequesterRole, FieldStatus:
		return true
	}
	return false
}

// Group is one analytics bucket.
type Group struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// GroupBy counts tests, archived included, by field. Buckets are sorted by
// descending count; ties keep first-seen order.
func GroupBy(tests []*models.Test, field Field) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, t := range tests {
		key := field.Value(t)
		if key == "" {
			key = MissingKey
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Count++
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})
	return groups
}
