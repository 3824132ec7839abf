// Package listing computes the derived dashboard views over the test collection:
// filtered and sorted listings, KPIs and analytics groupings. Every function is
// pure and safe to call concurrently on a snapshot.
package listing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"smflab/internal/models"
	"smflab/internal/workflow"
)

// DefaultClientMarker stands in for the current client's identity in the "mine" filter.
const DefaultClientMarker = "carlo"

// Filter combines its criteria with logical AND.
type Filter struct {
	Query            string `json:"q"`
	Mine             bool   `json:"mine"`
	ContractApproved bool   `json:"contract_approved"`
}

// Match reports whether t passes the filter. marker is matched against the requester.
func (f Filter) Match(t *models.Test, marker string) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hit := false
		for _, field := range []string{t.Name, t.Code, t.PBS, t.Requester} {
			if strings.Contains(strings.ToLower(field), q) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.Mine && !strings.Contains(strings.ToLower(t.Requester), strings.ToLower(marker)) {
		return false
	}
	if f.ContractApproved && t.Steps[models.StepContractReview] != models.ValueApproved {
		return false
	}
	return true
}

// Active returns the non-archived tests.
func Active(tests []*models.Test) []*models.Test {
	out := make([]*models.Test, 0, len(tests))
	for _, t := range tests {
		if !t.Archived {
			out = append(out, t)
		}
	}
	return out
}

// Archived returns the archived tests.
func Archived(tests []*models.Test) []*models.Test {
	out := make([]*models.Test, 0)
	for _, t := range tests {
		if t.Archived {
			out = append(out, t)
		}
	}
	return out
}

// Apply filters the non-archived tests, keeping input order.
func Apply(tests []*models.Test, f Filter, marker string) []*models.Test {
	out := make([]*models.Test, 0, len(tests))
	for _, t := range tests {
		if !t.Archived && f.Match(t, marker) {
			out = append(out, t)
		}
	}
	return out
}

// SortOrder selects one of the listing orders.
type SortOrder string

const (
	SortUpcoming SortOrder = "date"
	SortProgress SortOrder = "progress"
	SortName     SortOrder = "name"
)

// ErrUnknownSortOrder is returned by ParseSortOrder.
var ErrUnknownSortOrder = errors.New("unknown sort order")

// ParseSortOrder accepts the full names and the short codes d, p and n.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "date", "upcoming", "d":
		return SortUpcoming, nil
	case "progress", "p":
		return SortProgress, nil
	case "name", "n":
		return SortName, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownSortOrder, s)
	}
}

// upcomingStart returns the start used by the upcoming-date order; ok is false
// for tests that sort last.
func upcomingStart(t *models.Test) (time.Time, bool) {
	if !workflow.SetupComplete(t) || t.Steps[models.StepScheduling] != models.ValuePlanned || t.Dates.Start == nil {
		return time.Time{}, false
	}
	return models.Day(*t.Dates.Start), true
}

// Sort returns a stably sorted copy of tests.
func Sort(tests []*models.Test, order SortOrder) []*models.Test {
	out := append([]*models.Test(nil), tests...)

	switch order {
	case SortUpcoming:
		sort.SliceStable(out, func(i, j int) bool {
			a, aok := upcomingStart(out[i])
			b, bok := upcomingStart(out[j])
			switch {
			case aok && bok:
				return a.Before(b)
			default:
				return aok && !bok
			}
		})
	case SortProgress:
		progress := make(map[string]int, len(out))
		for _, t := range out {
			progress[t.Code] = workflow.Progress(t)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return progress[out[i].Code] > progress[out[j].Code]
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}
	return out
}

// List filters then sorts.
func List(tests []*models.Test, f Filter, order SortOrder, marker string) []*models.Test {
	return Sort(Apply(tests, f, marker), order)
}
