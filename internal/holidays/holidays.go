// Package holidays supplies the non-working dates shown as "Closed" on the calendar.
// Holidays are display-only: conflict detection never consults them.
package holidays

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/fr"

	"smflab/internal/models"
)

// Set is a set of "YYYY-MM-DD" dates.
type Set map[string]struct{}

// NewSet builds a set from ISO dates.
func NewSet(dates ...string) Set {
	s := make(Set, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

// Add inserts a calendar date.
func (s Set) Add(day time.Time) {
	s[models.Day(day).Format(models.DateLayout)] = struct{}{}
}

// Has reports whether day is a holiday.
func (s Set) Has(day time.Time) bool {
	_, ok := s[models.Day(day).Format(models.DateLayout)]
	return ok
}

// Merge adds every date of o.
func (s Set) Merge(o Set) {
	for d := range o {
		s[d] = struct{}{}
	}
}

// Sorted returns the dates in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Provider produces the holiday set of a region for some years.
type Provider interface {
	Holidays(ctx context.Context, region string, years []int) (Set, error)
}

// Years returns the current year of today followed by the next ahead years.
func Years(today time.Time, ahead int) []int {
	out := make([]int, 0, ahead+1)
	for i := 0; i <= ahead; i++ {
		out = append(out, today.Year()+i)
	}
	return out
}

var regions = map[string][]*cal.Holiday{
	"FR": fr.Holidays,
}

// CalProvider computes public holidays from rule tables, plus configured extra closures.
type CalProvider struct {
	extra Set
}

// NewCalProvider validates extra "YYYY-MM-DD" closure dates.
func NewCalProvider(extra []string) (*CalProvider, error) {
	s := NewSet()
	for _, d := range extra {
		day, err := models.ParseDate(d)
		if err != nil {
			return nil, fmt.Errorf("extra holiday: %w", err)
		}
		s.Add(day)
	}
	return &CalProvider{extra: s}, nil
}

// Supported reports whether the region has a rule table.
func Supported(region string) bool {
	_, ok := regions[strings.ToUpper(region)]
	return ok
}

// Holidays implements Provider.
func (p *CalProvider) Holidays(_ context.Context, region string, years []int) (Set, error) {
	rules, ok := regions[strings.ToUpper(region)]
	if !ok {
		return nil, fmt.Errorf("unsupported holiday region %q", region)
	}

	out := NewSet()
	for _, year := range years {
		for _, h := range rules {
			actual, _ := h.Calc(year)
			if actual.IsZero() {
				continue
			}
			out.Add(actual)
		}
		for d := range p.extra {
			if strings.HasPrefix(d, fmt.Sprintf("%04d-", year)) {
				out[d] = struct{}{}
			}
		}
	}
	return out, nil
}
