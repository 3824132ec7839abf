package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smflab/internal/holidays"
	"smflab/internal/models"
)

func TestGrid(t *testing.T) {
	tests := []struct {
		name  string
		month time.Time
		first string
		last  string
	}{
		// 2025-06-01 is a Sunday
		{"starts on sunday", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), "2025-05-26", "2025-07-06"},
		// 2025-09-01 is a Monday
		{"starts on monday", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "2025-09-01", "2025-10-12"},
		// 2024-02-01 is a Thursday
		{"leap february", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "2024-01-29", "2024-03-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grid(tt.month)
			require.Len(t, g, Cells)
			assert.Equal(t, time.Monday, g[0].Weekday())
			assert.Equal(t, tt.first, g[0].Format(models.DateLayout))
			assert.Equal(t, tt.last, g[Cells-1].Format(models.DateLayout))
		})
	}
}

func TestBuild(t *testing.T) {
	planned := &models.Test{Code: "T-001", Name: "EMC", Steps: models.DefaultSteps(), Dates: models.MustRange("2025-06-09", "2025-06-10")}
	unplanned := &models.Test{Code: "T-002", Name: "Valve", Steps: models.DefaultSteps(), Dates: models.MustRange("2025-06-10", "2025-06-10")}
	archived := &models.Test{Code: "T-003", Name: "Old", Archived: true, Dates: models.MustRange("2025-06-10", "2025-06-10")}
	undated := &models.Test{Code: "T-004", Name: "Undated"}

	r := models.MustRange("2025-06-10", "2025-06-11")
	blocks := []models.FacilityBlock{{Code: "B-01", Title: "Chiller maintenance", Start: *r.Start, End: *r.End}}

	m := Build(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		[]*models.Test{planned, unplanned, archived, undated}, blocks, holidays.NewSet("2025-06-09"))

	require.Len(t, m.Days, Cells)
	assert.Equal(t, "June 2025", m.Title)

	byDate := map[string]Day{}
	for _, d := range m.Days {
		byDate[d.Date] = d
	}

	assert.False(t, byDate["2025-05-26"].InMonth)
	assert.True(t, byDate["2025-06-01"].Weekend)
	assert.True(t, byDate["2025-06-09"].Holiday)
	assert.False(t, byDate["2025-06-10"].Holiday)

	assert.Equal(t, []Event{{Kind: EventTest, Code: "T-001", Label: "T-001 — EMC"}}, byDate["2025-06-09"].Events)
	assert.Equal(t, []Event{
		{Kind: EventTest, Code: "T-001", Label: "T-001 — EMC"},
		{Kind: EventTest, Code: "T-002", Label: "T-002 — Valve"},
		{Kind: EventBlock, Code: "B-01", Label: "Chiller maintenance"},
	}, byDate["2025-06-10"].Events)
	assert.Empty(t, byDate["2025-06-12"].Events)
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-06")
	require.NoError(t, err)
	assert.Equal(t, time.June, m.Month())

	_, err = ParseMonth("June")
	assert.Error(t, err)
}
