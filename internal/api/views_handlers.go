package api

import (
	"net/http"
	"strconv"
	"strings"

	"smflab/internal/calendar"
	"smflab/internal/holidays"
	"smflab/internal/listing"
	"smflab/internal/models"
)

// GET /api/blocks
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks":    s.repo.Blocks(),
		"next_code": s.repo.NextBlockCode(),
	})
}

// BlockRequest is the body of POST /api/blocks.
type BlockRequest struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// POST /api/blocks
func (s *Server) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	b, err := s.sched.CreateBlock(r.Context(), RoleFromContext(r.Context()), req.Type, req.Title, req.Start, req.End)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// AvailabilityRequest is the body of POST /api/availability.
type AvailabilityRequest struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	ExcludeCode string `json:"exclude_code,omitempty"`
}

// handleAvailability checks a candidate range without committing anything.
// POST /api/availability
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	res, err := s.sched.CheckAvailability(req.Start, req.End, req.ExcludeCode)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/kpis?today=YYYY-MM-DD
func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	today := models.Day(s.now())
	if raw := r.URL.Query().Get("today"); raw != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		today = parsed
	}
	writeJSON(w, http.StatusOK, listing.ComputeKPIs(s.repo.List(), today))
}

// GET /api/analytics?by=requester|division|requester_role|status
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	field := listing.Field(r.URL.Query().Get("by"))
	if field == "" {
		field = listing.FieldRequester
	}
	if !field.Valid() {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "unknown analytics field "+string(field))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"by":     field,
		"groups": listing.GroupBy(s.repo.List(), field),
	})
}

// handleCalendar renders the month grid. Holidays are decorative; a failing
// provider yields a grid without them.
// GET /api/calendar?month=YYYY-MM
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	base := models.Day(s.now())
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := calendar.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, err.Error())
			return
		}
		base = parsed
	}

	grid := calendar.Grid(base)
	years := []int{grid[0].Year()}
	if last := grid[len(grid)-1].Year(); last != years[0] {
		years = append(years, last)
	}

	closed := holidays.NewSet()
	if s.holidays != nil {
		set, err := s.holidays.Holidays(r.Context(), s.opts.Region, years)
		if err != nil {
			s.logger.Warn().Err(err).Ints("years", years).Msg("holidays unavailable")
		} else {
			closed = set
		}
	}

	tests, blocks := s.repo.Snapshot()
	writeJSON(w, http.StatusOK, calendar.Build(base, tests, blocks, closed))
}

// GET /api/holidays?years=2025,2026
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	if s.holidays == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"region": s.opts.Region, "dates": []string{}})
		return
	}

	years := holidays.Years(s.now(), s.opts.YearsAhead)
	if raw := r.URL.Query().Get("years"); raw != "" {
		years = years[:0]
		for _, part := range strings.Split(raw, ",") {
			y, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || y < 1900 || y > 2200 {
				writeError(w, http.StatusUnprocessableEntity, CodeValidation, "invalid year "+part)
				return
			}
			years = append(years, y)
		}
	}

	set, err := s.holidays.Holidays(r.Context(), s.opts.Region, years)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"region": s.opts.Region,
		"years":  years,
		"dates":  set.Sorted(),
	})
}
