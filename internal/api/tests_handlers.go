package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"smflab/internal/calendar"
	"smflab/internal/listing"
	"smflab/internal/models"
	"smflab/internal/repository"
	"smflab/internal/workflow"
	"smflab/shared/access"
)

// TestView is a test with its derived facts.
type TestView struct {
	*models.Test
	Progress   int                 `json:"progress"`
	Scheduling string              `json:"scheduling"`
	Hint       string              `json:"hint,omitempty"`
	StepViews  []workflow.StepView `json:"step_views"`
}

func viewOf(t *models.Test) TestView {
	return TestView{
		Test:       t,
		Progress:   workflow.Progress(t),
		Scheduling: workflow.EffectiveScheduling(t),
		Hint:       workflow.Hint(t),
		StepViews:  workflow.Describe(t),
	}
}

func viewsOf(tests []*models.Test) []TestView {
	out := make([]TestView, 0, len(tests))
	for _, t := range tests {
		out = append(out, viewOf(t))
	}
	return out
}

func filterFromQuery(r *http.Request) listing.Filter {
	q := r.URL.Query()
	mine, _ := strconv.ParseBool(q.Get("mine"))
	approved, _ := strconv.ParseBool(q.Get("contract_approved"))
	return listing.Filter{
		Query:            q.Get("q"),
		Mine:             mine,
		ContractApproved: approved,
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	role := RoleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role":         role,
		"capabilities": access.Capabilities(role),
	})
}

// handleListTests returns active tests.
// GET /api/tests?q=&mine=&contract_approved=&sort=
func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	order := listing.SortUpcoming
	if raw := r.URL.Query().Get("sort"); raw != "" {
		parsed, err := listing.ParseSortOrder(raw)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		order = parsed
	}

	tests := listing.List(s.repo.List(), filterFromQuery(r), order, s.opts.ClientMarker)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sort":  order,
		"tests": viewsOf(tests),
	})
}

// GET /api/archive
func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	archived := listing.Sort(listing.Archived(s.repo.List()), listing.SortName)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tests": viewsOf(archived),
	})
}

// GET /api/tests/{code}
func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	t, err := s.repo.Get(chi.URLParam(r, "code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// DatesRequest is the body of POST /api/tests/{code}/dates.
type DatesRequest struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Version int64  `json:"version,omitempty"`
}

// handleScheduleTest validates, checks availability and commits in one step.
// POST /api/tests/{code}/dates
func (s *Server) handleScheduleTest(w http.ResponseWriter, r *http.Request) {
	var req DatesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	expected := req.Version
	if expected <= 0 {
		expected = repository.AnyVersion
	}
	t, err := s.sched.ScheduleTest(r.Context(), RoleFromContext(r.Context()), chi.URLParam(r, "code"), req.Start, req.End, expected)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// DELETE /api/tests/{code}/dates
func (s *Server) handleResetDates(w http.ResponseWriter, r *http.Request) {
	t, err := s.sched.ResetDates(r.Context(), RoleFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// handleBusyDays lists the days a date picker must disable for the test.
// GET /api/tests/{code}/busy-days?month=YYYY-MM
func (s *Server) handleBusyDays(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !s.repo.Has(code) {
		writeError(w, http.StatusNotFound, CodeNotFound, "test "+code+" not found")
		return
	}

	month := models.Day(s.now())
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := calendar.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, err.Error())
			return
		}
		month = parsed
	}

	days := s.sched.BusyDays(month, code)
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(models.DateLayout))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"month": month.Format("2006-01"),
		"days":  out,
	})
}

// StepRequest is the body of PUT /api/tests/{code}/steps/{step}.
type StepRequest struct {
	Value string `json:"value"`
}

// PUT /api/tests/{code}/steps/{step}
func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	step := models.StepKey(strings.ToUpper(chi.URLParam(r, "step")))
	t, err := s.sched.UpdateStep(r.Context(), RoleFromContext(r.Context()), chi.URLParam(r, "code"), step, req.Value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// OperatorsRequest is the body of PUT /api/tests/{code}/operators.
type OperatorsRequest struct {
	Selected []string `json:"selected"`
	Extra    string   `json:"extra,omitempty"`
}

// PUT /api/tests/{code}/operators
func (s *Server) handleAssignOperators(w http.ResponseWriter, r *http.Request) {
	var req OperatorsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	t, err := s.sched.AssignOperators(r.Context(), RoleFromContext(r.Context()), chi.URLParam(r, "code"), req.Selected, req.Extra)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// POST /api/tests/{code}/archive
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	t, err := s.sched.CloseAndArchive(r.Context(), RoleFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// POST /api/tests/{code}/reopen
func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	t, err := s.sched.Reopen(r.Context(), RoleFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

// GET /api/tests/{code}/audit?limit=
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "audit log disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.audit.ListAudit(r.Context(), chi.URLParam(r, "code"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
