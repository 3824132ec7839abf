package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smflab/internal/listing"
	"smflab/internal/service"
)

// DashboardResponse is a session's state plus the tests in its applied order.
type DashboardResponse struct {
	service.DashboardState
	Tests []TestView `json:"tests"`
}

// DashboardRequest optionally seeds a new session.
type DashboardRequest struct {
	Filter *listing.Filter `json:"filter,omitempty"`
	Sort   string          `json:"sort,omitempty"`
}

// SortRequest is the body of PUT /api/dashboard/{id}/sort.
type SortRequest struct {
	Sort string `json:"sort"`
}

func (s *Server) dashboard(session *service.DashboardSession) DashboardResponse {
	return DashboardResponse{
		Tests:          viewsOf(session.List(s.repo.List())),
		DashboardState: session.State(),
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*service.DashboardSession, bool) {
	session, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return session, true
}

// POST /api/dashboard
func (s *Server) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	var req DashboardRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	var order listing.SortOrder
	if req.Sort != "" {
		parsed, err := listing.ParseSortOrder(req.Sort)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		order = parsed
	}

	session := s.sessions.Create()
	if req.Filter != nil {
		session.SetFilter(*req.Filter)
	}
	if order != "" {
		session.SelectSort(order)
		session.Refresh()
	}
	writeJSON(w, http.StatusCreated, s.dashboard(session))
}

// GET /api/dashboard/{id}
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard(session))
}

// handleSelectSort records the selection only; the listing keeps its order until refresh.
// PUT /api/dashboard/{id}/sort
func (s *Server) handleSelectSort(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SortRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}
	order, err := listing.ParseSortOrder(req.Sort)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	session.SelectSort(order)
	writeJSON(w, http.StatusOK, s.dashboard(session))
}

// PUT /api/dashboard/{id}/filter
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var f listing.Filter
	if err := decodeJSON(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}
	session.SetFilter(f)
	writeJSON(w, http.StatusOK, s.dashboard(session))
}

// POST /api/dashboard/{id}/refresh
func (s *Server) handleRefreshDashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	session.Refresh()
	writeJSON(w, http.StatusOK, s.dashboard(session))
}

// DELETE /api/dashboard/{id}
func (s *Server) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
