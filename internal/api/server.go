// Package api exposes the scheduler over REST/JSON.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"smflab/internal/database"
	"smflab/internal/holidays"
	"smflab/internal/repository"
	"smflab/internal/service"
)

// AuditLog lists recorded events for a test or block.
type AuditLog interface {
	ListAudit(ctx context.Context, subject string, limit int) ([]database.AuditEntry, error)
}

// Options are the transport settings.
type Options struct {
	Addr          string
	JWTSecret     string
	DevRoleHeader bool
	ClientMarker  string
	Region        string
	YearsAhead    int
}

// Dependencies are the components the handlers call into.
type Dependencies struct {
	Scheduler *service.Scheduler
	Repo      *repository.Repository
	Sessions  *service.StateService
	Holidays  holidays.Provider
	Audit     AuditLog
}

// Server is the HTTP front of the scheduler.
type Server struct {
	opts     Options
	sched    *service.Scheduler
	repo     *repository.Repository
	sessions *service.StateService
	holidays holidays.Provider
	audit    AuditLog
	logger   zerolog.Logger
	now      func() time.Time
	server   *http.Server
}

func NewServer(opts Options, deps Dependencies, logger *zerolog.Logger) *Server {
	if opts.Region == "" {
		opts.Region = "FR"
	}
	if opts.YearsAhead <= 0 {
		opts.YearsAhead = 1
	}
	s := &Server{
		opts:     opts,
		sched:    deps.Scheduler,
		repo:     deps.Repo,
		sessions: deps.Sessions,
		holidays: deps.Holidays,
		audit:    deps.Audit,
		logger:   logger.With().Str("component", "api").Logger(),
		now:      time.Now,
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(s.logger))
	r.Use(RoleAuth(s.opts.JWTSecret, s.opts.DevRoleHeader, s.now))

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", s.handleMe)

		r.Get("/tests", s.handleListTests)
		r.Get("/archive", s.handleListArchive)
		r.Route("/tests/{code}", func(r chi.Router) {
			r.Get("/", s.handleGetTest)
			r.Post("/dates", s.handleScheduleTest)
			r.Delete("/dates", s.handleResetDates)
			r.Get("/busy-days", s.handleBusyDays)
			r.Put("/steps/{step}", s.handleUpdateStep)
			r.Put("/operators", s.handleAssignOperators)
			r.Post("/archive", s.handleArchive)
			r.Post("/reopen", s.handleReopen)
			r.Get("/audit", s.handleAudit)
		})

		r.Get("/blocks", s.handleListBlocks)
		r.Post("/blocks", s.handleCreateBlock)
		r.Post("/availability", s.handleAvailability)

		r.Get("/kpis", s.handleKPIs)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/holidays", s.handleHolidays)

		r.Post("/dashboard", s.handleCreateDashboard)
		r.Route("/dashboard/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDashboard)
			r.Put("/sort", s.handleSelectSort)
			r.Put("/filter", s.handleSetFilter)
			r.Post("/refresh", s.handleRefreshDashboard)
			r.Delete("/", s.handleDeleteDashboard)
		})
	})

	return r
}

// Start serves until Shutdown; http.ErrServerClosed is returned on a clean stop.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.opts.Addr).Msg("HTTP API listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
