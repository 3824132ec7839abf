package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"smflab/internal/listing"
	"smflab/internal/models"
)

// ErrSessionNotFound is returned for unknown or expired dashboard sessions.
var ErrSessionNotFound = errors.New("dashboard session not found")

// DashboardSession keeps one client's listing view between requests.
type DashboardSession struct {
	ID        string
	view      *listing.View
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// DashboardState is the serialisable state of a session.
type DashboardState struct {
	ID      string            `json:"id"`
	Filter  listing.Filter    `json:"filter"`
	Pending listing.SortOrder `json:"pending_sort"`
	Applied listing.SortOrder `json:"applied_sort"`
}

func (s *DashboardSession) touch() {
	s.UpdatedAt = time.Now()
}

// State returns the session state.
func (s *DashboardSession) State() DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DashboardState{
		ID:      s.ID,
		Filter:  s.view.Filter,
		Pending: s.view.Pending(),
		Applied: s.view.Applied(),
	}
}

// SetFilter replaces the filter; it takes effect on the next List.
func (s *DashboardSession) SetFilter(f listing.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Filter = f
	s.touch()
}

// SelectSort records the pending sort order.
func (s *DashboardSession) SelectSort(order listing.SortOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Select(order)
	s.touch()
}

// Refresh applies the pending sort order.
func (s *DashboardSession) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Refresh()
	s.touch()
}

// List renders tests through the session's view.
func (s *DashboardSession) List(tests []*models.Test) []*models.Test {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.view.List(tests)
}

// IsExpired checks if session has expired.
func (s *DashboardSession) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// StateService manages dashboard sessions.
type StateService struct {
	sessions map[string]*DashboardSession
	mu       sync.RWMutex
	timeout  time.Duration
	marker   string
}

// NewStateService creates a session store. marker is the client marker of the "mine" filter.
func NewStateService(timeout time.Duration, marker string) *StateService {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if marker == "" {
		marker = listing.DefaultClientMarker
	}
	return &StateService{
		sessions: make(map[string]*DashboardSession),
		timeout:  timeout,
		marker:   marker,
	}
}

// Create starts a new session with the upcoming-date order applied.
func (ss *StateService) Create() *DashboardSession {
	now := time.Now()
	session := &DashboardSession{
		ID:        uuid.NewString(),
		view:      listing.NewView(listing.SortUpcoming, ss.marker),
		StartedAt: now,
		UpdatedAt: now,
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[session.ID] = session
	return session
}

// Get returns a live session.
func (ss *StateService) Get(id string) (*DashboardSession, error) {
	ss.mu.RLock()
	session, ok := ss.sessions[id]
	ss.mu.RUnlock()

	if !ok || session.IsExpired(ss.timeout) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session.
func (ss *StateService) Delete(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// Cleanup removes expired sessions.
func (ss *StateService) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}
