// Package service applies the gated mutations on tests and facility blocks:
// date assignment and reset, archiving, step edits, operator assignment and block creation.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smflab/internal/conflict"
	"smflab/internal/events"
	"smflab/internal/metrics"
	"smflab/internal/models"
	"smflab/internal/repository"
	"smflab/internal/workflow"
	"smflab/shared/access"
)

var (
	ErrUnavailable   = errors.New("dates unavailable")
	ErrDatesRequired = errors.New("start and end dates are required")
)

// UnavailableError carries the entities that block a candidate range.
type UnavailableError struct {
	Result conflict.Result
}

func (e *UnavailableError) Error() string {
	codes := make([]string, 0, len(e.Result.Conflicts))
	for _, c := range e.Result.Conflicts {
		codes = append(codes, c.Code)
	}
	return fmt.Sprintf("dates unavailable: overlaps %s", strings.Join(codes, ", "))
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// EventPublisher is the slice of the event bus the scheduler needs.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Authorizer checks a role against an action.
type Authorizer interface {
	Authorize(role access.Role, action access.Action) error
}

// Scheduler is the single entry point for mutations.
type Scheduler struct {
	repo     *repository.Repository
	access   Authorizer
	detector conflict.Detector
	events   EventPublisher
	logger   zerolog.Logger
}

// NewScheduler wires the scheduler.
func NewScheduler(repo *repository.Repository, authz Authorizer, bus EventPublisher, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		access:   authz,
		detector: conflict.New(),
		events:   bus,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) authorize(role access.Role, action access.Action, code string) error {
	if err := s.access.Authorize(role, action); err != nil {
		metrics.IncForbidden(string(action), string(role))
		s.logger.Warn().
			Str("test_code", code).
			Str("role", string(role)).
			Str("action", string(action)).
			Msg("forbidden")
		return err
	}
	return nil
}

func (s *Scheduler) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

func testPayload(t *models.Test, role access.Role) events.TestPayload {
	return events.TestPayload{
		Code:    t.Code,
		Role:    string(role),
		Version: t.Version,
		Start:   models.FormatDate(t.Dates.Start),
		End:     models.FormatDate(t.Dates.End),
	}
}

func parseCandidate(start, end string) (models.DateRange, error) {
	r, err := models.NewRange(start, end)
	if err != nil {
		return models.DateRange{}, err
	}
	if !r.IsSet() {
		return models.DateRange{}, ErrDatesRequired
	}
	return r, nil
}

// AssignDates writes dates onto a test unconditionally and rederives SCHEDULING.
// Callers are expected to have checked availability; ScheduleTest does both.
func (s *Scheduler) AssignDates(ctx context.Context, role access.Role, code, start, end string) (*models.Test, error) {
	if err := s.authorize(role, access.ActionSchedule, code); err != nil {
		return nil, err
	}
	r, err := parseCandidate(start, end)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.Update(ctx, code, repository.AnyVersion, func(t *models.Test, _ repository.View) error {
		t.Dates = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(t, role, events.TypeDatesAssigned, "dates assigned")
	return t, nil
}

// ScheduleTest rechecks availability and commits the dates under the same write lock,
// so a booking made between selection and save cannot be double-booked.
// expectedVersion may be repository.AnyVersion.
func (s *Scheduler) ScheduleTest(ctx context.Context, role access.Role, code, start, end string, expectedVersion int64) (*models.Test, error) {
	if err := s.authorize(role, access.ActionSchedule, code); err != nil {
		return nil, err
	}
	r, err := parseCandidate(start, end)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.Update(ctx, code, expectedVersion, func(t *models.Test, view repository.View) error {
		res := s.detector.Check(r, code, view.Tests, view.Blocks)
		metrics.IncAvailabilityCheck(res.Available)
		if !res.Available {
			return &UnavailableError{Result: res}
		}
		t.Dates = r
		return nil
	})
	if err != nil {
		var unavailable *UnavailableError
		if errors.As(err, &unavailable) {
			s.logger.Info().
				Str("test_code", code).
				Str("role", string(role)).
				Str("range", r.String()).
				Int("conflicts", len(unavailable.Result.Conflicts)).
				Msg("dates rejected")
		}
		return nil, err
	}

	s.committed(t, role, events.TypeDatesAssigned, "dates scheduled")
	return t, nil
}

// ResetDates clears the dates; SCHEDULING falls back to ON_HOLD.
func (s *Scheduler) ResetDates(ctx context.Context, role access.Role, code string) (*models.Test, error) {
	if err := s.authorize(role, access.ActionResetDates, code); err != nil {
		return nil, err
	}

	t, err := s.repo.Update(ctx, code, repository.AnyVersion, func(t *models.Test, _ repository.View) error {
		t.Dates = models.DateRange{}
		t.Steps[models.StepScheduling] = models.ValueOnHold
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(t, role, events.TypeDatesReset, "dates reset")
	return t, nil
}

// CloseAndArchive archives a test, leaving steps and dates untouched.
func (s *Scheduler) CloseAndArchive(ctx context.Context, role access.Role, code string) (*models.Test, error) {
	if err := s.authorize(role, access.ActionArchive, code); err != nil {
		return nil, err
	}

	t, err := s.repo.Update(ctx, code, repository.AnyVersion, func(t *models.Test, _ repository.View) error {
		t.Archived = true
		t.Status = models.StatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(t, role, events.TypeTestArchived, "test archived")
	return t, nil
}

// Reopen clears the archived flag. Steps and dates stay as they were when archived.
func (s *Scheduler) Reopen(ctx context.Context, role access.Role, code string) (*models.Test, error) {
	if err := s.authorize(role, access.ActionReopen, code); err != nil {
		return nil, err
	}

	t, err := s.repo.UpdateArchived(ctx, code, repository.AnyVersion, func(t *models.Test, _ repository.View) error {
		t.Archived = false
		t.Status = models.StatusOngoing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(t, role, events.TypeTestReopened, "test reopened")
	return t, nil
}

// UpdateStep sets one user-editable step. SCHEDULING is rejected. A change that
// would plan the test's stored dates is rejected with ErrUnavailable when they overlap.
func (s *Scheduler) UpdateStep(ctx context.Context, role access.Role, code string, step models.StepKey, value string) (*models.Test, error) {
	if err := s.authorize(role, access.ActionEditSteps, code); err != nil {
		return nil, err
	}
	if err := workflow.Validate(step, value); err != nil {
		return nil, err
	}

	t, err := s.repo.Update(ctx, code, repository.AnyVersion, func(t *models.Test, view repository.View) error {
		t.Steps[step] = value
		if t.Steps[models.StepScheduling] == models.ValuePlanned || workflow.EffectiveScheduling(t) != models.ValuePlanned {
			return nil
		}
		// Stored dates become a booking now; they must still be free.
		res := s.detector.Check(t.Dates, code, view.Tests, view.Blocks)
		metrics.IncAvailabilityCheck(res.Available)
		if !res.Available {
			return &UnavailableError{Result: res}
		}
		return nil
	})
	if err != nil {
		var unavailable *UnavailableError
		if errors.As(err, &unavailable) {
			s.logger.Info().
				Str("test_code", code).
				Str("role", string(role)).
				Str("step", string(step)).
				Int("conflicts", len(unavailable.Result.Conflicts)).
				Msg("step rejected, dates no longer free")
		}
		return nil, err
	}

	payload := testPayload(t, role)
	payload.Step = string(step)
	payload.Value = value
	s.publish(events.TypeStepUpdated, payload)
	metrics.IncMutation(events.TypeStepUpdated)

	s.logger.Info().
		Str("test_code", t.Code).
		Str("role", string(role)).
		Str("step", string(step)).
		Str("value", value).
		Str("scheduling", t.Steps[models.StepScheduling]).
		Msg("step updated")
	return t, nil
}

// MergeOperators returns selected plus extra, trimmed, without blanks or duplicates, in first-seen order.
func MergeOperators(selected []string, extra string) []string {
	out := make([]string, 0, len(selected)+1)
	seen := make(map[string]bool, len(selected)+1)
	for _, name := range append(append([]string(nil), selected...), extra) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// AssignOperators replaces the operator set. Operators are not conflict-checked.
func (s *Scheduler) AssignOperators(ctx context.Context, role access.Role, code string, selected []string, extra string) (*models.Test, error) {
	if err := s.authorize(role, access.ActionAssignOperators, code); err != nil {
		return nil, err
	}
	ops := MergeOperators(selected, extra)

	t, err := s.repo.Update(ctx, code, repository.AnyVersion, func(t *models.Test, _ repository.View) error {
		t.Operators = ops
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.TypeOperatorsAssigned, testPayload(t, role))
	metrics.IncMutation(events.TypeOperatorsAssigned)
	s.logger.Info().
		Str("test_code", t.Code).
		Str("role", string(role)).
		Strs("operators", t.Operators).
		Msg("operators assigned")
	return t, nil
}

// CreateBlock appends a facility block. An empty title defaults to the type label.
func (s *Scheduler) CreateBlock(ctx context.Context, role access.Role, blockType, title, start, end string) (models.FacilityBlock, error) {
	if err := s.authorize(role, access.ActionCreateBlock, ""); err != nil {
		return models.FacilityBlock{}, err
	}
	bt, err := models.ParseBlockType(blockType)
	if err != nil {
		return models.FacilityBlock{}, err
	}
	r, err := parseCandidate(start, end)
	if err != nil {
		return models.FacilityBlock{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = bt.Label()
	}

	b, err := s.repo.AddBlock(ctx, models.FacilityBlock{
		Type:  bt,
		Title: title,
		Start: *r.Start,
		End:   *r.End,
	}, nil)
	if err != nil {
		return models.FacilityBlock{}, err
	}

	s.publish(events.TypeBlockCreated, events.BlockPayload{
		Code:  b.Code,
		Type:  string(b.Type),
		Title: b.Title,
		Start: b.Start.Format(models.DateLayout),
		End:   b.End.Format(models.DateLayout),
		Role:  string(role),
	})
	metrics.IncBlockCreated(string(b.Type))
	metrics.IncMutation(events.TypeBlockCreated)

	s.logger.Info().
		Str("block_code", b.Code).
		Str("type", string(b.Type)).
		Str("role", string(role)).
		Str("range", b.Range().String()).
		Msg("block created")
	return b, nil
}

// CheckAvailability reports whether start..end is free for the test excludeCode.
// It never mutates anything.
func (s *Scheduler) CheckAvailability(start, end, excludeCode string) (conflict.Result, error) {
	r, err := parseCandidate(start, end)
	if err != nil {
		return conflict.Result{}, err
	}
	tests, blocks := s.repo.Snapshot()
	res := s.detector.Check(r, excludeCode, tests, blocks)
	metrics.IncAvailabilityCheck(res.Available)
	return res, nil
}

// BusyDays lists the days of month a picker must disable for excludeCode.
func (s *Scheduler) BusyDays(month time.Time, excludeCode string) []time.Time {
	tests, blocks := s.repo.Snapshot()
	return s.detector.BusyDays(month, excludeCode, tests, blocks)
}

func (s *Scheduler) committed(t *models.Test, role access.Role, eventType, msg string) {
	s.publish(eventType, testPayload(t, role))
	metrics.IncMutation(eventType)

	s.logger.Info().
		Str("test_code", t.Code).
		Str("role", string(role)).
		Str("range", t.Dates.String()).
		Str("scheduling", t.Steps[models.StepScheduling]).
		Int64("version", t.Version).
		Msg(msg)
}
