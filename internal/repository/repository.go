// Package repository keeps the live collection of tests and facility blocks.
// Every mutation goes through Update or AddBlock, which enforce the record
// invariants and bump the per-test version counter.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smflab/internal/models"
	"smflab/internal/workflow"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateCode          = errors.New("duplicate code")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrArchived               = errors.New("test is archived and read-only")
)

// AnyVersion skips the compare-and-swap check in Update.
const AnyVersion int64 = 0

// Persister writes committed records to durable storage.
// A failing Persister aborts the commit.
type Persister interface {
	SaveTest(ctx context.Context, t *models.Test) error
	SaveBlock(ctx context.Context, b *models.FacilityBlock) error
}

// View is a read-only look at the collection handed to update callbacks.
// Callbacks must not modify it or keep references after returning.
type View struct {
	Tests  []*models.Test
	Blocks []models.FacilityBlock
}

// Repository is an in-memory, insertion-ordered store keyed by test code.
type Repository struct {
	mu        sync.RWMutex
	order     []string
	tests     map[string]*models.Test
	blocks    []models.FacilityBlock
	persister Persister
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates an empty repository.
func New(logger *zerolog.Logger) *Repository {
	return &Repository{
		tests:  make(map[string]*models.Test),
		now:    time.Now,
		logger: logger.With().Str("component", "repository").Logger(),
	}
}

// SetPersister attaches durable storage. Call before serving traffic.
func (r *Repository) SetPersister(p Persister) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persister = p
}

// Load replaces the contents with records read from storage, without persisting them again.
func (r *Repository) Load(tests []*models.Test, blocks []models.FacilityBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	r.tests = make(map[string]*models.Test, len(tests))
	for _, t := range tests {
		c := t.Clone()
		if err := prepare(c); err != nil {
			return fmt.Errorf("load %s: %w", c.Code, err)
		}
		if _, ok := r.tests[c.Code]; ok {
			return fmt.Errorf("load %s: %w", c.Code, ErrDuplicateCode)
		}
		if c.Version == 0 {
			c.Version = 1
		}
		r.tests[c.Code] = c
		r.order = append(r.order, c.Code)
	}
	r.blocks = append([]models.FacilityBlock(nil), blocks...)

	r.logger.Info().Int("tests", len(r.tests)).Int("blocks", len(r.blocks)).Msg("repository loaded")
	return nil
}

func prepare(t *models.Test) error {
	if strings.TrimSpace(t.Code) == "" {
		return errors.New("test code is required")
	}
	if err := t.Dates.Validate(); err != nil {
		return err
	}
	if t.Steps == nil {
		t.Steps = models.DefaultSteps()
	}
	for _, key := range models.StepKeys {
		if _, ok := t.Steps[key]; !ok {
			t.Steps[key] = models.DefaultSteps()[key]
		}
	}
	if err := workflow.ValidateSteps(t.Steps); err != nil {
		return err
	}
	workflow.Normalize(t)
	if t.Status == "" {
		t.Status = models.StatusOngoing
		if t.Archived {
			t.Status = models.StatusClosed
		}
	}
	return nil
}

// Insert adds a new test. Missing steps default and SCHEDULING is derived.
func (r *Repository) Insert(ctx context.Context, t *models.Test) (*models.Test, error) {
	c := t.Clone()
	if err := prepare(c); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tests[c.Code]; ok {
		return nil, fmt.Errorf("%s: %w", c.Code, ErrDuplicateCode)
	}

	now := r.now()
	c.Version = 1
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if r.persister != nil {
		if err := r.persister.SaveTest(ctx, c); err != nil {
			return nil, fmt.Errorf("persist test %s: %w", c.Code, err)
		}
	}

	r.tests[c.Code] = c
	r.order = append(r.order, c.Code)
	return c.Clone(), nil
}

// Has reports whether a test code exists.
func (r *Repository) Has(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tests[code]
	return ok
}

// Get returns a copy of the test.
func (r *Repository) Get(code string) (*models.Test, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tests[code]
	if !ok {
		return nil, fmt.Errorf("test %s: %w", code, ErrNotFound)
	}
	return t.Clone(), nil
}

// List returns copies of every test in insertion order.
func (r *Repository) List() []*models.Test {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Repository) listLocked() []*models.Test {
	out := make([]*models.Test, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.tests[code].Clone())
	}
	return out
}

// Blocks returns a copy of all facility blocks in creation order.
func (r *Repository) Blocks() []models.FacilityBlock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.FacilityBlock(nil), r.blocks...)
}

// Snapshot returns tests and blocks read under a single lock.
func (r *Repository) Snapshot() ([]*models.Test, []models.FacilityBlock) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(), append([]models.FacilityBlock(nil), r.blocks...)
}

func (r *Repository) viewLocked() View {
	tests := make([]*models.Test, 0, len(r.order))
	for _, code := range r.order {
		tests = append(tests, r.tests[code])
	}
	return View{Tests: tests, Blocks: r.blocks}
}

// UpdateFunc mutates a working copy of a test. Returning an error aborts the update.
type UpdateFunc func(t *models.Test, view View) error

// Update applies fn to an active test. expectedVersion must match the stored version
// unless it is AnyVersion. The check, fn and the commit run under the write lock,
// so fn may consult view for admission decisions.
func (r *Repository) Update(ctx context.Context, code string, expectedVersion int64, fn UpdateFunc) (*models.Test, error) {
	return r.update(ctx, code, expectedVersion, false, fn)
}

// UpdateArchived is Update for the single action allowed on archived records.
func (r *Repository) UpdateArchived(ctx context.Context, code string, expectedVersion int64, fn UpdateFunc) (*models.Test, error) {
	return r.update(ctx, code, expectedVersion, true, fn)
}

func (r *Repository) update(ctx context.Context, code string, expectedVersion int64, allowArchived bool, fn UpdateFunc) (*models.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tests[code]
	if !ok {
		return nil, fmt.Errorf("test %s: %w", code, ErrNotFound)
	}
	if expectedVersion != AnyVersion && current.Version != expectedVersion {
		return nil, fmt.Errorf("test %s at version %d, expected %d: %w",
			code, current.Version, expectedVersion, ErrConcurrentModification)
	}
	if current.Archived && !allowArchived {
		return nil, fmt.Errorf("test %s: %w", code, ErrArchived)
	}

	work := current.Clone()
	if err := fn(work, r.viewLocked()); err != nil {
		return nil, err
	}
	if work.Code != code {
		return nil, errors.New("test code is immutable")
	}
	if err := work.Dates.Validate(); err != nil {
		return nil, err
	}
	workflow.Normalize(work)
	work.Version = current.Version + 1
	work.UpdatedAt = r.now()

	if r.persister != nil {
		if err := r.persister.SaveTest(ctx, work); err != nil {
			return nil, fmt.Errorf("persist test %s: %w", code, err)
		}
	}

	r.tests[code] = work
	return work.Clone(), nil
}

// BlockFunc validates a block before it is appended.
type BlockFunc func(b *models.FacilityBlock, view View) error

// AddBlock appends a facility block. An empty code gets the next free "B-NN" code.
// check, when non-nil, runs under the write lock before the block is stored.
func (r *Repository) AddBlock(ctx context.Context, b models.FacilityBlock, check BlockFunc) (models.FacilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Code == "" {
		b.Code = r.nextBlockCodeLocked()
	}
	for i := range r.blocks {
		if r.blocks[i].Code == b.Code {
			return models.FacilityBlock{}, fmt.Errorf("block %s: %w", b.Code, ErrDuplicateCode)
		}
	}
	b.Start, b.End = models.Day(b.Start), models.Day(b.End)
	if b.End.Before(b.Start) {
		return models.FacilityBlock{}, models.ErrInvertedRange
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now()
	}
	if check != nil {
		if err := check(&b, r.viewLocked()); err != nil {
			return models.FacilityBlock{}, err
		}
	}

	if r.persister != nil {
		if err := r.persister.SaveBlock(ctx, &b); err != nil {
			return models.FacilityBlock{}, fmt.Errorf("persist block %s: %w", b.Code, err)
		}
	}

	r.blocks = append(r.blocks, b)
	return b, nil
}

// NextBlockCode returns the code AddBlock would assign now.
func (r *Repository) NextBlockCode() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextBlockCodeLocked()
}

func (r *Repository) nextBlockCodeLocked() string {
	taken := make(map[string]bool, len(r.blocks))
	for i := range r.blocks {
		taken[r.blocks[i].Code] = true
	}
	for n := len(r.blocks) + 1; ; n++ {
		code := fmt.Sprintf("B-%02d", n)
		if !taken[code] {
			return code
		}
	}
}
