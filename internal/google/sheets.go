// Package google mirrors the live schedule into a Google Sheets spreadsheet.
package google

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"smflab/internal/events"
	"smflab/internal/models"
	"smflab/internal/workflow"
)

// DefaultDebounce coalesces bursts of mutations into one sheet rewrite.
const DefaultDebounce = 5 * time.Second

var testHeader = []interface{}{"Code", "Name", "Requester", "Division", "PBS", "Start", "End", "Scheduling", "Progress"}

var blockHeader = []interface{}{"Block", "Type", "Title", "Start", "End"}

// Snapshotter is the read side of the repository the mirror needs.
type Snapshotter interface {
	Snapshot() ([]*models.Test, []models.FacilityBlock)
}

// ValuesAPI is the subset of the Sheets values API the mirror uses.
type ValuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

type sheetsValues struct {
	svc *sheets.Service
}

func (v *sheetsValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := v.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (v *sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// SheetsService rewrites one sheet with the current schedule.
type SheetsService struct {
	api           ValuesAPI
	spreadsheetID string
	sheetName     string
	source        Snapshotter
	dirty         chan struct{}

	mu       sync.Mutex
	lastSync time.Time

	logger zerolog.Logger
}

// NewSheetsService authenticates with a service-account JSON key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, source Snapshotter, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return NewWithAPI(&sheetsValues{svc: svc}, spreadsheetID, sheetName, source, logger), nil
}

// NewWithAPI builds the mirror on an existing values client.
func NewWithAPI(api ValuesAPI, spreadsheetID, sheetName string, source Snapshotter, logger *zerolog.Logger) *SheetsService {
	if sheetName == "" {
		sheetName = "Schedule"
	}
	return &SheetsService{
		api:           api,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		source:        source,
		dirty:         make(chan struct{}, 1),
		logger:        logger.With().Str("component", "sheets").Logger(),
	}
}

// Subscribe marks the mirror stale on every committed mutation.
func (s *SheetsService) Subscribe(bus interface {
	SubscribeAll(handler events.EventHandler)
}) {
	bus.SubscribeAll(func(events.Event) error {
		s.MarkDirty()
		return nil
	})
}

// MarkDirty schedules a rewrite; repeated calls before the next sync collapse into one.
func (s *SheetsService) MarkDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Run syncs once at startup, then after each quiet period following a change.
func (s *SheetsService) Run(ctx context.Context, debounce time.Duration) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := s.Sync(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial sheet sync failed")
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
			timer.Reset(debounce)
		case <-timer.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sheet sync failed")
			}
		}
	}
}

// Sync clears the sheet and writes the current snapshot.
func (s *SheetsService) Sync(ctx context.Context) error {
	tests, blocks := s.source.Snapshot()
	rows := buildRows(tests, blocks)

	if err := s.api.Clear(ctx, s.spreadsheetID, s.sheetName); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	if err := s.api.Update(ctx, s.spreadsheetID, fmt.Sprintf("'%s'!A1", s.sheetName), rows); err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}

	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
	s.logger.Debug().Int("rows", len(rows)).Msg("sheet synced")
	return nil
}

// LastSync reports when the sheet was last written.
func (s *SheetsService) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

func buildRows(tests []*models.Test, blocks []models.FacilityBlock) [][]interface{} {
	rows := [][]interface{}{testHeader}
	for _, t := range filterActiveTests(tests) {
		rows = append(rows, testRowValues(t))
	}
	if len(blocks) == 0 {
		return rows
	}

	rows = append(rows, []interface{}{}, blockHeader)
	for i := range blocks {
		rows = append(rows, blockRowValues(&blocks[i]))
	}
	return rows
}

func filterActiveTests(tests []*models.Test) []*models.Test {
	active := make([]*models.Test, 0, len(tests))
	for _, t := range tests {
		if !t.Archived {
			active = append(active, t)
		}
	}
	return active
}

func testRowValues(t *models.Test) []interface{} {
	return []interface{}{
		t.Code,
		t.Name,
		t.Requester,
		t.Division,
		t.PBS,
		models.FormatDate(t.Dates.Start),
		models.FormatDate(t.Dates.End),
		workflow.EffectiveScheduling(t),
		fmt.Sprintf("%d%%", workflow.Progress(t)),
	}
}

func blockRowValues(b *models.FacilityBlock) []interface{} {
	return []interface{}{
		b.Code,
		string(b.Type),
		b.Title,
		b.Start.Format(models.DateLayout),
		b.End.Format(models.DateLayout),
	}
}
