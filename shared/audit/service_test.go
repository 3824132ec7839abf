package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeExporter struct {
	tables  []string
	rows    map[string][]map[string]interface{}
	columns map[string][]string
	failOn  string
}

func (f *fakeExporter) GetTableNames(context.Context) ([]string, error) {
	return f.tables, nil
}

func (f *fakeExporter) GetTableData(_ context.Context, table string) ([]map[string]interface{}, []string, error) {
	if table == f.failOn {
		return nil, nil, errors.New("no such table")
	}
	return f.rows[table], f.columns[table], nil
}

type mockNotifier struct {
	mock.Mock
	data []byte
}

func (m *mockNotifier) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	m.data, _ = io.ReadAll(data)
	args := m.Called(ctx, filename, caption)
	return args.Error(0)
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) DeleteOldAudit(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(cfg Config, exp TableExporter, n Notifier, c Cleaner) *Service {
	logger := zerolog.New(io.Discard)
	s := NewService(cfg, exp, nil, n, c, &logger)
	s.now = func() time.Time { return time.Date(2025, 7, 1, 0, 1, 0, 0, time.UTC) }
	return s
}

func sampleExporter() *fakeExporter {
	return &fakeExporter{
		tables: []string{"tests", "audit_log", "broken"},
		failOn: "broken",
		columns: map[string][]string{
			"tests":     {"code", "name", "version"},
			"audit_log": {"id", "event_type"},
		},
		rows: map[string][]map[string]interface{}{
			"tests": {
				{"code": "D-001", "name": "Vibration sweep", "version": int64(3)},
				{"code": "D-002", "name": "Acoustic test", "version": int64(1)},
			},
		},
	}
}

func TestExport(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("SendDocument", mock.Anything, "smflab_audit_2025-06_June.xlsx", "📊 SMF lab monthly audit").Return(nil)

	dir := t.TempDir()
	svc := newTestService(Config{ExportPath: dir}, sampleExporter(), notifier, nil)

	filename, err := svc.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "smflab_audit_2025-06_June.xlsx", filename)
	notifier.AssertExpectations(t)

	onDisk, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Equal(t, notifier.data, onDisk)

	f, err := excelize.OpenReader(bytes.NewReader(notifier.data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"tests", "audit_log"}, f.GetSheetList())

	rows, err := f.GetRows("tests")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"code", "name", "version"},
		{"D-001", "Vibration sweep", "3"},
		{"D-002", "Acoustic test", "1"},
	}, rows)

	rows, err = f.GetRows("audit_log")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "event_type"}}, rows)
}

func TestExportNotifierFailure(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("SendDocument", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("telegram down"))

	svc := newTestService(Config{}, sampleExporter(), notifier, nil)
	filename, err := svc.Export(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send document")
	assert.NotEmpty(t, filename)
}

func TestExportWithoutExporter(t *testing.T) {
	svc := newTestService(Config{}, nil, nil, nil)
	_, err := svc.Export(context.Background())
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	cleaner := &mockCleaner{}
	cleaner.On("DeleteOldAudit", mock.Anything, 90*24*time.Hour).Return(int64(4), nil)

	svc := newTestService(Config{Retention: 90 * 24 * time.Hour}, nil, nil, cleaner)
	deleted, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	cleaner.AssertExpectations(t)

	failing := &mockCleaner{}
	failing.On("DeleteOldAudit", mock.Anything, 365*24*time.Hour).Return(int64(0), errors.New("locked"))
	_, err = newTestService(Config{}, nil, nil, failing).Cleanup(context.Background())
	assert.Error(t, err)
}

func TestRunExportAndCleanupContinuesAfterExportFailure(t *testing.T) {
	cleaner := &mockCleaner{}
	cleaner.On("DeleteOldAudit", mock.Anything, mock.Anything).Return(int64(0), nil)

	svc := newTestService(Config{}, nil, nil, cleaner)
	svc.RunExportAndCleanup(context.Background())
	cleaner.AssertNumberOfCalls(t, "DeleteOldAudit", 1)
}

func TestSchedulingHelpers(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		next time.Time
		file string
	}{
		{
			name: "mid month",
			now:  time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
			next: time.Date(2025, 7, 1, 0, 1, 0, 0, time.UTC),
			file: "smflab_audit_2025-05_May.xlsx",
		},
		{
			name: "year boundary",
			now:  time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
			next: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
			file: "smflab_audit_2025-11_November.xlsx",
		},
		{
			name: "january reports december",
			now:  time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
			next: time.Date(2026, 2, 1, 0, 1, 0, 0, time.UTC),
			file: "smflab_audit_2025-12_December.xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.next, nextFirstOfMonth(tt.now))
			assert.Equal(t, tt.file, GenerateFilename(previousMonth(tt.now)))
		})
	}
}
