// Package audit produces the monthly XLSX export of the scheduler's tables and
// prunes the audit log.
package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for the audit service.
type Config struct {
	// Retention is how long audit log rows are kept. Default: 365 days.
	Retention time.Duration
	// ExportPath, when set, also keeps a copy of each report on disk.
	ExportPath    string
	ExportOnStart bool
	Caption       string
}

// Service handles monthly audit exports and log cleanup.
type Service struct {
	config   Config
	exporter TableExporter
	writer   func() ExcelWriter
	notifier Notifier
	cleaner  Cleaner
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(
	config Config,
	exporter TableExporter,
	writerFactory func() ExcelWriter,
	notifier Notifier,
	cleaner Cleaner,
	logger *zerolog.Logger,
) *Service {
	if config.Retention <= 0 {
		config.Retention = 365 * 24 * time.Hour
	}
	if config.Caption == "" {
		config.Caption = "📊 SMF lab monthly audit"
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}

	return &Service{
		config:   config,
		exporter: exporter,
		writer:   writerFactory,
		notifier: notifier,
		cleaner:  cleaner,
		now:      time.Now,
		logger:   logger.With().Str("component", "audit").Logger(),
	}
}

// Start runs the export and cleanup on the first of every month until ctx is done.
func (s *Service) Start(ctx context.Context) {
	if s.config.ExportOnStart {
		go s.RunExportAndCleanup(ctx)
	}

	go func() {
		nextRun := nextFirstOfMonth(s.now())
		timer := time.NewTimer(nextRun.Sub(s.now()))
		defer timer.Stop()
		s.logger.Info().Time("next_run", nextRun).Dur("retention", s.config.Retention).Msg("audit service started")

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("audit service stopped")
				return
			case <-timer.C:
				s.RunExportAndCleanup(ctx)
				nextRun = nextFirstOfMonth(s.now())
				timer.Reset(nextRun.Sub(s.now()))
				s.logger.Info().Time("next_run", nextRun).Msg("next audit scheduled")
			}
		}
	}()
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// RunExportAndCleanup exports first, then prunes; a failed export does not block cleanup.
func (s *Service) RunExportAndCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if _, err := s.Export(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to export audit data")
	}
	if _, err := s.Cleanup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to clean up audit log")
	}
}

// Export builds the workbook, one sheet per table, and delivers it. It returns the report filename.
func (s *Service) Export(ctx context.Context) (string, error) {
	if s.exporter == nil {
		return "", errors.New("exporter not configured")
	}

	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return "", fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		s.logger.Info().Msg("no tables to export")
		return "", nil
	}

	excel := s.writer()
	defer excel.Close()

	for _, tableName := range tables {
		if err := s.exportTable(ctx, excel, tableName); err != nil {
			s.logger.Error().Err(err).Str("table", tableName).Msg("table skipped")
		}
	}

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return "", fmt.Errorf("save excel: %w", err)
	}

	filename := GenerateFilename(previousMonth(s.now()))
	if s.config.ExportPath != "" {
		if err := os.MkdirAll(s.config.ExportPath, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(s.config.ExportPath, filename), buf.Bytes(), 0o644); err != nil {
			return "", fmt.Errorf("write export: %w", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.SendDocument(ctx, filename, bytes.NewReader(buf.Bytes()), s.config.Caption); err != nil {
			return filename, fmt.Errorf("send document: %w", err)
		}
	}

	s.logger.Info().Str("filename", filename).Int("tables", len(tables)).Msg("audit report exported")
	return filename, nil
}

func (s *Service) exportTable(ctx context.Context, excel ExcelWriter, tableName string) error {
	data, columns, err := s.exporter.GetTableData(ctx, tableName)
	if err != nil {
		return fmt.Errorf("get table data: %w", err)
	}
	if err := excel.AddSheet(tableName); err != nil {
		return err
	}
	if err := excel.WriteHeader(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range data {
		rowData := make([]interface{}, len(columns))
		for i, col := range columns {
			rowData[i] = row[col]
		}
		if err := excel.WriteRow(rowData); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	s.logger.Debug().Str("table", tableName).Int("rows", len(data)).Msg("exported table")
	return nil
}

// Cleanup deletes audit log rows older than the retention.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	if s.cleaner == nil {
		return 0, nil
	}

	deleted, err := s.cleaner.DeleteOldAudit(ctx, s.config.Retention)
	if err != nil {
		return 0, fmt.Errorf("delete old audit rows: %w", err)
	}

	s.logger.Info().Int64("deleted", deleted).Dur("retention", s.config.Retention).Msg("cleaned up audit log")
	return deleted, nil
}
