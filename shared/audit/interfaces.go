package audit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// TableExporter provides read access to the tables included in the export.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	// GetTableData returns the rows of a table keyed by column, plus the column order.
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)
}

// ExcelWriter writes sheets of tabular data.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	Close() error
}

// Notifier delivers the finished report to managers.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Cleaner removes audit log rows past their retention.
type Cleaner interface {
	DeleteOldAudit(ctx context.Context, olderThan time.Duration) (int64, error)
}

// GenerateFilename names the report covering the month of t, e.g. "smflab_audit_2025-06_June.xlsx".
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("smflab_audit_%04d-%02d_%s.xlsx", t.Year(), int(t.Month()), t.Month().String())
}

// previousMonth returns the first day of the month before now.
func previousMonth(now time.Time) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0)
}
