package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"smflab/internal/events"
)

// AuditTableNames lists the tables exported in audit reports.
var AuditTableNames = []string{
	"tests",
	"test_steps",
	"test_operators",
	"facility_blocks",
	"audit_log",
}

// AppendAudit records a domain event in the audit log.
func (db *DB) AppendAudit(ctx context.Context, ev events.Event) error {
	var meta struct {
		Code string `json:"code"`
		Role string `json:"role"`
	}
	_ = json.Unmarshal(ev.Payload, &meta)

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, subject, role, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, meta.Code, meta.Role, string(ev.Payload), createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", ev.Type, err)
	}
	return nil
}

// AuditHandler returns an event handler that writes every event to the audit log.
func (db *DB) AuditHandler() events.EventHandler {
	return func(ev events.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.AppendAudit(ctx, ev)
	}
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Subject   string          `json:"subject"`
	Role      string          `json:"role"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListAudit returns audit entries for a subject (test or block code), newest first.
// An empty subject lists everything.
func (db *DB) ListAudit(ctx context.Context, subject string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, event_type, subject, role, payload, created_at FROM audit_log`
	args := []interface{}{}
	if subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			payload string
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Subject, &e.Role, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOldAudit removes audit rows older than the retention window.
func (db *DB) DeleteOldAudit(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	res, err := db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		db.logger.Info().Int64("deleted", n).Dur("retention", olderThan).Msg("audit log pruned")
	}
	return n, nil
}

// GetTableNames returns list of table names to export.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return AuditTableNames, nil
}

// GetTableData returns all rows from a table as maps.
func (db *DB) GetTableData(ctx context.Context, tableName string) (result []map[string]interface{}, columns []string, err error) {
	validTable := false
	for _, t := range AuditTableNames {
		if t == tableName {
			validTable = true
			break
		}
	}
	if !validTable {
		return nil, nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var cid int
		var name, typeName string
		var notNull, pk int
		var dfltValue sql.NullString
		if errScan := rows.Scan(&cid, &name, &typeName, &notNull, &dfltValue, &pk); errScan != nil {
			rows.Close()
			return nil, nil, errScan
		}
		columns = append(columns, name)
	}
	rows.Close()

	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("table %s has no columns", tableName)
	}

	dataRows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, nil, err
	}
	defer dataRows.Close()

	for dataRows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if errScan := dataRows.Scan(valuePtrs...); errScan != nil {
			return nil, nil, errScan
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	return result, columns, dataRows.Err()
}
