package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smflab/internal/models"
)

// SaveTest upserts a test together with its steps and operators in one transaction.
func (db *DB) SaveTest(ctx context.Context, t *models.Test) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := t.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tests (code, name, requester, requester_role, division, pbs, status, archived,
			start_date, end_date, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			requester = excluded.requester,
			requester_role = excluded.requester_role,
			division = excluded.division,
			pbs = excluded.pbs,
			status = excluded.status,
			archived = excluded.archived,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		t.Code, t.Name, t.Requester, t.RequesterRole, t.Division, t.PBS, t.Status, t.Archived,
		nullDate(t.Dates.Start), nullDate(t.Dates.End), t.Version, createdAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert test %s: %w", t.Code, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM test_steps WHERE test_code = ?`, t.Code); err != nil {
		return fmt.Errorf("clear steps %s: %w", t.Code, err)
	}
	for _, key := range models.StepKeys {
		value, ok := t.Steps[key]
		if !ok {
			continue
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO test_steps (test_code, step, value) VALUES (?, ?, ?)`,
			t.Code, string(key), value,
		); err != nil {
			return fmt.Errorf("insert step %s/%s: %w", t.Code, key, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM test_operators WHERE test_code = ?`, t.Code); err != nil {
		return fmt.Errorf("clear operators %s: %w", t.Code, err)
	}
	for i, name := range t.Operators {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO test_operators (test_code, position, name) VALUES (?, ?, ?)`,
			t.Code, i, name,
		); err != nil {
			return fmt.Errorf("insert operator %s: %w", t.Code, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit test %s: %w", t.Code, err)
	}

	db.logger.Debug().Str("test_code", t.Code).Int64("version", t.Version).Msg("test saved")
	return nil
}

// SaveBlock inserts a facility block. Blocks are append-only.
func (db *DB) SaveBlock(ctx context.Context, b *models.FacilityBlock) error {
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO facility_blocks (code, type, title, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.Code, string(b.Type), b.Title,
		b.Start.Format(models.DateLayout), b.End.Format(models.DateLayout), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.Code, err)
	}

	db.logger.Debug().Str("block_code", b.Code).Msg("block saved")
	return nil
}

// LoadAll reads every test in insertion order and every block in creation order.
func (db *DB) LoadAll(ctx context.Context) ([]*models.Test, []models.FacilityBlock, error) {
	tests, err := db.loadTests(ctx)
	if err != nil {
		return nil, nil, err
	}
	blocks, err := db.loadBlocks(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tests, blocks, nil
}

func (db *DB) loadTests(ctx context.Context) ([]*models.Test, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT code, name, requester, requester_role, division, pbs, status, archived,
			start_date, end_date, version, created_at, updated_at
		FROM tests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}

	var tests []*models.Test
	byCode := make(map[string]*models.Test)
	for rows.Next() {
		var (
			t          models.Test
			start, end sql.NullString
			createdAt  sql.NullTime
			updatedAt  sql.NullTime
		)
		if err := rows.Scan(&t.Code, &t.Name, &t.Requester, &t.RequesterRole, &t.Division, &t.PBS,
			&t.Status, &t.Archived, &start, &end, &t.Version, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan test: %w", err)
		}
		if t.Dates, err = rangeFromColumns(start, end); err != nil {
			rows.Close()
			return nil, fmt.Errorf("test %s dates: %w", t.Code, err)
		}
		t.CreatedAt = createdAt.Time
		t.UpdatedAt = updatedAt.Time
		t.Steps = models.Steps{}

		tests = append(tests, &t)
		byCode[t.Code] = &t
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := db.loadSteps(ctx, byCode); err != nil {
		return nil, err
	}
	if err := db.loadOperators(ctx, byCode); err != nil {
		return nil, err
	}
	return tests, nil
}

func (db *DB) loadSteps(ctx context.Context, byCode map[string]*models.Test) error {
	rows, err := db.QueryContext(ctx, `SELECT test_code, step, value FROM test_steps`)
	if err != nil {
		return fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code, step, value string
		if err := rows.Scan(&code, &step, &value); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		if t, ok := byCode[code]; ok {
			t.Steps[models.StepKey(step)] = value
		}
	}
	return rows.Err()
}

func (db *DB) loadOperators(ctx context.Context, byCode map[string]*models.Test) error {
	rows, err := db.QueryContext(ctx, `SELECT test_code, name FROM test_operators ORDER BY test_code, position`)
	if err != nil {
		return fmt.Errorf("query operators: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return fmt.Errorf("scan operator: %w", err)
		}
		if t, ok := byCode[code]; ok {
			t.Operators = append(t.Operators, name)
		}
	}
	return rows.Err()
}

func (db *DB) loadBlocks(ctx context.Context) ([]models.FacilityBlock, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT code, type, title, start_date, end_date, created_at
		FROM facility_blocks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.FacilityBlock
	for rows.Next() {
		var (
			b          models.FacilityBlock
			blockType  string
			start, end string
			createdAt  sql.NullTime
		)
		if err := rows.Scan(&b.Code, &blockType, &b.Title, &start, &end, &createdAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if b.Type, err = models.ParseBlockType(blockType); err != nil {
			return nil, fmt.Errorf("block %s: %w", b.Code, err)
		}
		if b.Start, err = models.ParseDate(start); err != nil {
			return nil, fmt.Errorf("block %s start: %w", b.Code, err)
		}
		if b.End, err = models.ParseDate(end); err != nil {
			return nil, fmt.Errorf("block %s end: %w", b.Code, err)
		}
		b.CreatedAt = createdAt.Time
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// CountTests returns the number of stored tests; zero means the store needs seeding.
func (db *DB) CountTests(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tests: %w", err)
	}
	return n, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: models.FormatDate(t), Valid: true}
}

func rangeFromColumns(start, end sql.NullString) (models.DateRange, error) {
	var s, e string
	if start.Valid {
		s = start.String
	}
	if end.Valid {
		e = end.String
	}
	return models.NewRange(s, e)
}
