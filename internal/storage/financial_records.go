package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/bizpilot/internal/model"
)

const financialRecordColumns = `id, account_id, type, category, description, amount, date, created_at, updated_at`

// CreateFinancialRecord inserts a financial record.
func (s *SQLiteStorage) CreateFinancialRecord(ctx context.Context, record *model.FinancialRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFinancialRecord(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = newID()
	}
	now := s.now()
	record.CreatedAt, record.UpdatedAt = now, now
	record.Date = record.Date.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_records (`+financialRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.AccountID, string(record.Type), record.Category, record.Description, record.Amount,
		record.Date, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create financial record: %w", err)
	}
	return nil
}

// GetFinancialRecord returns one record owned by accountID.
func (s *SQLiteStorage) GetFinancialRecord(ctx context.Context, accountID, id string) (*model.FinancialRecord, error) {
	if err := validateScope(ctx, accountID, id); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+financialRecordColumns+`
		FROM financial_records
		WHERE id = ? AND account_id = ?
	`, id, accountID)

	record, err := scanFinancialRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("financial record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get financial record: %w", err)
	}
	return record, nil
}

// ListFinancialRecords returns records newest first, at most limit of them
// when limit is positive.
func (s *SQLiteStorage) ListFinancialRecords(ctx context.Context, accountID string, limit int) ([]model.FinancialRecord, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+financialRecordColumns+`
		FROM financial_records
		WHERE account_id = ?
		ORDER BY date DESC, created_at DESC, id
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list financial records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.FinancialRecord{}
	for rows.Next() {
		record, err := scanFinancialRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan financial record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// UpdateFinancialRecord overwrites the mutable fields of a record.
func (s *SQLiteStorage) UpdateFinancialRecord(ctx context.Context, record *model.FinancialRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFinancialRecord(record); err != nil {
		return err
	}
	if err := validateString(record.ID, "record.ID"); err != nil {
		return err
	}

	record.UpdatedAt = s.now()
	record.Date = record.Date.UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE financial_records
		SET type = ?, category = ?, description = ?, amount = ?, date = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`, string(record.Type), record.Category, record.Description, record.Amount, record.Date, record.UpdatedAt,
		record.ID, record.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update financial record: %w", err)
	}
	return affectedOne(result, "financial record", record.ID)
}

// DeleteFinancialRecord removes a record.
func (s *SQLiteStorage) DeleteFinancialRecord(ctx context.Context, accountID, id string) error {
	if err := validateScope(ctx, accountID, id); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM financial_records WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete financial record: %w", err)
	}
	return affectedOne(result, "financial record", id)
}

// SumFinancialRecordsByType totals record amounts per type. Types with no
// records are absent from the map.
func (s *SQLiteStorage) SumFinancialRecordsByType(ctx context.Context, accountID string) (map[model.RecordType]int64, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(amount), 0)
		FROM financial_records
		WHERE account_id = ?
		GROUP BY type
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum financial records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := make(map[model.RecordType]int64)
	for rows.Next() {
		var (
			recordType model.RecordType
			total      int64
		)
		if err := rows.Scan(&recordType, &total); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		totals[recordType] = total
	}
	return totals, rows.Err()
}

func scanFinancialRecord(row rowScanner) (*model.FinancialRecord, error) {
	var record model.FinancialRecord
	if err := row.Scan(&record.ID, &record.AccountID, &record.Type, &record.Category, &record.Description,
		&record.Amount, &record.Date, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	return &record, nil
}
