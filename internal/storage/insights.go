package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/bizpilot/internal/model"
)

// CreateInsight inserts an analyzer insight.
func (s *SQLiteStorage) CreateInsight(ctx context.Context, insight *model.Insight) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInsight(insight); err != nil {
		return err
	}

	if insight.ID == "" {
		insight.ID = newID()
	}
	insight.CreatedAt = s.now()

	recordID := sql.NullString{String: insight.FinancialRecordID, Valid: insight.FinancialRecordID != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (id, account_id, type, title, content, confidence, financial_record_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, insight.ID, insight.AccountID, insight.Type, insight.Title, insight.Content, insight.Confidence,
		recordID, insight.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create insight: %w", err)
	}
	return nil
}

// ListInsights returns the account's insights, newest first.
func (s *SQLiteStorage) ListInsights(ctx context.Context, accountID string) ([]model.Insight, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, type, title, content, confidence, financial_record_id, created_at
		FROM insights
		WHERE account_id = ?
		ORDER BY created_at DESC, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	insights := []model.Insight{}
	for rows.Next() {
		var (
			insight  model.Insight
			recordID sql.NullString
		)
		if err := rows.Scan(&insight.ID, &insight.AccountID, &insight.Type, &insight.Title, &insight.Content,
			&insight.Confidence, &recordID, &insight.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insight.FinancialRecordID = recordID.String
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}
