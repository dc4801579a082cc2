package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/bizpilot/internal/model"
)

// CreateDocument inserts a document with its extracted text.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}
	if err := validateString(doc.AccountID, "document.AccountID"); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	if doc.ID == "" {
		doc.ID = newID()
	}
	doc.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, account_id, title, file_name, content, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.AccountID, doc.Title, doc.FileName, doc.Content, doc.Summary, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// ListDocuments returns the account's documents, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, accountID string) ([]model.Document, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, title, file_name, content, summary, created_at
		FROM documents
		WHERE account_id = ?
		ORDER BY created_at DESC, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := []model.Document{}
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.AccountID, &doc.Title, &doc.FileName, &doc.Content,
			&doc.Summary, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
