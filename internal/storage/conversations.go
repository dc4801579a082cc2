package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/bizpilot/internal/model"
)

// CreateConversation inserts a conversation.
func (s *SQLiteStorage) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("%w: conversation", ErrNilParameter)
	}
	if err := validateString(conv.AccountID, "conversation.AccountID"); err != nil {
		return err
	}

	if conv.ID == "" {
		conv.ID = newID()
	}
	now := s.now()
	conv.CreatedAt, conv.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, account_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, conv.AccountID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation returns a conversation owned by accountID.
func (s *SQLiteStorage) GetConversation(ctx context.Context, accountID, id string) (*model.Conversation, error) {
	if err := validateScope(ctx, accountID, id); err != nil {
		return nil, err
	}

	var conv model.Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, title, created_at, updated_at
		FROM conversations
		WHERE id = ? AND account_id = ?
	`, id, accountID).Scan(&conv.ID, &conv.AccountID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("conversation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns the account's conversations, most recently
// active first.
func (s *SQLiteStorage) ListConversations(ctx context.Context, accountID string) ([]model.Conversation, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, title, created_at, updated_at
		FROM conversations
		WHERE account_id = ?
		ORDER BY updated_at DESC, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	convs := []model.Conversation{}
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.AccountID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// TouchConversation bumps a conversation's updated timestamp.
func (s *SQLiteStorage) TouchConversation(ctx context.Context, accountID, id string) error {
	if err := validateScope(ctx, accountID, id); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ? AND account_id = ?
	`, s.now(), id, accountID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return affectedOne(result, "conversation", id)
}

// CreateMessage appends a message to a conversation the account owns.
func (s *SQLiteStorage) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMessage(msg); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = newID()
	}
	msg.CreatedAt = s.now()

	// The insert selects from conversations so a foreign conversation id
	// inserts nothing.
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, account_id, role, content, created_at)
		SELECT ?, id, account_id, ?, ?, ?
		FROM conversations
		WHERE id = ? AND account_id = ?
	`, msg.ID, string(msg.Role), msg.Content, msg.CreatedAt, msg.ConversationID, msg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return affectedOne(result, "conversation", msg.ConversationID)
}

// ListMessages returns a conversation's messages oldest first.
func (s *SQLiteStorage) ListMessages(ctx context.Context, accountID, conversationID string) ([]model.Message, error) {
	if err := validateScope(ctx, accountID, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, account_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ? AND account_id = ?
		ORDER BY created_at, rowid
	`, conversationID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []model.Message{}
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.AccountID, &msg.Role, &msg.Content,
			&msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
