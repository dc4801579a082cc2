package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/bizpilot/internal/model"
)

const goalColumns = `id, account_id, title, description, category, type, status, target_amount, target_date, progress, created_at, updated_at`

// CreateGoal inserts a goal. Progress is clamped before it is written.
func (s *SQLiteStorage) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGoal(goal); err != nil {
		return err
	}

	if goal.ID == "" {
		goal.ID = newID()
	}
	goal.Progress = model.ClampProgress(goal.Progress)
	now := s.now()
	goal.CreatedAt, goal.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, goal.ID, goal.AccountID, goal.Title, goal.Description, goal.Category, string(goal.Type), string(goal.Status),
		nullInt64(goal.TargetAmount), nullTime(goal.TargetDate), goal.Progress, goal.CreatedAt, goal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// GetGoal returns one goal owned by accountID.
func (s *SQLiteStorage) GetGoal(ctx context.Context, accountID, id string) (*model.Goal, error) {
	if err := validateScope(ctx, accountID, id); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals
		WHERE id = ? AND account_id = ?
	`, id, accountID)

	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("goal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return goal, nil
}

// ListGoals returns every goal for the account, newest first.
func (s *SQLiteStorage) ListGoals(ctx context.Context, accountID string) ([]model.Goal, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals
		WHERE account_id = ?
		ORDER BY created_at DESC, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	goals := []model.Goal{}
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	return goals, rows.Err()
}

// UpdateGoal overwrites the mutable fields of a goal. Progress is clamped.
func (s *SQLiteStorage) UpdateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGoal(goal); err != nil {
		return err
	}
	if err := validateString(goal.ID, "goal.ID"); err != nil {
		return err
	}

	goal.Progress = model.ClampProgress(goal.Progress)
	goal.UpdatedAt = s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE goals
		SET title = ?, description = ?, category = ?, type = ?, status = ?,
			target_amount = ?, target_date = ?, progress = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`, goal.Title, goal.Description, goal.Category, string(goal.Type), string(goal.Status),
		nullInt64(goal.TargetAmount), nullTime(goal.TargetDate), goal.Progress, goal.UpdatedAt,
		goal.ID, goal.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return affectedOne(result, "goal", goal.ID)
}

// UpdateGoalProgress sets a goal's progress, clamped into [0, 100].
func (s *SQLiteStorage) UpdateGoalProgress(ctx context.Context, accountID, id string, progress int) error {
	if err := validateScope(ctx, accountID, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE goals SET progress = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`, model.ClampProgress(progress), s.now(), id, accountID)
	if err != nil {
		return fmt.Errorf("failed to update goal progress: %w", err)
	}
	return affectedOne(result, "goal", id)
}

// DeleteGoal removes a goal.
func (s *SQLiteStorage) DeleteGoal(ctx context.Context, accountID, id string) error {
	if err := validateScope(ctx, accountID, id); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return affectedOne(result, "goal", id)
}

func scanGoal(row rowScanner) (*model.Goal, error) {
	var (
		goal         model.Goal
		targetAmount sql.NullInt64
		targetDate   sql.NullTime
	)
	if err := row.Scan(&goal.ID, &goal.AccountID, &goal.Title, &goal.Description, &goal.Category,
		&goal.Type, &goal.Status, &targetAmount, &targetDate, &goal.Progress,
		&goal.CreatedAt, &goal.UpdatedAt); err != nil {
		return nil, err
	}
	goal.TargetAmount = int64Ptr(targetAmount)
	goal.TargetDate = timePtr(targetDate)
	return &goal, nil
}
