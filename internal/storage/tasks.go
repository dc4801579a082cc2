package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/bizpilot/internal/model"
)

const taskColumns = `id, account_id, title, description, priority, status, due_date, created_at, updated_at`

// CreateTask inserts a task. An empty ID is assigned.
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *model.Task) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTask(task); err != nil {
		return err
	}

	if task.ID == "" {
		task.ID = newID()
	}
	now := s.now()
	task.CreatedAt, task.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.AccountID, task.Title, task.Description, string(task.Priority), string(task.Status),
		nullTime(task.DueDate), task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask returns one task owned by accountID.
func (s *SQLiteStorage) GetTask(ctx context.Context, accountID, id string) (*model.Task, error) {
	if err := validateScope(ctx, accountID, id); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ? AND account_id = ?
	`, id, accountID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks returns every task for the account, newest first.
func (s *SQLiteStorage) ListTasks(ctx context.Context, accountID string) ([]model.Task, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE account_id = ?
		ORDER BY created_at DESC, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTask overwrites the mutable fields of a task.
func (s *SQLiteStorage) UpdateTask(ctx context.Context, task *model.Task) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTask(task); err != nil {
		return err
	}
	if err := validateString(task.ID, "task.ID"); err != nil {
		return err
	}

	task.UpdatedAt = s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, status = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`, task.Title, task.Description, string(task.Priority), string(task.Status), nullTime(task.DueDate), task.UpdatedAt,
		task.ID, task.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return affectedOne(result, "task", task.ID)
}

// UpdateTaskStatus moves a task to status. Any transition is allowed.
func (s *SQLiteStorage) UpdateTaskStatus(ctx context.Context, accountID, id string, status model.TaskStatus) error {
	if err := validateScope(ctx, accountID, id); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: task status %q", ErrInvalidEnum, status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`, string(status), s.now(), id, accountID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return affectedOne(result, "task", id)
}

// DeleteTask removes a task.
func (s *SQLiteStorage) DeleteTask(ctx context.Context, accountID, id string) error {
	if err := validateScope(ctx, accountID, id); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return affectedOne(result, "task", id)
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		task    model.Task
		dueDate sql.NullTime
	)
	if err := row.Scan(&task.ID, &task.AccountID, &task.Title, &task.Description, &task.Priority,
		&task.Status, &dueDate, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.DueDate = timePtr(dueDate)
	return &task, nil
}
