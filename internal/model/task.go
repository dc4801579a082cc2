// Package model defines the account-scoped business records and the
// action/correlation values exchanged between the assistant engine and storage.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	// PriorityLow marks a task that can wait.
	PriorityLow Priority = "low"
	// PriorityMedium is the default priority for new tasks.
	PriorityMedium Priority = "medium"
	// PriorityHigh marks an urgent task.
	PriorityHigh Priority = "high"
)

// Rank orders priorities so that higher values are more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// TaskStatus is the lifecycle state of a task. Any status may move to any other.
type TaskStatus string

const (
	// TaskPending is a task that has not been started.
	TaskPending TaskStatus = "pending"
	// TaskInProgress is a task being worked on.
	TaskInProgress TaskStatus = "in_progress"
	// TaskCompleted is a finished task.
	TaskCompleted TaskStatus = "completed"
)

// TaskStatuses lists every valid status in display order.
var TaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted}

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Task is a unit of work owned by an account.
type Task struct {
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
}

// TaskInput is the shape accepted when a task is created, either by a user
// or by an assistant action.
type TaskInput struct {
	DueDate     *Date      `json:"dueDate,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Status      TaskStatus `json:"status,omitempty"`
}

// Validate checks the input and fills defaults.
func (in *TaskInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %q", ErrInvalidInput, in.Priority)
	}
	if in.Status == "" {
		in.Status = TaskPending
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: invalid task status %q", ErrInvalidInput, in.Status)
	}
	return nil
}

// ToTask converts a validated input into a Task for the given account.
func (in TaskInput) ToTask(accountID string) Task {
	return Task{
		AccountID:   accountID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
		Status:      in.Status,
		DueDate:     in.DueDate.TimePtr(),
	}
}

// TaskPatch carries a partial task update; nil fields are left unchanged.
type TaskPatch struct {
	DueDate     *Date       `json:"dueDate,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
}

// Apply validates the patch and applies it to t.
func (p TaskPatch) Apply(t *Task) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return fmt.Errorf("%w: task title cannot be empty", ErrInvalidInput)
		}
		t.Title = title
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return fmt.Errorf("%w: invalid priority %q", ErrInvalidInput, *p.Priority)
		}
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return fmt.Errorf("%w: invalid task status %q", ErrInvalidInput, *p.Status)
		}
		t.Status = *p.Status
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate.TimePtr()
	}
	return nil
}
