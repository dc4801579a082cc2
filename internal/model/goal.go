package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GoalType describes what a goal's target amount measures.
type GoalType string

const (
	// GoalRevenue goals track revenue earned toward a target.
	GoalRevenue GoalType = "revenue"
	// GoalExpense goals track budget headroom left under a spending cap.
	GoalExpense GoalType = "expense"
	// GoalOther goals have no deterministic progress formula.
	GoalOther GoalType = "other"
)

// Valid reports whether t is a known goal type.
func (t GoalType) Valid() bool {
	switch t {
	case GoalRevenue, GoalExpense, GoalOther:
		return true
	}
	return false
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	// GoalActive goals are being worked toward.
	GoalActive GoalStatus = "active"
	// GoalCompleted goals have been reached.
	GoalCompleted GoalStatus = "completed"
	// GoalPaused goals are on hold.
	GoalPaused GoalStatus = "paused"
)

// Valid reports whether s is a known goal status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused:
		return true
	}
	return false
}

// MinProgress and MaxProgress bound Goal.Progress.
const (
	MinProgress = 0
	MaxProgress = 100
)

// ClampProgress forces a progress value into [MinProgress, MaxProgress].
// Every code path that writes progress calls this, whether or not the
// caller already clamped.
func ClampProgress(progress int) int {
	if progress < MinProgress {
		return MinProgress
	}
	if progress > MaxProgress {
		return MaxProgress
	}
	return progress
}

// Goal is a business objective, optionally measured against a target amount.
type Goal struct {
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	TargetAmount *int64     `json:"targetAmount,omitempty"`
	TargetDate   *time.Time `json:"targetDate,omitempty"`
	ID           string     `json:"id"`
	AccountID    string     `json:"accountId"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Category     string     `json:"category,omitempty"`
	Type         GoalType   `json:"type"`
	Status       GoalStatus `json:"status"`
	Progress     int        `json:"progress"`
}

// HasTarget reports whether the goal's progress is derived from financial totals.
func (g Goal) HasTarget() bool {
	return g.TargetAmount != nil && *g.TargetAmount > 0
}

// GoalInput is the shape accepted when a goal is created. TargetAmount is
// expressed in major currency units.
type GoalInput struct {
	TargetAmount *decimal.Decimal `json:"targetAmount,omitempty"`
	TargetDate   *Date            `json:"targetDate,omitempty"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	Category     string           `json:"category,omitempty"`
	Type         GoalType         `json:"type,omitempty"`
	Status       GoalStatus       `json:"status,omitempty"`
	Progress     int              `json:"progress,omitempty"`
}

// Validate checks the input and fills defaults.
func (in *GoalInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: goal title is required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = GoalOther
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: invalid goal type %q", ErrInvalidInput, in.Type)
	}
	if in.Status == "" {
		in.Status = GoalActive
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: invalid goal status %q", ErrInvalidInput, in.Status)
	}
	if in.TargetAmount != nil {
		if _, err := PositiveMinorUnits(*in.TargetAmount); err != nil {
			return fmt.Errorf("target amount: %w", err)
		}
	}
	return nil
}

// ToGoal converts a validated input into a Goal for the given account.
func (in GoalInput) ToGoal(accountID string) (Goal, error) {
	goal := Goal{
		AccountID:   accountID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Type:        in.Type,
		Status:      in.Status,
		Progress:    ClampProgress(in.Progress),
		TargetDate:  in.TargetDate.TimePtr(),
	}
	if in.TargetAmount != nil {
		minor, err := PositiveMinorUnits(*in.TargetAmount)
		if err != nil {
			return Goal{}, fmt.Errorf("target amount: %w", err)
		}
		goal.TargetAmount = &minor
	}
	return goal, nil
}

// GoalPatch carries a partial goal update; nil fields are left unchanged.
type GoalPatch struct {
	TargetAmount *decimal.Decimal `json:"targetAmount,omitempty"`
	TargetDate   *Date            `json:"targetDate,omitempty"`
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Type         *GoalType        `json:"type,omitempty"`
	Status       *GoalStatus      `json:"status,omitempty"`
	Progress     *int             `json:"progress,omitempty"`
}

// Apply validates the patch and applies it to g. Progress is clamped.
func (p GoalPatch) Apply(g *Goal) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return fmt.Errorf("%w: goal title cannot be empty", ErrInvalidInput)
		}
		g.Title = title
	}
	if p.Description != nil {
		g.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		g.Category = strings.TrimSpace(*p.Category)
	}
	if p.Type != nil {
		if !p.Type.Valid() {
			return fmt.Errorf("%w: invalid goal type %q", ErrInvalidInput, *p.Type)
		}
		g.Type = *p.Type
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return fmt.Errorf("%w: invalid goal status %q", ErrInvalidInput, *p.Status)
		}
		g.Status = *p.Status
	}
	if p.TargetAmount != nil {
		minor, err := PositiveMinorUnits(*p.TargetAmount)
		if err != nil {
			return fmt.Errorf("target amount: %w", err)
		}
		g.TargetAmount = &minor
	}
	if p.TargetDate != nil {
		g.TargetDate = p.TargetDate.TimePtr()
	}
	if p.Progress != nil {
		g.Progress = ClampProgress(*p.Progress)
	}
	return nil
}
