// Package storage provides the SQLite persistence layer for bizpilot.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
)

// Validation errors. All of them wrap common.ErrValidation.
var (
	ErrNilContext   = fmt.Errorf("%w: context cannot be nil", common.ErrValidation)
	ErrEmptyString  = fmt.Errorf("%w: string parameter cannot be empty", common.ErrValidation)
	ErrNilParameter = fmt.Errorf("%w: parameter cannot be nil", common.ErrValidation)
	ErrInvalidEnum  = fmt.Errorf("%w: value not allowed", common.ErrValidation)
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateScope checks the context and the account/row identifiers every
// account-scoped call carries.
func validateScope(ctx context.Context, accountID string, ids ...string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}
	for _, id := range ids {
		if err := validateString(id, "id"); err != nil {
			return err
		}
	}
	return nil
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, common.ErrNotFound)
}

func validateTask(task *model.Task) error {
	if task == nil {
		return fmt.Errorf("%w: task", ErrNilParameter)
	}
	if err := validateString(task.AccountID, "task.AccountID"); err != nil {
		return err
	}
	if err := validateString(task.Title, "task.Title"); err != nil {
		return err
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("%w: priority %q", ErrInvalidEnum, task.Priority)
	}
	if !task.Status.Valid() {
		return fmt.Errorf("%w: task status %q", ErrInvalidEnum, task.Status)
	}
	return nil
}

func validateGoal(goal *model.Goal) error {
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if err := validateString(goal.AccountID, "goal.AccountID"); err != nil {
		return err
	}
	if err := validateString(goal.Title, "goal.Title"); err != nil {
		return err
	}
	if !goal.Type.Valid() {
		return fmt.Errorf("%w: goal type %q", ErrInvalidEnum, goal.Type)
	}
	if !goal.Status.Valid() {
		return fmt.Errorf("%w: goal status %q", ErrInvalidEnum, goal.Status)
	}
	if goal.TargetAmount != nil && *goal.TargetAmount <= 0 {
		return fmt.Errorf("%w: target amount must be positive", common.ErrValidation)
	}
	return nil
}

func validateFinancialRecord(record *model.FinancialRecord) error {
	if record == nil {
		return fmt.Errorf("%w: financial record", ErrNilParameter)
	}
	if err := validateString(record.AccountID, "record.AccountID"); err != nil {
		return err
	}
	if err := validateString(record.Category, "record.Category"); err != nil {
		return err
	}
	if !record.Type.Valid() {
		return fmt.Errorf("%w: record type %q", ErrInvalidEnum, record.Type)
	}
	if record.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	}
	if record.Date.IsZero() {
		return fmt.Errorf("%w: record date is required", common.ErrValidation)
	}
	return nil
}

func validateCalendarEvent(event *model.CalendarEvent) error {
	if event == nil {
		return fmt.Errorf("%w: calendar event", ErrNilParameter)
	}
	if err := validateString(event.AccountID, "event.AccountID"); err != nil {
		return err
	}
	if err := validateString(event.Title, "event.Title"); err != nil {
		return err
	}
	if event.StartTime.IsZero() {
		return fmt.Errorf("%w: event start time is required", common.ErrValidation)
	}
	if event.EndTime.Before(event.StartTime) {
		return fmt.Errorf("%w: event ends before it starts", common.ErrValidation)
	}
	return nil
}

func validateInsight(insight *model.Insight) error {
	if insight == nil {
		return fmt.Errorf("%w: insight", ErrNilParameter)
	}
	if err := validateString(insight.AccountID, "insight.AccountID"); err != nil {
		return err
	}
	if err := validateString(insight.Title, "insight.Title"); err != nil {
		return err
	}
	if insight.Confidence < 0 || insight.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", common.ErrValidation)
	}
	return nil
}

func validateMessage(msg *model.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message", ErrNilParameter)
	}
	if err := validateString(msg.AccountID, "message.AccountID"); err != nil {
		return err
	}
	if err := validateString(msg.ConversationID, "message.ConversationID"); err != nil {
		return err
	}
	if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
		return fmt.Errorf("%w: role %q", ErrInvalidEnum, msg.Role)
	}
	return nil
}
