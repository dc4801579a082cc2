package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType names a mutation the assistant may request.
type ActionType string

const (
	// ActionUpdateTaskStatus moves a task to a new status.
	ActionUpdateTaskStatus ActionType = "update_task_status"
	// ActionUpdateGoalProgress sets a goal's progress percentage.
	ActionUpdateGoalProgress ActionType = "update_goal_progress"
	// ActionCreateTask creates a task.
	ActionCreateTask ActionType = "create_task"
	// ActionCreateGoal creates a goal.
	ActionCreateGoal ActionType = "create_goal"
	// ActionCreateCalendarEvent creates a calendar event.
	ActionCreateCalendarEvent ActionType = "create_calendar_event"
	// ActionCreateFinancialRecord creates a financial record.
	ActionCreateFinancialRecord ActionType = "create_financial_record"
)

// Known reports whether t is an action the executor understands.
func (t ActionType) Known() bool {
	switch t {
	case ActionUpdateTaskStatus, ActionUpdateGoalProgress, ActionCreateTask,
		ActionCreateGoal, ActionCreateCalendarEvent, ActionCreateFinancialRecord:
		return true
	}
	return false
}

// Action is a typed mutation request. Parameters holds the JSON argument
// object exactly as supplied by the model or built by the engine.
type Action struct {
	Type       ActionType      `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
}

// NewAction builds an action by encoding params as its argument object.
func NewAction(actionType ActionType, params any) (Action, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Action{}, fmt.Errorf("failed to encode %s parameters: %w", actionType, err)
	}
	return Action{Type: actionType, Parameters: raw}, nil
}

// Decode unmarshals the action parameters into dst.
func (a Action) Decode(dst any) error {
	if len(a.Parameters) == 0 {
		return fmt.Errorf("%w: %s has no parameters", ErrInvalidInput, a.Type)
	}
	if err := json.Unmarshal(a.Parameters, dst); err != nil {
		return fmt.Errorf("%w: %s parameters: %v", ErrInvalidInput, a.Type, err)
	}
	return nil
}

// TaskStatusParams are the arguments of update_task_status.
type TaskStatusParams struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
}

// GoalProgressParams are the arguments of update_goal_progress. Progress is
// a float because models occasionally send fractional percentages.
type GoalProgressParams struct {
	GoalID   string  `json:"goalId"`
	Progress float64 `json:"progress"`
}

// Describe renders a short human phrase for the action, used in
// confirmation messages.
func (a Action) Describe() string {
	switch a.Type {
	case ActionUpdateTaskStatus:
		var p TaskStatusParams
		if a.Decode(&p) == nil {
			return fmt.Sprintf("marked task %s as %s", p.TaskID, strings.ReplaceAll(string(p.Status), "_", " "))
		}
	case ActionUpdateGoalProgress:
		var p GoalProgressParams
		if a.Decode(&p) == nil {
			return fmt.Sprintf("set goal %s progress to %.0f%%", p.GoalID, p.Progress)
		}
	case ActionCreateTask:
		var p TaskInput
		if a.Decode(&p) == nil && p.Title != "" {
			return fmt.Sprintf("created task %q", p.Title)
		}
	case ActionCreateGoal:
		var p GoalInput
		if a.Decode(&p) == nil && p.Title != "" {
			return fmt.Sprintf("created goal %q", p.Title)
		}
	case ActionCreateCalendarEvent:
		var p CalendarEventInput
		if a.Decode(&p) == nil && p.Title != "" {
			return fmt.Sprintf("scheduled %q", p.Title)
		}
	case ActionCreateFinancialRecord:
		var p FinancialRecordInput
		if a.Decode(&p) == nil {
			return fmt.Sprintf("recorded %s of %s (%s)", p.Type, p.Amount.StringFixed(2), p.Category)
		}
	}
	return strings.ReplaceAll(string(a.Type), "_", " ")
}
