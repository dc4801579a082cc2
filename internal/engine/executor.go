package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/service"
)

// Outcome reports what happened to one action.
type Outcome struct {
	Err error
	// RecordID is the id of the record the action touched or created.
	RecordID string
	Action   model.Action
}

// Applied reports whether the action was written to the store.
func (o Outcome) Applied() bool {
	return o.Err == nil
}

// Executor applies assistant actions one at a time. Each action is committed
// on its own; a failing action is logged and skipped and never stops the
// ones after it.
type Executor struct {
	store   service.Storage
	records *RecordService
	logger  *slog.Logger
}

// NewExecutor creates an executor. Create actions for goals and financial
// records go through records so they follow the same path as user writes.
func NewExecutor(store service.Storage, records *RecordService, logger *slog.Logger) *Executor {
	return &Executor{store: store, records: records, logger: common.OrDefault(logger)}
}

// Execute applies actions in order and returns one outcome per action.
func (e *Executor) Execute(ctx context.Context, accountID string, actions []model.Action) []Outcome {
	outcomes := make([]Outcome, 0, len(actions))
	for _, action := range actions {
		recordID, err := e.apply(ctx, accountID, action)
		outcomes = append(outcomes, Outcome{Action: action, RecordID: recordID, Err: err})

		if err != nil {
			e.logger.Warn("Skipped action",
				"account_id", accountID,
				"action", action.Type,
				"not_found", errors.Is(err, common.ErrNotFound),
				"error", err)
			continue
		}
		e.logger.Info("Applied action",
			"account_id", accountID,
			"action", action.Type,
			"record_id", recordID)
	}
	return outcomes
}

func (e *Executor) apply(ctx context.Context, accountID string, action model.Action) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch action.Type {
	case model.ActionUpdateTaskStatus:
		return e.updateTaskStatus(ctx, accountID, action)
	case model.ActionUpdateGoalProgress:
		return e.updateGoalProgress(ctx, accountID, action)
	case model.ActionCreateTask:
		return e.createTask(ctx, accountID, action)
	case model.ActionCreateGoal:
		return e.createGoal(ctx, accountID, action)
	case model.ActionCreateCalendarEvent:
		return e.createCalendarEvent(ctx, accountID, action)
	case model.ActionCreateFinancialRecord:
		return e.createFinancialRecord(ctx, accountID, action)
	default:
		return "", fmt.Errorf("%w: unknown action %q", common.ErrValidation, action.Type)
	}
}

func (e *Executor) updateTaskStatus(ctx context.Context, accountID string, action model.Action) (string, error) {
	var params model.TaskStatusParams
	if err := action.Decode(&params); err != nil {
		return "", err
	}
	params.TaskID = strings.TrimSpace(params.TaskID)
	if params.TaskID == "" {
		return "", fmt.Errorf("%w: taskId is required", common.ErrValidation)
	}
	if !params.Status.Valid() {
		return params.TaskID, fmt.Errorf("%w: invalid task status %q", common.ErrValidation, params.Status)
	}
	return params.TaskID, e.store.UpdateTaskStatus(ctx, accountID, params.TaskID, params.Status)
}

// ProgressFromFloat rounds a model-supplied percentage and clamps it into
// [0, 100].
func ProgressFromFloat(progress float64) int {
	if math.IsNaN(progress) {
		return model.MinProgress
	}
	rounded := math.Round(math.Max(model.MinProgress, math.Min(model.MaxProgress, progress)))
	return model.ClampProgress(int(rounded))
}

func (e *Executor) updateGoalProgress(ctx context.Context, accountID string, action model.Action) (string, error) {
	var params model.GoalProgressParams
	if err := action.Decode(&params); err != nil {
		return "", err
	}
	params.GoalID = strings.TrimSpace(params.GoalID)
	if params.GoalID == "" {
		return "", fmt.Errorf("%w: goalId is required", common.ErrValidation)
	}
	if err := e.store.UpdateGoalProgress(ctx, accountID, params.GoalID, ProgressFromFloat(params.Progress)); err != nil {
		return params.GoalID, err
	}

	// Goals with a target keep their derived progress.
	goal, err := e.store.GetGoal(ctx, accountID, params.GoalID)
	if err != nil {
		return params.GoalID, err
	}
	if goal.HasTarget() && e.records != nil {
		e.logger.Info("Restoring derived progress after model update",
			"account_id", accountID,
			"goal_id", goal.ID)
		e.records.recompute(ctx, accountID)
	}
	return params.GoalID, nil
}

func (e *Executor) createTask(ctx context.Context, accountID string, action model.Action) (string, error) {
	var input model.TaskInput
	if err := action.Decode(&input); err != nil {
		return "", err
	}
	if err := input.Validate(); err != nil {
		return "", err
	}
	task := input.ToTask(accountID)
	if err := e.store.CreateTask(ctx, &task); err != nil {
		return "", err
	}
	return task.ID, nil
}

func (e *Executor) createGoal(ctx context.Context, accountID string, action model.Action) (string, error) {
	var input model.GoalInput
	if err := action.Decode(&input); err != nil {
		return "", err
	}
	goal, err := e.records.CreateGoal(ctx, accountID, input)
	if err != nil {
		return "", err
	}
	return goal.ID, nil
}

func (e *Executor) createCalendarEvent(ctx context.Context, accountID string, action model.Action) (string, error) {
	var input model.CalendarEventInput
	if err := action.Decode(&input); err != nil {
		return "", err
	}
	if err := input.Validate(); err != nil {
		return "", err
	}
	event := input.ToEvent(accountID)
	if err := e.store.CreateCalendarEvent(ctx, &event); err != nil {
		return "", err
	}
	return event.ID, nil
}

func (e *Executor) createFinancialRecord(ctx context.Context, accountID string, action model.Action) (string, error) {
	var input model.FinancialRecordInput
	if err := action.Decode(&input); err != nil {
		return "", err
	}
	record, err := e.records.CreateFinancialRecord(ctx, accountID, input)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// Summarize renders the applied outcomes as a confirmation sentence. It
// returns "" when nothing was applied.
func Summarize(outcomes []Outcome) string {
	var applied []string
	for _, outcome := range outcomes {
		if outcome.Applied() {
			applied = append(applied, outcome.Action.Describe())
		}
	}
	if len(applied) == 0 {
		return ""
	}
	return "Done: I " + strings.Join(applied, "; ") + "."
}
