package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/service"
	"github.com/shopspring/decimal"
)

// recomputeStore is the subset of storage the recalculator reads and writes.
type recomputeStore interface {
	ListGoals(ctx context.Context, accountID string) ([]model.Goal, error)
	UpdateGoalProgress(ctx context.Context, accountID, id string, progress int) error
	SumFinancialRecordsByType(ctx context.Context, accountID string) (map[model.RecordType]int64, error)
}

var _ recomputeStore = service.Storage(nil)

// Recalculator derives goal progress from financial totals without any model
// call. It is the source of truth for every goal with a target amount.
type Recalculator struct {
	store  recomputeStore
	logger *slog.Logger
}

// NewRecalculator creates a recalculator over store.
func NewRecalculator(store recomputeStore, logger *slog.Logger) *Recalculator {
	return &Recalculator{store: store, logger: common.OrDefault(logger)}
}

// RecomputeGoalProgress recomputes every target-bearing revenue and expense
// goal of the account and returns how many goals were written. Goals whose
// computed progress equals the stored value are not written, so a second
// run with no intervening financial writes updates nothing.
func (r *Recalculator) RecomputeGoalProgress(ctx context.Context, accountID string) (int, error) {
	goals, err := r.store.ListGoals(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to load goals: %w", err)
	}

	var candidates []model.Goal
	for _, goal := range goals {
		if goal.HasTarget() && (goal.Type == model.GoalRevenue || goal.Type == model.GoalExpense) {
			candidates = append(candidates, goal)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	totals, err := r.store.SumFinancialRecordsByType(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to total financial records: %w", err)
	}

	updated := 0
	for _, goal := range candidates {
		progress, ok := DerivedProgress(goal, totals)
		if !ok || progress == goal.Progress {
			continue
		}
		if err := r.store.UpdateGoalProgress(ctx, accountID, goal.ID, progress); err != nil {
			return updated, fmt.Errorf("failed to update goal %s: %w", goal.ID, err)
		}
		r.logger.Info("Recomputed goal progress",
			"account_id", accountID,
			"goal_id", goal.ID,
			"type", goal.Type,
			"from", goal.Progress,
			"to", progress)
		updated++
	}

	return updated, nil
}

var hundred = decimal.NewFromInt(100)

// DerivedProgress computes a goal's progress from per-type totals in minor
// units. Revenue goals measure earned/target; expense goals measure the
// budget headroom left, reaching 0 once spend meets the target. The result
// is floored and clamped. ok is false for goals with no formula.
func DerivedProgress(goal model.Goal, totals map[model.RecordType]int64) (progress int, ok bool) {
	if !goal.HasTarget() {
		return 0, false
	}
	target := *goal.TargetAmount

	var numerator int64
	switch goal.Type {
	case model.GoalRevenue:
		numerator = totals[model.RecordRevenue]
	case model.GoalExpense:
		numerator = target - totals[model.RecordExpense]
	default:
		return 0, false
	}

	if numerator <= 0 {
		return model.MinProgress, true
	}
	if numerator >= target {
		return model.MaxProgress, true
	}

	// Exact integer quotient; numerator*100 may exceed int64.
	quotient, _ := decimal.NewFromInt(numerator).Mul(hundred).QuoRem(decimal.NewFromInt(target), 0)
	return model.ClampProgress(int(quotient.IntPart())), true
}
