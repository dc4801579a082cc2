// Package engine applies assistant actions to the record store and keeps
// derived goal progress consistent with financial totals.
package engine

import (
	"context"

	"github.com/Veraticus/bizpilot/internal/model"
)

// CorrelationDispatcher schedules correlation of a financial record after it
// was written. Dispatch must not block on the analysis itself.
type CorrelationDispatcher interface {
	Dispatch(accountID, recordID string)
}

// ProgressRecomputer recomputes derived goal progress for an account.
type ProgressRecomputer interface {
	RecomputeGoalProgress(ctx context.Context, accountID string) (int, error)
}

// ActionExecutor applies a batch of actions for an account.
type ActionExecutor interface {
	Execute(ctx context.Context, accountID string, actions []model.Action) []Outcome
}
