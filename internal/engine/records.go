package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/service"
)

// RecordService performs the user-facing writes that have side effects.
// Financial record writes schedule correlation once the write succeeded;
// goal writes keep derived progress consistent.
type RecordService struct {
	store        service.Storage
	recalculator ProgressRecomputer
	dispatcher   CorrelationDispatcher
	logger       *slog.Logger
	now          func() time.Time
	mu           sync.RWMutex
}

// NewRecordService creates a record service. dispatcher may be nil and set
// later with SetDispatcher, since the correlation pipeline itself executes
// actions through this package.
func NewRecordService(store service.Storage, recalculator ProgressRecomputer, dispatcher CorrelationDispatcher, logger *slog.Logger) *RecordService {
	return &RecordService{
		store:        store,
		recalculator: recalculator,
		dispatcher:   dispatcher,
		logger:       common.OrDefault(logger),
		now:          time.Now,
	}
}

// SetDispatcher installs the correlation dispatcher.
func (s *RecordService) SetDispatcher(dispatcher CorrelationDispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = dispatcher
}

// SetClock overrides the clock used for default record dates.
func (s *RecordService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RecordService) dispatch(accountID, recordID string) {
	s.mu.RLock()
	dispatcher := s.dispatcher
	s.mu.RUnlock()

	if dispatcher == nil {
		s.logger.Debug("No correlation dispatcher configured", "record_id", recordID)
		return
	}
	dispatcher.Dispatch(accountID, recordID)
}

// recompute runs the recalculator and logs failures; callers never see them.
func (s *RecordService) recompute(ctx context.Context, accountID string) {
	if s.recalculator == nil {
		return
	}
	if _, err := s.recalculator.RecomputeGoalProgress(ctx, accountID); err != nil {
		s.logger.Warn("Goal progress recompute failed", "account_id", accountID, "error", err)
	}
}

// CreateFinancialRecord validates and stores a record, then dispatches
// correlation. The returned record does not wait for correlation.
func (s *RecordService) CreateFinancialRecord(ctx context.Context, accountID string, input model.FinancialRecordInput) (*model.FinancialRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	record, err := input.ToRecord(accountID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateFinancialRecord(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to create financial record: %w", err)
	}

	s.logger.Info("Created financial record",
		"account_id", accountID,
		"record_id", record.ID,
		"type", record.Type,
		"amount", record.Amount)
	s.dispatch(accountID, record.ID)
	return &record, nil
}

// UpdateFinancialRecord applies patch to a stored record and dispatches
// correlation again.
func (s *RecordService) UpdateFinancialRecord(ctx context.Context, accountID, id string, patch model.FinancialRecordPatch) (*model.FinancialRecord, error) {
	record, err := s.store.GetFinancialRecord(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(record); err != nil {
		return nil, err
	}
	if err := s.store.UpdateFinancialRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update financial record: %w", err)
	}

	s.dispatch(accountID, record.ID)
	return record, nil
}

// DeleteFinancialRecord removes a record and recomputes derived progress,
// since the totals changed. No correlation runs for a removed record.
func (s *RecordService) DeleteFinancialRecord(ctx context.Context, accountID, id string) error {
	if err := s.store.DeleteFinancialRecord(ctx, accountID, id); err != nil {
		return err
	}
	s.recompute(ctx, accountID)
	return nil
}

// CreateGoal validates and stores a goal. A goal with a target amount gets
// its derived progress immediately.
func (s *RecordService) CreateGoal(ctx context.Context, accountID string, input model.GoalInput) (*model.Goal, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	goal, err := input.ToGoal(accountID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateGoal(ctx, &goal); err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	if goal.HasTarget() {
		s.recompute(ctx, accountID)
		if fresh, err := s.store.GetGoal(ctx, accountID, goal.ID); err == nil {
			return fresh, nil
		}
	}
	return &goal, nil
}

// UpdateGoal applies patch to a stored goal. Progress is clamped by the
// patch and again by the store.
func (s *RecordService) UpdateGoal(ctx context.Context, accountID, id string, patch model.GoalPatch) (*model.Goal, error) {
	goal, err := s.store.GetGoal(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(goal); err != nil {
		return nil, err
	}
	if err := s.store.UpdateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}

	if patch.TargetAmount != nil || patch.Type != nil {
		s.recompute(ctx, accountID)
		if fresh, err := s.store.GetGoal(ctx, accountID, id); err == nil {
			return fresh, nil
		}
	}
	return goal, nil
}
