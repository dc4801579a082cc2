package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/engine"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/service"
	"github.com/samber/lo"
)

// Correlator defaults.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultRecentRecords = 10

	defaultInsightType = "observation"
)

// CorrelatorStore is the subset of storage a correlation run reads and writes.
type CorrelatorStore interface {
	GetFinancialRecord(ctx context.Context, accountID, id string) (*model.FinancialRecord, error)
	ListFinancialRecords(ctx context.Context, accountID string, limit int) ([]model.FinancialRecord, error)
	ListGoals(ctx context.Context, accountID string) ([]model.Goal, error)
	ListTasks(ctx context.Context, accountID string) ([]model.Task, error)
	CreateInsight(ctx context.Context, insight *model.Insight) error
}

var _ CorrelatorStore = service.Storage(nil)

// Config tunes a Correlator.
type Config struct {
	// Timeout bounds one dispatched run.
	Timeout time.Duration
	// RecentRecords is how many other records are shown to the analyzer.
	RecentRecords int
}

// Report summarizes one correlation run.
type Report struct {
	RecordID        string
	Applied         int
	Skipped         int
	Insights        int
	GoalsRecomputed int
}

// Correlator runs the correlation pipeline for newly written financial
// records. It implements engine.CorrelationDispatcher.
type Correlator struct {
	store        CorrelatorStore
	analyzer     CorrelationAnalyzer
	executor     engine.ActionExecutor
	recalculator engine.ProgressRecomputer
	logger       *slog.Logger
	cfg          Config
	wg           sync.WaitGroup
}

var _ engine.CorrelationDispatcher = (*Correlator)(nil)

// NewCorrelator creates a correlator. Zero config values take the defaults.
func NewCorrelator(store CorrelatorStore, analyzer CorrelationAnalyzer, executor engine.ActionExecutor, recalculator engine.ProgressRecomputer, cfg Config, logger *slog.Logger) *Correlator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RecentRecords <= 0 {
		cfg.RecentRecords = DefaultRecentRecords
	}
	return &Correlator{
		store:        store,
		analyzer:     analyzer,
		executor:     executor,
		recalculator: recalculator,
		logger:       common.OrDefault(logger),
		cfg:          cfg,
	}
}

// Dispatch starts a correlation run for the record in the background and
// returns immediately. Failures are logged.
func (c *Correlator) Dispatch(accountID, recordID string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()

		if _, err := c.Correlate(ctx, accountID, recordID); err != nil {
			c.logger.Error("Correlation run failed", "account_id", accountID, "record_id", recordID, "error", err)
		}
	}()
}

// Wait blocks until every dispatched run has finished.
func (c *Correlator) Wait() {
	c.wg.Wait()
}

// Correlate analyzes one record against the account's goals and tasks,
// applies the resulting updates and stores the insights. The recalculator
// always runs last so derived goal progress wins over model proposals.
func (c *Correlator) Correlate(ctx context.Context, accountID, recordID string) (*Report, error) {
	logger := c.logger.With("account_id", accountID, "record_id", recordID)

	record, err := c.store.GetFinancialRecord(ctx, accountID, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load financial record %s: %w", recordID, err)
	}

	report := &Report{RecordID: record.ID}
	runErr := c.analyzeAndApply(ctx, *record, report)

	updated, err := c.recalculator.RecomputeGoalProgress(ctx, accountID)
	if err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to recompute goal progress: %w", err))
	}
	report.GoalsRecomputed = updated

	logger.Info("Correlated financial record",
		"applied", report.Applied,
		"skipped", report.Skipped,
		"insights", report.Insights,
		"goals_recomputed", report.GoalsRecomputed)
	return report, runErr
}

func (c *Correlator) analyzeAndApply(ctx context.Context, record model.FinancialRecord, report *Report) error {
	goals, err := c.store.ListGoals(ctx, record.AccountID)
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}
	tasks, err := c.store.ListTasks(ctx, record.AccountID)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	// One extra so the record itself can be excluded.
	recent, err := c.store.ListFinancialRecords(ctx, record.AccountID, c.cfg.RecentRecords+1)
	if err != nil {
		return fmt.Errorf("failed to list recent records: %w", err)
	}
	recent = lo.Slice(lo.Reject(recent, func(r model.FinancialRecord, _ int) bool { return r.ID == record.ID }), 0, c.cfg.RecentRecords)

	result := c.analyzer.Analyze(ctx, record, goals, tasks, recent)
	if result.IsEmpty() {
		return nil
	}

	actions := BuildActions(result, goals)
	for _, outcome := range c.executor.Execute(ctx, record.AccountID, actions) {
		if outcome.Applied() {
			report.Applied++
		} else {
			report.Skipped++
		}
	}

	var errs []error
	for _, proposed := range result.BusinessInsights {
		insight := model.Insight{
			AccountID:         record.AccountID,
			Type:              lo.CoalesceOrEmpty(strings.TrimSpace(proposed.Type), defaultInsightType),
			Title:             proposed.Title,
			Content:           proposed.Content,
			Confidence:        proposed.Confidence,
			FinancialRecordID: record.ID,
		}
		if err := c.store.CreateInsight(ctx, &insight); err != nil {
			errs = append(errs, fmt.Errorf("failed to store insight %q: %w", insight.Title, err))
			continue
		}
		report.Insights++
	}
	return errors.Join(errs...)
}

// BuildActions converts proposed updates into executor actions. Progress
// updates for goals with a target amount are dropped because their progress
// is derived from financial totals.
func BuildActions(result model.CorrelationResult, goals []model.Goal) []model.Action {
	derived := lo.SliceToMap(lo.Filter(goals, func(g model.Goal, _ int) bool { return g.HasTarget() }),
		func(g model.Goal) (string, struct{}) { return g.ID, struct{}{} })

	actions := make([]model.Action, 0, len(result.ProgressUpdates)+len(result.TaskUpdates))
	for _, update := range result.ProgressUpdates {
		if _, ok := derived[update.GoalID]; ok {
			continue
		}
		action, err := model.NewAction(model.ActionUpdateGoalProgress, model.GoalProgressParams{GoalID: update.GoalID, Progress: update.Progress})
		if err == nil {
			actions = append(actions, action)
		}
	}
	for _, update := range result.TaskUpdates {
		action, err := model.NewAction(model.ActionUpdateTaskStatus, model.TaskStatusParams{TaskID: update.TaskID, Status: update.Status})
		if err == nil {
			actions = append(actions, action)
		}
	}
	return actions
}
