package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordService_CreateFinancialRecord(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	record, err := f.records.CreateFinancialRecord(ctx, testutil.DefaultAccount, model.FinancialRecordInput{
		Type:     model.RecordExpense,
		Category: " rent ",
		Amount:   decimal.RequireFromString("2500"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250_000), record.Amount)
	assert.Equal(t, "rent", record.Category)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), record.Date, "missing date defaults to now")
	assert.Equal(t, []string{testutil.DefaultAccount + "/" + record.ID}, f.dispatcher.Calls())

	_, err = f.records.CreateFinancialRecord(ctx, testutil.DefaultAccount, model.FinancialRecordInput{
		Type:     model.RecordExpense,
		Category: "rent",
		Amount:   decimal.Zero,
	})
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Len(t, f.dispatcher.Calls(), 1, "failed writes do not dispatch")
}

func TestRecordService_UpdateFinancialRecord(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	data := f.db.Seed(testutil.DefaultAccount).
		WithRevenue("consulting", 100_000, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)).
		Build()
	id := data.Records[0].ID

	amount := decimal.RequireFromString("1500.50")
	updated, err := f.records.UpdateFinancialRecord(ctx, testutil.DefaultAccount, id, model.FinancialRecordPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(150_050), updated.Amount)
	assert.Equal(t, []string{testutil.DefaultAccount + "/" + id}, f.dispatcher.Calls())

	_, err = f.records.UpdateFinancialRecord(ctx, "acct-other", id, model.FinancialRecordPatch{Amount: &amount})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Len(t, f.dispatcher.Calls(), 1)
}

func TestRecordService_DeleteRecomputes(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	day := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	data := f.db.Seed(testutil.DefaultAccount).
		WithGoal(model.Goal{Title: "Revenue", Type: model.GoalRevenue, TargetAmount: int64Ptr(1000), Progress: 80}).
		WithRevenue("sales", 800, day).
		Build()

	require.NoError(t, f.records.DeleteFinancialRecord(ctx, testutil.DefaultAccount, data.Records[0].ID))

	goal, err := f.db.Storage.GetGoal(ctx, testutil.DefaultAccount, data.Goal(t, "Revenue").ID)
	require.NoError(t, err)
	assert.Equal(t, 0, goal.Progress)
	assert.Empty(t, f.dispatcher.Calls())
}

func TestRecordService_UpdateGoalClampsProgress(t *testing.T) {
	tests := []struct {
		name     string
		progress int
		want     int
	}{
		{name: "over", progress: 150, want: 100},
		{name: "under", progress: -5, want: 0},
		{name: "within", progress: 42, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(t)
			ctx := context.Background()
			goal := f.db.Seed(testutil.DefaultAccount).
				WithGoal(model.Goal{Title: "Brand", Type: model.GoalOther}).
				Build().Goal(t, "Brand")

			progress := tt.progress
			updated, err := f.records.UpdateGoal(ctx, testutil.DefaultAccount, goal.ID, model.GoalPatch{Progress: &progress})
			require.NoError(t, err)
			assert.Equal(t, tt.want, updated.Progress)

			stored, err := f.db.Storage.GetGoal(ctx, testutil.DefaultAccount, goal.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Progress)
		})
	}
}

func TestRecordService_UpdateGoalTargetRecomputes(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	data := f.db.Seed(testutil.DefaultAccount).
		WithGoal(model.Goal{Title: "Sales", Type: model.GoalRevenue}).
		WithRevenue("sales", 250_000, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)).
		Build()

	target := decimal.RequireFromString("10000")
	updated, err := f.records.UpdateGoal(ctx, testutil.DefaultAccount, data.Goal(t, "Sales").ID, model.GoalPatch{TargetAmount: &target})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Progress)
}

type failingRecomputer struct{ calls int }

func (r *failingRecomputer) RecomputeGoalProgress(context.Context, string) (int, error) {
	r.calls++
	return 0, errors.New("database is locked")
}

func TestRecordService_RecomputeFailureIsNotReturned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	recomputer := &failingRecomputer{}
	records := NewRecordService(db.Storage, recomputer, nil, nil)

	target := decimal.RequireFromString("100")
	goal, err := records.CreateGoal(context.Background(), testutil.DefaultAccount, model.GoalInput{
		Title:        "Revenue",
		Type:         model.GoalRevenue,
		TargetAmount: &target,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, goal.ID)
	assert.Equal(t, 1, recomputer.calls)

	// No dispatcher configured: the write still succeeds.
	_, err = records.CreateFinancialRecord(context.Background(), testutil.DefaultAccount, model.FinancialRecordInput{
		Type:     model.RecordRevenue,
		Category: "sales",
		Amount:   decimal.NewFromInt(10),
	})
	require.NoError(t, err)
}
