package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStorage opens a migrated in-memory store.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestTask(accountID, title string) *model.Task {
	return &model.Task{
		AccountID: accountID,
		Title:     title,
		Priority:  model.PriorityMedium,
		Status:    model.TaskPending,
	}
}

func newTestGoal(accountID, title string, goalType model.GoalType, target int64) *model.Goal {
	goal := &model.Goal{
		AccountID: accountID,
		Title:     title,
		Type:      goalType,
		Status:    model.GoalActive,
	}
	if target > 0 {
		goal.TargetAmount = &target
	}
	return goal
}

func newTestRecord(accountID string, recordType model.RecordType, amount int64, date time.Time) *model.FinancialRecord {
	return &model.FinancialRecord{
		AccountID: accountID,
		Type:      recordType,
		Category:  "general",
		Amount:    amount,
		Date:      date,
	}
}

func TestSQLiteStorage_TaskLifecycle(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	task := newTestTask("acct", "Renew lease")
	task.DueDate = &due
	require.NoError(t, store.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)

	got, err := store.GetTask(ctx, "acct", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renew lease", got.Title)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))

	require.NoError(t, store.UpdateTaskStatus(ctx, "acct", task.ID, model.TaskCompleted))
	require.NoError(t, store.UpdateTaskStatus(ctx, "acct", task.ID, model.TaskPending), "any transition is allowed")

	got.Title = "Renew office lease"
	got.Priority = model.PriorityHigh
	require.NoError(t, store.UpdateTask(ctx, got))

	tasks, err := store.ListTasks(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Renew office lease", tasks[0].Title)
	assert.Equal(t, model.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, model.TaskPending, tasks[0].Status)

	require.NoError(t, store.DeleteTask(ctx, "acct", task.ID))
	_, err = store.GetTask(ctx, "acct", task.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_UpdateTaskStatus_RejectsInvalidStatus(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	task := newTestTask("acct", "File taxes")
	require.NoError(t, store.CreateTask(ctx, task))

	err := store.UpdateTaskStatus(ctx, "acct", task.ID, "archived")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSQLiteStorage_AccountIsolation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	task := newTestTask("owner", "Private task")
	require.NoError(t, store.CreateTask(ctx, task))
	goal := newTestGoal("owner", "Private goal", model.GoalOther, 0)
	require.NoError(t, store.CreateGoal(ctx, goal))
	record := newTestRecord("owner", model.RecordRevenue, 1000, time.Now())
	require.NoError(t, store.CreateFinancialRecord(ctx, record))

	tests := []struct {
		call func() error
		name string
	}{
		{name: "get task", call: func() error { _, err := store.GetTask(ctx, "intruder", task.ID); return err }},
		{name: "update task status", call: func() error {
			return store.UpdateTaskStatus(ctx, "intruder", task.ID, model.TaskCompleted)
		}},
		{name: "delete task", call: func() error { return store.DeleteTask(ctx, "intruder", task.ID) }},
		{name: "update goal progress", call: func() error { return store.UpdateGoalProgress(ctx, "intruder", goal.ID, 50) }},
		{name: "get record", call: func() error { _, err := store.GetFinancialRecord(ctx, "intruder", record.ID); return err }},
		{name: "delete record", call: func() error { return store.DeleteFinancialRecord(ctx, "intruder", record.ID) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), common.ErrNotFound)
		})
	}

	tasks, err := store.ListTasks(ctx, "intruder")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	got, err := store.GetTask(ctx, "owner", task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, got.Status, "foreign update must not touch the row")
}

func TestSQLiteStorage_GoalProgressIsClamped(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	goal := newTestGoal("acct", "Grow", model.GoalRevenue, 100000)
	goal.Progress = 140
	require.NoError(t, store.CreateGoal(ctx, goal))
	assert.Equal(t, 100, goal.Progress)

	tests := []struct {
		name     string
		progress int
		want     int
	}{
		{name: "above range", progress: 250, want: 100},
		{name: "below range", progress: -30, want: 0},
		{name: "in range", progress: 55, want: 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.UpdateGoalProgress(ctx, "acct", goal.ID, tt.progress))
			got, err := store.GetGoal(ctx, "acct", goal.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Progress)

			got.Progress = tt.progress
			require.NoError(t, store.UpdateGoal(ctx, got))
			reloaded, err := store.GetGoal(ctx, "acct", goal.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reloaded.Progress)
		})
	}
}

func TestSQLiteStorage_ProgressCheckConstraint(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO goals (id, account_id, title, type, status, progress, created_at, updated_at)
		VALUES ('g1', 'acct', 'raw', 'other', 'active', 150, ?, ?)
	`, now, now)
	assert.Error(t, err, "schema must reject progress outside 0..100")
}

func TestSQLiteStorage_GoalTargetRoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	withTarget := newTestGoal("acct", "Hit 100k", model.GoalRevenue, 10_000_000)
	without := newTestGoal("acct", "Hire", model.GoalOther, 0)
	require.NoError(t, store.CreateGoal(ctx, withTarget))
	require.NoError(t, store.CreateGoal(ctx, without))

	got, err := store.GetGoal(ctx, "acct", withTarget.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TargetAmount)
	assert.Equal(t, int64(10_000_000), *got.TargetAmount)

	got, err = store.GetGoal(ctx, "acct", without.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TargetAmount)
	assert.False(t, got.HasTarget())
}

func TestSQLiteStorage_FinancialRecords(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, amount := range []int64{1000, 2000, 3000} {
		require.NoError(t, store.CreateFinancialRecord(ctx,
			newTestRecord("acct", model.RecordRevenue, amount, base.AddDate(0, 0, i))))
	}
	require.NoError(t, store.CreateFinancialRecord(ctx,
		newTestRecord("acct", model.RecordExpense, 1500, base.AddDate(0, 0, 10))))
	require.NoError(t, store.CreateFinancialRecord(ctx,
		newTestRecord("other", model.RecordRevenue, 99999, base)))

	t.Run("newest first with limit", func(t *testing.T) {
		records, err := store.ListFinancialRecords(ctx, "acct", 2)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, int64(1500), records[0].Amount)
		assert.Equal(t, int64(3000), records[1].Amount)
	})

	t.Run("no limit", func(t *testing.T) {
		records, err := store.ListFinancialRecords(ctx, "acct", 0)
		require.NoError(t, err)
		assert.Len(t, records, 4)
	})

	t.Run("sums by type", func(t *testing.T) {
		totals, err := store.SumFinancialRecordsByType(ctx, "acct")
		require.NoError(t, err)
		assert.Equal(t, int64(6000), totals[model.RecordRevenue])
		assert.Equal(t, int64(1500), totals[model.RecordExpense])
		_, hasOther := totals[model.RecordOther]
		assert.False(t, hasOther)
	})

	t.Run("update", func(t *testing.T) {
		records, err := store.ListFinancialRecords(ctx, "acct", 1)
		require.NoError(t, err)
		record := records[0]
		record.Amount = 2500
		record.Category = "rent"
		require.NoError(t, store.UpdateFinancialRecord(ctx, &record))

		got, err := store.GetFinancialRecord(ctx, "acct", record.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), got.Amount)
		assert.Equal(t, "rent", got.Category)
	})
}

func TestSQLiteStorage_Conversations(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	conv := &model.Conversation{AccountID: "acct", Title: "Planning"}
	require.NoError(t, store.CreateConversation(ctx, conv))

	for _, m := range []struct {
		role    model.Role
		content string
	}{
		{model.RoleUser, "What is due?"},
		{model.RoleAssistant, "The lease renewal."},
		{model.RoleUser, "Mark it done."},
	} {
		require.NoError(t, store.CreateMessage(ctx, &model.Message{
			ConversationID: conv.ID, AccountID: "acct", Role: m.role, Content: m.content,
		}))
	}

	msgs, err := store.ListMessages(ctx, "acct", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "What is due?", msgs[0].Content)
	assert.Equal(t, "Mark it done.", msgs[2].Content)

	err = store.CreateMessage(ctx, &model.Message{
		ConversationID: conv.ID, AccountID: "intruder", Role: model.RoleUser, Content: "hi",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetConversation(ctx, "intruder", conv.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.TouchConversation(ctx, "acct", conv.ID))
	convs, err := store.ListConversations(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.False(t, convs[0].UpdatedAt.Before(convs[0].CreatedAt))
}

func TestSQLiteStorage_CalendarDocumentsInsights(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	start := time.Date(2025, 5, 2, 15, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateCalendarEvent(ctx, &model.CalendarEvent{
		AccountID: "acct", Title: "Landlord call", StartTime: start.Add(24 * time.Hour), EndTime: start.Add(25 * time.Hour),
	}))
	require.NoError(t, store.CreateCalendarEvent(ctx, &model.CalendarEvent{
		AccountID: "acct", Title: "Client call", StartTime: start, EndTime: start.Add(time.Hour),
	}))

	events, err := store.ListCalendarEvents(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Client call", events[0].Title, "events are ordered by start time")

	require.NoError(t, store.CreateDocument(ctx, &model.Document{
		AccountID: "acct", Title: "Lease agreement", Content: "term of lease: 24 months",
	}))
	assert.ErrorIs(t, store.CreateDocument(ctx, &model.Document{AccountID: "acct"}), common.ErrValidation)

	docs, err := store.ListDocuments(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, store.CreateInsight(ctx, &model.Insight{
		AccountID: "acct", Type: "trend", Title: "Rent rising", Content: "up 10%",
		Confidence: 0.7, FinancialRecordID: "rec-1",
	}))
	insights, err := store.ListInsights(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "rec-1", insights[0].FinancialRecordID)
	assert.InDelta(t, 0.7, insights[0].Confidence, 0.0001)
}

func TestSQLiteStorage_ConcurrentAccess(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	goal := newTestGoal("acct", "Contended", model.GoalOther, 0)
	require.NoError(t, store.CreateGoal(ctx, goal))

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(progress int) {
			defer wg.Done()
			if err := store.UpdateGoalProgress(ctx, "acct", goal.ID, progress); err != nil {
				errs <- err
			}
		}(i * 15)
		go func() {
			defer wg.Done()
			if _, err := store.ListGoals(ctx, "acct"); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent access error: %v", err)
	}

	got, err := store.GetGoal(ctx, "acct", goal.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Progress, 0)
	assert.LessOrEqual(t, got.Progress, 100)
}
