package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/bizpilot/internal/llm"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysisFixtures() (model.FinancialRecord, []model.Goal, []model.Task) {
	target := int64(10_000_000)
	record := model.FinancialRecord{
		ID:        "rec-1",
		AccountID: "acct",
		Type:      model.RecordRevenue,
		Category:  "consulting",
		Amount:    250_000,
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	goals := []model.Goal{
		{ID: "goal-rev", Title: "Hit 100k", Type: model.GoalRevenue, Status: model.GoalActive, TargetAmount: &target},
		{ID: "goal-pod", Title: "Launch podcast", Type: model.GoalOther, Status: model.GoalActive},
	}
	tasks := []model.Task{
		{ID: "task-invoice", Title: "Send invoice", Priority: model.PriorityHigh, Status: model.TaskPending},
	}
	return record, goals, tasks
}

func newTestAnalyzer(t *testing.T, client llm.Client) *Analyzer {
	t.Helper()
	analyzer, err := NewAnalyzer(client, nil)
	require.NoError(t, err)
	return analyzer
}

func TestAnalyzer_MalformedResponses(t *testing.T) {
	tests := []struct {
		name  string
		queue func(*llm.MockClient)
	}{
		{name: "not json", queue: func(m *llm.MockClient) { m.QueueText("I think this record is great") }},
		{name: "truncated json", queue: func(m *llm.MockClient) { m.QueueText(`{"correlations": [`) }},
		{name: "wrong shape", queue: func(m *llm.MockClient) { m.QueueText(`{"correlations": "many"}`) }},
		{name: "empty", queue: func(m *llm.MockClient) { m.QueueText("") }},
		{name: "model unavailable", queue: func(m *llm.MockClient) { m.QueueError(errors.New("connection refused")) }},
		{name: "absent response", queue: func(m *llm.MockClient) { m.Queue(nil, nil) }},
	}

	record, goals, tasks := analysisFixtures()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewMockClient()
			tt.queue(client)

			var result model.CorrelationResult
			require.NotPanics(t, func() {
				result = newTestAnalyzer(t, client).Analyze(context.Background(), record, goals, tasks, nil)
			})

			assert.Equal(t, model.EmptyCorrelationResult(), result)
			assert.True(t, result.IsEmpty())
		})
	}
}

func TestAnalyzer_RequestShape(t *testing.T) {
	record, goals, tasks := analysisFixtures()
	recent := []model.FinancialRecord{
		{ID: "rec-0", Type: model.RecordExpense, Category: "rent", Amount: 150_000, Date: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	client := llm.NewMockClient().QueueText(`{}`)

	result := newTestAnalyzer(t, client).Analyze(context.Background(), record, goals, tasks, recent)
	assert.True(t, result.IsEmpty())

	requests := client.Requests()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.True(t, req.JSONMode)
	assert.Empty(t, req.Tools)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, analysisTemperature, *req.Temperature, 1e-9)
	require.Len(t, req.Messages, 1)

	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "- amount: 2500.00")
	assert.Contains(t, prompt, "[goal-rev] Hit 100k (revenue, active, progress 0%, target 100000.00, progress derived automatically)")
	assert.Contains(t, prompt, "[goal-pod] Launch podcast (other, active, progress 0%)")
	assert.Contains(t, prompt, "[task-invoice] Send invoice (high priority, pending)")
	assert.Contains(t, prompt, "2025-05-01 expense 1500.00 (rent)")
}

func TestAnalyzer_FencedResponse(t *testing.T) {
	record, goals, tasks := analysisFixtures()
	client := llm.NewMockClient().QueueText("```json\n" + `{
		"correlations": [{"relatedGoalIds": ["goal-rev"], "confidence": 0.9, "reasoning": "consulting revenue"}],
		"businessInsights": [{"type": "trend", "title": "Consulting is growing", "content": "Third invoice this month.", "confidence": 0.7}],
		"recommendedActions": ["Follow up with the client"],
		"progressUpdates": [{"goalId": "goal-pod", "progress": 30}],
		"taskUpdates": [{"taskId": "task-invoice", "status": "completed"}]
	}` + "\n```")

	result := newTestAnalyzer(t, client).Analyze(context.Background(), record, goals, tasks, nil)

	require.Len(t, result.Correlations, 1)
	assert.Equal(t, "rec-1", result.Correlations[0].FinancialRecordID)
	assert.Equal(t, []string{"goal-rev"}, result.Correlations[0].RelatedGoalIDs)
	require.Len(t, result.BusinessInsights, 1)
	assert.Equal(t, "Consulting is growing", result.BusinessInsights[0].Title)
	assert.Equal(t, []string{"Follow up with the client"}, result.RecommendedActions)
	require.Len(t, result.ProgressUpdates, 1)
	assert.Equal(t, "goal-pod", result.ProgressUpdates[0].GoalID)
	require.Len(t, result.TaskUpdates, 1)
	assert.Equal(t, model.TaskCompleted, result.TaskUpdates[0].Status)
}

func TestSanitize(t *testing.T) {
	record, goals, tasks := analysisFixtures()
	raw := model.CorrelationResult{
		Correlations: []model.Correlation{
			{FinancialRecordID: "someone-else", RelatedGoalIDs: []string{"goal-rev", "ghost", "goal-rev"}, Confidence: 1.7},
			{RelatedGoalIDs: []string{"ghost"}, RelatedTaskIDs: []string{"phantom"}, Confidence: 0.5},
		},
		BusinessInsights: []model.BusinessInsight{
			{Title: "  Rent is up ", Content: "Rent rose 10%.", Confidence: -0.3},
			{Title: "", Content: "no title"},
			{Title: "No content", Content: "   "},
		},
		RecommendedActions: []string{"  ", "Renegotiate lease"},
		ProgressUpdates: []model.ProgressUpdate{
			{GoalID: "goal-pod", Progress: 40},
			{GoalID: "ghost", Progress: 90},
		},
		TaskUpdates: []model.TaskUpdate{
			{TaskID: "task-invoice", Status: model.TaskInProgress},
			{TaskID: "task-invoice", Status: "blocked"},
			{TaskID: "phantom", Status: model.TaskCompleted},
		},
	}

	got := Sanitize(raw, record, goals, tasks)

	require.Len(t, got.Correlations, 1)
	assert.Equal(t, "rec-1", got.Correlations[0].FinancialRecordID)
	assert.Equal(t, []string{"goal-rev"}, got.Correlations[0].RelatedGoalIDs)
	assert.NotNil(t, got.Correlations[0].RelatedTaskIDs)
	assert.InDelta(t, 1.0, got.Correlations[0].Confidence, 1e-9)

	require.Len(t, got.BusinessInsights, 1)
	assert.Equal(t, "Rent is up", got.BusinessInsights[0].Title)
	assert.Zero(t, got.BusinessInsights[0].Confidence)

	assert.Equal(t, []string{"Renegotiate lease"}, got.RecommendedActions)
	assert.Equal(t, []model.ProgressUpdate{{GoalID: "goal-pod", Progress: 40}}, got.ProgressUpdates)
	assert.Equal(t, []model.TaskUpdate{{TaskID: "task-invoice", Status: model.TaskInProgress}}, got.TaskUpdates)
}

func TestSanitize_EmptyInputKeepsShape(t *testing.T) {
	record, goals, tasks := analysisFixtures()
	assert.Equal(t, model.EmptyCorrelationResult(), Sanitize(model.CorrelationResult{}, record, goals, tasks))
}

func TestBuildActions_SkipsDerivedGoals(t *testing.T) {
	_, goals, _ := analysisFixtures()
	result := model.CorrelationResult{
		ProgressUpdates: []model.ProgressUpdate{
			{GoalID: "goal-rev", Progress: 99},
			{GoalID: "goal-pod", Progress: 30},
		},
		TaskUpdates: []model.TaskUpdate{{TaskID: "task-invoice", Status: model.TaskCompleted}},
	}

	actions := BuildActions(result, goals)

	require.Len(t, actions, 2)
	assert.Equal(t, model.ActionUpdateGoalProgress, actions[0].Type)
	var progress model.GoalProgressParams
	require.NoError(t, actions[0].Decode(&progress))
	assert.Equal(t, "goal-pod", progress.GoalID)
	assert.Equal(t, model.ActionUpdateTaskStatus, actions[1].Type)
}
