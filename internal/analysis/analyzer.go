// Package analysis correlates financial records with goals and tasks using
// the language model, applies the proposed updates and keeps derived goal
// progress authoritative.
package analysis

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/llm"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/samber/lo"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	analysisTemperature = 0.2
	analysisMaxTokens   = 1500
)

// CorrelationAnalyzer proposes updates for one financial record.
type CorrelationAnalyzer interface {
	Analyze(ctx context.Context, record model.FinancialRecord, goals []model.Goal, tasks []model.Task, recent []model.FinancialRecord) model.CorrelationResult
}

// Analyzer asks the model how a financial record relates to goals and tasks.
type Analyzer struct {
	client llm.Client
	prompt *template.Template
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer using client in JSON mode.
func NewAnalyzer(client llm.Client, logger *slog.Logger) (*Analyzer, error) {
	funcMap := template.FuncMap{
		"formatAmount": formatAmount,
		"formatDate":   formatDate,
	}
	tmpl, err := template.New("correlation_prompt.tmpl").Funcs(funcMap).ParseFS(templateFS, "templates/correlation_prompt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse correlation template: %w", err)
	}
	return &Analyzer{client: client, prompt: tmpl, logger: common.OrDefault(logger)}, nil
}

type promptData struct {
	Goals  []model.Goal
	Tasks  []model.Task
	Recent []model.FinancialRecord
	Record model.FinancialRecord
}

// Analyze runs one JSON-mode model call. It never fails: any transport,
// template or parse error yields model.EmptyCorrelationResult. The result is
// sanitized against the supplied goals and tasks.
func (a *Analyzer) Analyze(ctx context.Context, record model.FinancialRecord, goals []model.Goal, tasks []model.Task, recent []model.FinancialRecord) model.CorrelationResult {
	logger := a.logger.With("account_id", record.AccountID, "record_id", record.ID)

	var buf bytes.Buffer
	if err := a.prompt.Execute(&buf, promptData{Record: record, Goals: goals, Tasks: tasks, Recent: recent}); err != nil {
		logger.Error("Failed to render correlation prompt", "error", err)
		return model.EmptyCorrelationResult()
	}

	resp, err := a.client.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buf.String()}},
		JSONMode:    true,
		Temperature: llm.Temperature(analysisTemperature),
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		logger.Warn("Correlation analysis unavailable", "error", err)
		return model.EmptyCorrelationResult()
	}
	if resp == nil {
		logger.Warn("Correlation analysis returned no response")
		return model.EmptyCorrelationResult()
	}

	var result model.CorrelationResult
	if err := llm.DecodeJSON(resp.Content, &result); err != nil {
		logger.Warn("Discarding malformed correlation response", "error", err)
		return model.EmptyCorrelationResult()
	}

	sanitized := Sanitize(result, record, goals, tasks)
	logger.Info("Correlation analysis complete",
		"correlations", len(sanitized.Correlations),
		"insights", len(sanitized.BusinessInsights),
		"progress_updates", len(sanitized.ProgressUpdates),
		"task_updates", len(sanitized.TaskUpdates))
	return sanitized
}

// Sanitize returns result restricted to the supplied goals and tasks:
// unknown ids are dropped, task statuses must be valid, confidences are
// clamped to [0, 1] and empty entries are removed. Every list is non-nil.
func Sanitize(result model.CorrelationResult, record model.FinancialRecord, goals []model.Goal, tasks []model.Task) model.CorrelationResult {
	goalIDs := lo.SliceToMap(goals, func(g model.Goal) (string, struct{}) { return g.ID, struct{}{} })
	taskIDs := lo.SliceToMap(tasks, func(t model.Task) (string, struct{}) { return t.ID, struct{}{} })
	knownGoal := func(id string, _ int) bool { _, ok := goalIDs[id]; return ok }
	knownTask := func(id string, _ int) bool { _, ok := taskIDs[id]; return ok }

	out := model.EmptyCorrelationResult()

	for _, c := range result.Correlations {
		c.FinancialRecordID = record.ID
		c.RelatedGoalIDs = lo.Uniq(lo.Filter(c.RelatedGoalIDs, knownGoal))
		c.RelatedTaskIDs = lo.Uniq(lo.Filter(c.RelatedTaskIDs, knownTask))
		c.SuggestedActions = nonEmpty(c.SuggestedActions)
		c.Confidence = clampConfidence(c.Confidence)
		if len(c.RelatedGoalIDs) == 0 && len(c.RelatedTaskIDs) == 0 {
			continue
		}
		out.Correlations = append(out.Correlations, c)
	}

	for _, insight := range result.BusinessInsights {
		insight.Title = strings.TrimSpace(insight.Title)
		insight.Content = strings.TrimSpace(insight.Content)
		if insight.Title == "" || insight.Content == "" {
			continue
		}
		insight.Confidence = clampConfidence(insight.Confidence)
		out.BusinessInsights = append(out.BusinessInsights, insight)
	}

	out.RecommendedActions = append(out.RecommendedActions, nonEmpty(result.RecommendedActions)...)

	for _, update := range result.ProgressUpdates {
		if knownGoal(update.GoalID, 0) {
			out.ProgressUpdates = append(out.ProgressUpdates, update)
		}
	}

	for _, update := range result.TaskUpdates {
		if knownTask(update.TaskID, 0) && update.Status.Valid() {
			out.TaskUpdates = append(out.TaskUpdates, update)
		}
	}

	return out
}

func clampConfidence(c float64) float64 {
	if c != c || c < 0 { // NaN or negative
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func nonEmpty(values []string) []string {
	return lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	})
}

func formatAmount(v any) string {
	switch amount := v.(type) {
	case int64:
		return model.FormatMinorUnits(amount)
	case *int64:
		if amount != nil {
			return model.FormatMinorUnits(*amount)
		}
	}
	return ""
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
