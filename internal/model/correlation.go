package model

// Correlation links one financial record to the goals and tasks it affects.
type Correlation struct {
	FinancialRecordID string   `json:"financialRecordId"`
	Reasoning         string   `json:"reasoning"`
	RelatedGoalIDs    []string `json:"relatedGoalIds"`
	RelatedTaskIDs    []string `json:"relatedTaskIds"`
	SuggestedActions  []string `json:"suggestedActions"`
	Confidence        float64  `json:"confidence"`
}

// ProgressUpdate is a proposed new progress value for a goal.
type ProgressUpdate struct {
	GoalID    string  `json:"goalId"`
	Reasoning string  `json:"reasoning,omitempty"`
	Progress  float64 `json:"progress"`
}

// TaskUpdate is a proposed new status for a task.
type TaskUpdate struct {
	TaskID    string     `json:"taskId"`
	Status    TaskStatus `json:"status"`
	Reasoning string     `json:"reasoning,omitempty"`
}

// BusinessInsight is a narrative observation proposed by the analyzer.
type BusinessInsight struct {
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// CorrelationResult is the output of one correlation analysis run. It is
// never persisted as a whole.
type CorrelationResult struct {
	Correlations       []Correlation     `json:"correlations"`
	BusinessInsights   []BusinessInsight `json:"businessInsights"`
	RecommendedActions []string          `json:"recommendedActions"`
	ProgressUpdates    []ProgressUpdate  `json:"progressUpdates"`
	TaskUpdates        []TaskUpdate      `json:"taskUpdates"`
}

// EmptyCorrelationResult returns the valid no-op result with every list
// present and empty.
func EmptyCorrelationResult() CorrelationResult {
	return CorrelationResult{
		Correlations:       []Correlation{},
		BusinessInsights:   []BusinessInsight{},
		RecommendedActions: []string{},
		ProgressUpdates:    []ProgressUpdate{},
		TaskUpdates:        []TaskUpdate{},
	}
}

// Normalize replaces nil lists with empty ones so the result always has the
// empty-but-valid shape.
func (r *CorrelationResult) Normalize() {
	if r.Correlations == nil {
		r.Correlations = []Correlation{}
	}
	if r.BusinessInsights == nil {
		r.BusinessInsights = []BusinessInsight{}
	}
	if r.RecommendedActions == nil {
		r.RecommendedActions = []string{}
	}
	if r.ProgressUpdates == nil {
		r.ProgressUpdates = []ProgressUpdate{}
	}
	if r.TaskUpdates == nil {
		r.TaskUpdates = []TaskUpdate{}
	}
}

// IsEmpty reports whether the result proposes nothing.
func (r CorrelationResult) IsEmpty() bool {
	return len(r.Correlations) == 0 && len(r.BusinessInsights) == 0 &&
		len(r.RecommendedActions) == 0 && len(r.ProgressUpdates) == 0 &&
		len(r.TaskUpdates) == 0
}
