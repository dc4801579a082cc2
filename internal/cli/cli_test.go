package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGoals(t *testing.T) {
	target := int64(10_000_000)
	goals := []model.Goal{
		{Title: "Hit 100k", Type: model.GoalRevenue, Status: model.GoalActive, TargetAmount: &target, Progress: 60},
		{Title: "Launch podcast", Type: model.GoalOther, Status: model.GoalPaused, Progress: 10},
	}

	out := RenderGoals(goals)
	lines := strings.Split(out, "\n")

	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, out, "Goal")
	assert.Contains(t, out, "Hit 100k")
	assert.Contains(t, out, "100000.00")
	assert.Contains(t, out, " 60%")
	assert.Contains(t, out, "derived")
	assert.Contains(t, out, "manual")
	assert.Contains(t, out, "paused")
}

func TestRenderGoals_Empty(t *testing.T) {
	assert.Contains(t, RenderGoals(nil), "No goals yet.")
}

func TestProgressGauge(t *testing.T) {
	tests := []struct {
		progress int
		filled   int
		label    string
	}{
		{progress: 0, filled: 0, label: "  0%"},
		{progress: 50, filled: 10, label: " 50%"},
		{progress: 100, filled: 20, label: "100%"},
		{progress: 140, filled: 20, label: "100%"},
		{progress: -5, filled: 0, label: "  0%"},
	}
	for _, tt := range tests {
		out := ProgressGauge(tt.progress)
		assert.Equal(t, tt.filled, strings.Count(out, "█"), "progress %d", tt.progress)
		assert.Equal(t, 20-tt.filled, strings.Count(out, "░"), "progress %d", tt.progress)
		assert.True(t, strings.HasSuffix(out, tt.label), out)
	}
}

func TestRenderTable_ShortRows(t *testing.T) {
	out := RenderTable([]string{"A", "B"}, [][]string{{"only-a"}})
	assert.Contains(t, out, "only-a")
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 3, "Importing")
	p.Step()
	p.Step()
	p.Finish()

	assert.Contains(t, buf.String(), "Importing")
}

func TestFormatters(t *testing.T) {
	assert.Contains(t, FormatSuccess("done"), "done")
	assert.Contains(t, FormatError("bad"), ErrorIcon)
	assert.Contains(t, FormatWarning("careful"), "careful")
	assert.Contains(t, FormatInfo("fyi"), "fyi")
	assert.Contains(t, FormatTitle("Goals"), "Goals")
	assert.Contains(t, RenderBox("Summary", "3 imported"), "3 imported")
}
