package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/bizpilot/internal/model"
)

const progressBarWidth = 20

// RenderTable lays out rows in padded columns under a bold header.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range min(len(row), len(widths)) {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	cell := func(text string, i int) string {
		return TableCellStyle.Width(widths[i] + TableCellStyle.GetPaddingRight()).Render(text)
	}

	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = cell(h, i)
	}
	lines := []string{TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, headerCells...))}

	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range headers {
			text := ""
			if i < len(row) {
				text = row[i]
			}
			cells[i] = cell(text, i)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

// RenderGoals renders goals with a progress gauge. Goals with a target are
// marked as derived.
func RenderGoals(goals []model.Goal) string {
	if len(goals) == 0 {
		return SubtleStyle.Render("No goals yet.")
	}

	rows := make([][]string, 0, len(goals))
	for _, goal := range goals {
		target := "-"
		source := "manual"
		if goal.HasTarget() {
			target = model.FormatMinorUnits(*goal.TargetAmount)
			source = "derived"
		}
		rows = append(rows, []string{
			goal.Title,
			string(goal.Type),
			string(goal.Status),
			target,
			ProgressGauge(goal.Progress),
			source,
		})
	}
	return RenderTable([]string{"Goal", "Type", "Status", "Target", "Progress", "Source"}, rows)
}

// ProgressGauge renders a fixed-width bar followed by the percentage.
func ProgressGauge(progress int) string {
	progress = model.ClampProgress(progress)
	filled := progress * progressBarWidth / model.MaxProgress
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	style := InfoStyle
	switch {
	case progress >= model.MaxProgress:
		style = SuccessStyle
	case progress < 25:
		style = WarningStyle
	}
	return style.Render(bar) + fmt.Sprintf(" %3d%%", progress)
}
