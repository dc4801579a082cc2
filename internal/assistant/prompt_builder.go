package assistant

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Veraticus/bizpilot/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// PromptBuilder renders assistant context into the system prompt.
type PromptBuilder struct {
	tmpl *template.Template
	now  func() time.Time
}

// NewPromptBuilder parses the embedded templates.
func NewPromptBuilder() (*PromptBuilder, error) {
	funcMap := template.FuncMap{
		"formatAmount": formatAmount,
		"formatDate":   formatDate,
		"formatTime":   formatTime,
		"truncate":     truncate,
		"humanize":     humanize,
	}

	tmpl, err := template.New("system_prompt.tmpl").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse assistant templates: %w", err)
	}
	return &PromptBuilder{tmpl: tmpl, now: time.Now}, nil
}

// SetClock overrides the date shown in the prompt.
func (pb *PromptBuilder) SetClock(now func() time.Time) {
	pb.now = now
}

// PromptData is the input of the system prompt template.
type PromptData struct {
	Now      time.Time
	Topic    string
	Relevant Bundle
	Fallback Bundle
}

// Render produces the system prompt for c. A nil context renders the
// instructions alone. Empty bundles and collections produce no headers.
func (pb *PromptBuilder) Render(c *Context) (string, error) {
	data := PromptData{Now: pb.now(), Topic: GeneralTopic}
	if c != nil {
		data.Topic = c.Topic
		data.Relevant = c.Relevant
		data.Fallback = c.Fallback
	}

	var buf bytes.Buffer
	if err := pb.tmpl.ExecuteTemplate(&buf, "system_prompt.tmpl", data); err != nil {
		return "", fmt.Errorf("failed to execute system_prompt template: %w", err)
	}
	return collapseBlankLines(buf.String()), nil
}

// collapseBlankLines drops runs of blank lines left by omitted sections.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n")) + "\n"
}

// Template helper functions

func formatAmount(v any) string {
	switch amount := v.(type) {
	case int64:
		return model.FormatMinorUnits(amount)
	case *int64:
		if amount == nil {
			return ""
		}
		return model.FormatMinorUnits(*amount)
	}
	return fmt.Sprint(v)
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return fmt.Sprint(v)
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04 MST")
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func humanize(v any) string {
	return strings.ReplaceAll(fmt.Sprint(v), "_", " ")
}
