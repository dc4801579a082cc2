// Package assistant turns a user's chat message into model context, drives
// the function-calling conversation and applies the actions it returns.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/llm"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// GeneralTopic is used whenever no topic can be extracted.
const GeneralTopic = "general"

// Builder defaults.
const (
	DefaultFallbackLimit = 5
	DefaultEventWindow   = 14 * 24 * time.Hour
	DefaultTopicCacheTTL = 10 * time.Minute
)

const (
	topicMaxTokens   = 12
	topicTemperature = 0.1
)

// ContextStore is the read side of the store the builder needs.
type ContextStore interface {
	ListTasks(ctx context.Context, accountID string) ([]model.Task, error)
	ListGoals(ctx context.Context, accountID string) ([]model.Goal, error)
	ListFinancialRecords(ctx context.Context, accountID string, limit int) ([]model.FinancialRecord, error)
	ListDocuments(ctx context.Context, accountID string) ([]model.Document, error)
	ListInsights(ctx context.Context, accountID string) ([]model.Insight, error)
	ListCalendarEvents(ctx context.Context, accountID string) ([]model.CalendarEvent, error)
	ListMessages(ctx context.Context, accountID, conversationID string) ([]model.Message, error)
}

// BuilderConfig tunes fallback selection. Zero values use the defaults.
type BuilderConfig struct {
	// FallbackLimit caps each fallback collection.
	FallbackLimit int
	// EventWindow is how far ahead fallback calendar events may start.
	EventWindow time.Duration
	// TopicCacheTTL is how long extracted topics are remembered per message.
	TopicCacheTTL time.Duration
}

// Bundle is one set of records per collection.
type Bundle struct {
	Tasks     []model.Task
	Goals     []model.Goal
	Records   []model.FinancialRecord
	Documents []model.Document
	Insights  []model.Insight
	Events    []model.CalendarEvent
	Messages  []model.Message
}

// IsEmpty reports whether every collection is empty.
func (b Bundle) IsEmpty() bool {
	return len(b.Tasks) == 0 && len(b.Goals) == 0 && len(b.Records) == 0 &&
		len(b.Documents) == 0 && len(b.Insights) == 0 && len(b.Events) == 0 &&
		len(b.Messages) == 0
}

// Context is the record selection for one user message. Relevant records
// mention the topic; Fallback holds bounded, ranked records that do not.
type Context struct {
	Topic    string
	Relevant Bundle
	Fallback Bundle
}

// BuildRequest identifies the message to build context for.
type BuildRequest struct {
	AccountID      string
	ConversationID string
	Message        string
}

// ContextBuilder selects the records relevant to a user message.
type ContextBuilder struct {
	store  ContextStore
	client llm.Client
	topics *cache.Cache
	logger *slog.Logger
	now    func() time.Time
	cfg    BuilderConfig
}

// NewContextBuilder creates a context builder. client is used only for
// topic extraction.
func NewContextBuilder(store ContextStore, client llm.Client, cfg BuilderConfig, logger *slog.Logger) *ContextBuilder {
	if cfg.FallbackLimit <= 0 {
		cfg.FallbackLimit = DefaultFallbackLimit
	}
	if cfg.EventWindow <= 0 {
		cfg.EventWindow = DefaultEventWindow
	}
	if cfg.TopicCacheTTL <= 0 {
		cfg.TopicCacheTTL = DefaultTopicCacheTTL
	}

	return &ContextBuilder{
		store:  store,
		client: client,
		topics: cache.New(cfg.TopicCacheTTL, 2*cfg.TopicCacheTTL),
		logger: common.OrDefault(logger),
		now:    time.Now,
		cfg:    cfg,
	}
}

// SetClock overrides the clock used for the calendar event window.
func (b *ContextBuilder) SetClock(now func() time.Time) {
	b.now = now
}

// Build extracts the topic and partitions every collection of the account.
// Topic extraction never fails; store read failures are returned.
func (b *ContextBuilder) Build(ctx context.Context, req BuildRequest) (*Context, error) {
	topic := b.ExtractTopic(ctx, req.Message)

	tasks, err := b.store.ListTasks(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	goals, err := b.store.ListGoals(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}
	records, err := b.store.ListFinancialRecords(ctx, req.AccountID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load financial records: %w", err)
	}
	documents, err := b.store.ListDocuments(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	insights, err := b.store.ListInsights(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load insights: %w", err)
	}
	events, err := b.store.ListCalendarEvents(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar events: %w", err)
	}
	var messages []model.Message
	if req.ConversationID != "" {
		messages, err = b.store.ListMessages(ctx, req.AccountID, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load messages: %w", err)
		}
	}

	m := newMatcher(topic)
	out := &Context{Topic: topic}
	limit := b.cfg.FallbackLimit

	var rest Bundle
	out.Relevant.Tasks, rest.Tasks = partition(tasks, func(t model.Task) bool {
		return m.any(t.Title, t.Description)
	})
	out.Relevant.Goals, rest.Goals = partition(goals, func(g model.Goal) bool {
		return m.any(g.Title, g.Description, g.Category)
	})
	out.Relevant.Records, rest.Records = partition(records, func(r model.FinancialRecord) bool {
		return m.any(r.Category, r.Description, string(r.Type))
	})
	out.Relevant.Documents, rest.Documents = partition(documents, func(d model.Document) bool {
		return m.any(d.Title, d.FileName, d.Summary, d.Content)
	})
	out.Relevant.Insights, rest.Insights = partition(insights, func(i model.Insight) bool {
		return m.any(i.Title, i.Content, i.Type)
	})
	out.Relevant.Events, rest.Events = partition(events, func(e model.CalendarEvent) bool {
		return m.any(e.Title, e.Description, e.Location)
	})
	out.Relevant.Messages, rest.Messages = partition(messages, func(msg model.Message) bool {
		return m.any(msg.Content)
	})

	out.Fallback = Bundle{
		Tasks:     fallbackTasks(rest.Tasks, limit),
		Goals:     fallbackGoals(rest.Goals, limit),
		Records:   fallbackRecords(rest.Records, limit),
		Documents: fallbackDocuments(rest.Documents, limit),
		Insights:  fallbackInsights(rest.Insights, limit),
		Events:    fallbackEvents(rest.Events, b.now(), b.cfg.EventWindow, limit),
		Messages:  fallbackMessages(rest.Messages, limit),
	}

	b.logger.Debug("Built assistant context",
		"account_id", req.AccountID,
		"topic", topic,
		"relevant_tasks", len(out.Relevant.Tasks),
		"relevant_goals", len(out.Relevant.Goals),
		"relevant_records", len(out.Relevant.Records),
		"fallback_empty", out.Fallback.IsEmpty())
	return out, nil
}

// ExtractTopic asks the model for a short topic. Any failure, or an empty
// answer, yields GeneralTopic. Results are cached per normalized message.
func (b *ContextBuilder) ExtractTopic(ctx context.Context, message string) string {
	key := strings.ToLower(strings.Join(strings.Fields(message), " "))
	if key == "" {
		return GeneralTopic
	}
	if cached, ok := b.topics.Get(key); ok {
		return cached.(string)
	}
	if b.client == nil {
		return GeneralTopic
	}

	resp, err := b.client.Complete(ctx, llm.Request{
		System:      topicPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: message}},
		MaxTokens:   topicMaxTokens,
		Temperature: llm.Temperature(topicTemperature),
	})
	if err != nil {
		b.logger.Warn("Topic extraction failed, using general topic", "error", err)
		return GeneralTopic
	}
	if resp == nil {
		b.logger.Warn("Topic extraction returned no response, using general topic")
		return GeneralTopic
	}

	topic := NormalizeTopic(resp.Content)
	b.topics.SetDefault(key, topic)
	return topic
}

const topicPrompt = "Reply with the single main topic of the user's message as one or two lowercase words. " +
	"No punctuation, no explanation. If there is no clear topic reply with: general"

// NormalizeTopic lowercases a model reply, keeps its first line and strips
// surrounding quotes and punctuation. An empty result is GeneralTopic.
func NormalizeTopic(raw string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	line = strings.ToLower(line)
	line = strings.TrimPrefix(line, "topic:")
	line = strings.TrimFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	line = strings.Join(strings.Fields(line), " ")
	if line == "" {
		return GeneralTopic
	}
	return line
}

// matcher does case-insensitive substring matching of the topic.
type matcher struct {
	caser cases.Caser
	topic string
}

func newMatcher(topic string) *matcher {
	caser := cases.Fold()
	return &matcher{caser: caser, topic: caser.String(topic)}
}

func (m *matcher) any(fields ...string) bool {
	if m.topic == "" {
		return false
	}
	return lo.SomeBy(fields, func(field string) bool {
		return field != "" && strings.Contains(m.caser.String(field), m.topic)
	})
}

func partition[T any](items []T, relevant func(T) bool) (matched, rest []T) {
	return lo.FilterReject(items, func(item T, _ int) bool {
		return relevant(item)
	})
}

func capped[T any](items []T, limit int) []T {
	return lo.Slice(items, 0, limit)
}

func fallbackTasks(tasks []model.Task, limit int) []model.Task {
	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b model.Task) int {
		if d := b.Priority.Rank() - a.Priority.Rank(); d != 0 {
			return d
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return capped(sorted, limit)
}

func fallbackGoals(goals []model.Goal, limit int) []model.Goal {
	active := lo.Filter(goals, func(g model.Goal, _ int) bool {
		return g.Status == model.GoalActive
	})
	slices.SortStableFunc(active, func(a, b model.Goal) int {
		return b.Progress - a.Progress
	})
	return capped(active, limit)
}

func fallbackRecords(records []model.FinancialRecord, limit int) []model.FinancialRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b model.FinancialRecord) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return capped(sorted, limit)
}

func fallbackDocuments(docs []model.Document, limit int) []model.Document {
	sorted := slices.Clone(docs)
	slices.SortStableFunc(sorted, func(a, b model.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return capped(sorted, limit)
}

func fallbackInsights(insights []model.Insight, limit int) []model.Insight {
	sorted := slices.Clone(insights)
	slices.SortStableFunc(sorted, func(a, b model.Insight) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return capped(sorted, limit)
}

// fallbackEvents keeps events starting within [now, now+window], nearest first.
func fallbackEvents(events []model.CalendarEvent, now time.Time, window time.Duration, limit int) []model.CalendarEvent {
	horizon := now.Add(window)
	upcoming := lo.Filter(events, func(e model.CalendarEvent, _ int) bool {
		return !e.StartTime.Before(now) && !e.StartTime.After(horizon)
	})
	slices.SortStableFunc(upcoming, func(a, b model.CalendarEvent) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return capped(upcoming, limit)
}

func fallbackMessages(messages []model.Message, limit int) []model.Message {
	recent := slices.Clone(messages)
	slices.Reverse(recent)
	return capped(recent, limit)
}
