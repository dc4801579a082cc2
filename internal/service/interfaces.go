// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/bizpilot/internal/model"
)

// Every store method takes the owning account id. Lookups, updates and
// deletes of a row that belongs to a different account return
// common.ErrNotFound, exactly as for a row that does not exist.

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, accountID, id string) (*model.Task, error)
	ListTasks(ctx context.Context, accountID string) ([]model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	UpdateTaskStatus(ctx context.Context, accountID, id string, status model.TaskStatus) error
	DeleteTask(ctx context.Context, accountID, id string) error
}

// GoalStore persists goals. Every write clamps progress into [0, 100].
type GoalStore interface {
	CreateGoal(ctx context.Context, goal *model.Goal) error
	GetGoal(ctx context.Context, accountID, id string) (*model.Goal, error)
	ListGoals(ctx context.Context, accountID string) ([]model.Goal, error)
	UpdateGoal(ctx context.Context, goal *model.Goal) error
	UpdateGoalProgress(ctx context.Context, accountID, id string, progress int) error
	DeleteGoal(ctx context.Context, accountID, id string) error
}

// FinancialRecordStore persists revenue and expense records.
type FinancialRecordStore interface {
	CreateFinancialRecord(ctx context.Context, record *model.FinancialRecord) error
	GetFinancialRecord(ctx context.Context, accountID, id string) (*model.FinancialRecord, error)
	// ListFinancialRecords returns records newest first. A limit of zero or
	// less returns every record.
	ListFinancialRecords(ctx context.Context, accountID string, limit int) ([]model.FinancialRecord, error)
	UpdateFinancialRecord(ctx context.Context, record *model.FinancialRecord) error
	DeleteFinancialRecord(ctx context.Context, accountID, id string) error
	// SumFinancialRecordsByType totals amounts per record type in minor units.
	SumFinancialRecordsByType(ctx context.Context, accountID string) (map[model.RecordType]int64, error)
}

// CalendarStore persists calendar events.
type CalendarStore interface {
	CreateCalendarEvent(ctx context.Context, event *model.CalendarEvent) error
	ListCalendarEvents(ctx context.Context, accountID string) ([]model.CalendarEvent, error)
}

// DocumentStore persists documents with their extracted text.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	ListDocuments(ctx context.Context, accountID string) ([]model.Document, error)
}

// InsightStore persists analyzer insights.
type InsightStore interface {
	CreateInsight(ctx context.Context, insight *model.Insight) error
	ListInsights(ctx context.Context, accountID string) ([]model.Insight, error)
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, accountID, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, accountID string) ([]model.Conversation, error)
	TouchConversation(ctx context.Context, accountID, id string) error
	CreateMessage(ctx context.Context, msg *model.Message) error
	// ListMessages returns a conversation's messages oldest first.
	ListMessages(ctx context.Context, accountID, conversationID string) ([]model.Message, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TaskStore
	GoalStore
	FinancialRecordStore
	CalendarStore
	DocumentStore
	InsightStore
	ConversationStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
