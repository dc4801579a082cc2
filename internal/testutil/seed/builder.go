// Package seed provides a fluent builder for writing account records into a
// test store. Every With call is buffered; Build writes them in order and
// fails the test on the first error.
package seed

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/service"
)

// Builder accumulates records to create for one account.
type Builder interface {
	WithTask(title string, priority model.Priority) Builder
	WithTaskStatus(title string, priority model.Priority, status model.TaskStatus) Builder
	WithRevenueGoal(title string, target int64) Builder
	WithExpenseGoal(title string, target int64) Builder
	WithGoal(goal model.Goal) Builder
	WithRevenue(category string, amount int64, date time.Time) Builder
	WithExpense(category string, amount int64, date time.Time) Builder
	WithEvent(title string, start time.Time) Builder
	WithDocument(title, content string) Builder
	WithInsight(title, content string) Builder
	WithConversation(title string) Builder

	// Build writes every buffered record and returns them with their ids.
	Build() *Data
}

// Data holds the records a Builder created, in creation order.
type Data struct {
	Conversation *model.Conversation
	Tasks        []model.Task
	Goals        []model.Goal
	Records      []model.FinancialRecord
	Events       []model.CalendarEvent
	Documents    []model.Document
	Insights     []model.Insight
}

// Task returns the created task with the given title or fails the test.
func (d *Data) Task(t *testing.T, title string) model.Task {
	t.Helper()
	for _, task := range d.Tasks {
		if task.Title == title {
			return task
		}
	}
	t.Fatalf("task %q not found in seed data", title)
	return model.Task{}
}

// Goal returns the created goal with the given title or fails the test.
func (d *Data) Goal(t *testing.T, title string) model.Goal {
	t.Helper()
	for _, goal := range d.Goals {
		if goal.Title == title {
			return goal
		}
	}
	t.Fatalf("goal %q not found in seed data", title)
	return model.Goal{}
}

type builder struct {
	t         *testing.T
	store     service.Storage
	accountID string
	steps     []func(ctx context.Context, data *Data) error
}

// NewBuilder creates a builder that writes into store for accountID.
func NewBuilder(t *testing.T, store service.Storage, accountID string) Builder {
	t.Helper()
	return &builder{t: t, store: store, accountID: accountID}
}

func (b *builder) add(step func(ctx context.Context, data *Data) error) Builder {
	b.steps = append(b.steps, step)
	return b
}

func (b *builder) WithTask(title string, priority model.Priority) Builder {
	return b.WithTaskStatus(title, priority, model.TaskPending)
}

func (b *builder) WithTaskStatus(title string, priority model.Priority, status model.TaskStatus) Builder {
	return b.add(func(ctx context.Context, data *Data) error {
		task := model.Task{AccountID: b.accountID, Title: title, Priority: priority, Status: status}
		if err := b.store.CreateTask(ctx, &task); err != nil {
			return err
		}
		data.Tasks = append(data.Tasks, task)
		return nil
	})
}

func (b *builder) WithRevenueGoal(title string, target int64) Builder {
	return b.WithGoal(model.Goal{Title: title, Type: model.GoalRevenue, Status: model.GoalActive, TargetAmount: &target})
}

func (b *builder) WithExpenseGoal(title string, target int64) Builder {
	return b.WithGoal(model.Goal{Title: title, Type: model.GoalExpense, Status: model.GoalActive, TargetAmount: &target})
}

func (b *builder) WithGoal(goal model.Goal) Builder {
	return b.add(func(ctx context.Context, data *Data) error {
		goal.AccountID = b.accountID
		if goal.Type == "" {
			goal.Type = model.GoalOther
		}
		if goal.Status == "" {
			goal.Status = model.GoalActive
		}
		if err := b.store.CreateGoal(ctx, &goal); err != nil {
			return err
		}
		data.Goals = append(data.Goals, goal)
		return nil
	})
}

func (b *builder) WithRevenue(category string, amount int64, date time.Time) Builder {
	return b.record(model.RecordRevenue, category, amount, date)
}

func (b *builder) WithExpense(category string, amount int64, date time.Time) Builder {
	return b.record(model.RecordExpense, category, amount, date)
}

func (b *builder) record(recordType model.RecordType, category string, amount int64, date time.Time) Builder {
	return b.add(func(ctx context.Context, data *Data) error {
		record := model.FinancialRecord{
			AccountID: b.accountID,
			Type:      recordType,
			Category:  category,
			Amount:    amount,
			Date:      date,
		}
		if err := b.store.CreateFinancialRecord(ctx, &record); err != nil {
			return err
		}
		data.Records = append(data.Records, record)
		return nil
	})
}

func (b *builder) WithEvent(title string, start time.Time) Builder {
	return b.add(func(ctx context.Context, data *Data) error {
		event := model.CalendarEvent{AccountID: b.accountID, Title: title, StartTime: start, EndTime: start.Add(time.Hour)}
		if err := b.store.CreateCalendarEvent(ctx, &event); err != nil {
			return err
		}
		data.Events = append(data.Events, event)
		return nil
	})
}

func (b *builder) WithDocument(title, content string) Builder {
	return b.add(func(ctx context.Context, data *Data) error {
		doc := model.Document{AccountID: b.accountID, Title: title, Content: content}
		if err := b.store.CreateDocument(ctx, &doc); err != nil {
			return err
		}
		data.Documents = append(data.Documents, doc)
		return nil
	})
}

func (b *builder) WithInsight(title, content string) Builder {
	return b.add(func(ctx context.Context, data *Data) error {
		insight := model.Insight{AccountID: b.accountID, Type: "observation", Title: title, Content: content, Confidence: 0.5}
		if err := b.store.CreateInsight(ctx, &insight); err != nil {
			return err
		}
		data.Insights = append(data.Insights, insight)
		return nil
	})
}

func (b *builder) WithConversation(title string) Builder {
	return b.add(func(ctx context.Context, data *Data) error {
		conv := model.Conversation{AccountID: b.accountID, Title: title}
		if err := b.store.CreateConversation(ctx, &conv); err != nil {
			return err
		}
		data.Conversation = &conv
		return nil
	})
}

func (b *builder) Build() *Data {
	b.t.Helper()

	ctx := context.Background()
	data := &Data{}
	for i, step := range b.steps {
		if err := step(ctx, data); err != nil {
			b.t.Fatalf("seed step %d for account %s failed: %v", i, b.accountID, err)
		}
	}
	return data
}
