package model

import (
	"fmt"
	"strings"
	"time"
)

// CalendarEvent is a scheduled meeting or deadline.
type CalendarEvent struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// CalendarEventInput is the shape accepted when an event is created.
type CalendarEventInput struct {
	StartTime   Date   `json:"startTime"`
	EndTime     *Date  `json:"endTime,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// defaultEventDuration is used when an event is created without an end time.
const defaultEventDuration = time.Hour

// Validate checks the input.
func (in *CalendarEventInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: event title is required", ErrInvalidInput)
	}
	if in.StartTime.IsZero() {
		return fmt.Errorf("%w: event start time is required", ErrInvalidInput)
	}
	if end := in.EndTime.TimePtr(); end != nil && end.Before(in.StartTime.Time) {
		return fmt.Errorf("%w: event ends before it starts", ErrInvalidInput)
	}
	return nil
}

// ToEvent converts a validated input into a CalendarEvent.
func (in CalendarEventInput) ToEvent(accountID string) CalendarEvent {
	end := in.StartTime.Add(defaultEventDuration)
	if t := in.EndTime.TimePtr(); t != nil {
		end = *t
	}
	return CalendarEvent{
		AccountID:   accountID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		StartTime:   in.StartTime.Time,
		EndTime:     end,
	}
}

// Document is an uploaded file whose text has already been extracted.
type Document struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Title     string    `json:"title"`
	FileName  string    `json:"fileName,omitempty"`
	Content   string    `json:"content,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// Validate checks a document before it is stored.
func (d *Document) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: document title is required", ErrInvalidInput)
	}
	return nil
}

// Insight is a narrative observation produced by the correlation analyzer.
type Insight struct {
	CreatedAt         time.Time `json:"createdAt"`
	ID                string    `json:"id"`
	AccountID         string    `json:"accountId"`
	Type              string    `json:"type"`
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	FinancialRecordID string    `json:"financialRecordId,omitempty"`
	Confidence        float64   `json:"confidence"`
}

// Role identifies who authored a conversation message.
type Role string

const (
	// RoleUser marks a message written by the account holder.
	RoleUser Role = "user"
	// RoleAssistant marks a message written by the assistant.
	RoleAssistant Role = "assistant"
)

// Conversation groups assistant messages.
type Conversation struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Title     string    `json:"title"`
}

// Message is one turn of a conversation.
type Message struct {
	CreatedAt      time.Time `json:"createdAt"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	AccountID      string    `json:"accountId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
}
