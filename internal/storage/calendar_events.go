package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/bizpilot/internal/model"
)

// CreateCalendarEvent inserts a calendar event.
func (s *SQLiteStorage) CreateCalendarEvent(ctx context.Context, event *model.CalendarEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCalendarEvent(event); err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = newID()
	}
	event.CreatedAt = s.now()
	event.StartTime, event.EndTime = event.StartTime.UTC(), event.EndTime.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (id, account_id, title, description, location, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.AccountID, event.Title, event.Description, event.Location,
		event.StartTime, event.EndTime, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create calendar event: %w", err)
	}
	return nil
}

// ListCalendarEvents returns the account's events ordered by start time.
func (s *SQLiteStorage) ListCalendarEvents(ctx context.Context, accountID string) ([]model.CalendarEvent, error) {
	if err := validateScope(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, title, description, location, start_time, end_time, created_at
		FROM calendar_events
		WHERE account_id = ?
		ORDER BY start_time, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []model.CalendarEvent{}
	for rows.Next() {
		var event model.CalendarEvent
		if err := rows.Scan(&event.ID, &event.AccountID, &event.Title, &event.Description, &event.Location,
			&event.StartTime, &event.EndTime, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
