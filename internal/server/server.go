// Package server exposes the record store and the assistant over HTTP.
//
// Every route except /healthz is scoped to the account named by the
// X-Account-ID header. Authentication happens in front of this server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/bizpilot/internal/assistant"
	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/service"
)

// AccountHeader carries the account id of the caller.
const AccountHeader = "X-Account-ID"

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = time.Minute
	shutdownTimeout   = 15 * time.Second
)

// RecordWriter performs the record writes that have side effects.
type RecordWriter interface {
	CreateFinancialRecord(ctx context.Context, accountID string, input model.FinancialRecordInput) (*model.FinancialRecord, error)
	UpdateFinancialRecord(ctx context.Context, accountID, id string, patch model.FinancialRecordPatch) (*model.FinancialRecord, error)
	DeleteFinancialRecord(ctx context.Context, accountID, id string) error
	CreateGoal(ctx context.Context, accountID string, input model.GoalInput) (*model.Goal, error)
	UpdateGoal(ctx context.Context, accountID, id string, patch model.GoalPatch) (*model.Goal, error)
}

// Messenger answers a user message in a conversation.
type Messenger interface {
	SendMessage(ctx context.Context, accountID, conversationID, content string) (*assistant.ChatResult, error)
}

// Server routes HTTP requests to the store, the record service and the chat
// service.
type Server struct {
	store   service.Storage
	records RecordWriter
	chat    Messenger
	logger  *slog.Logger
	now     func() time.Time
	version string
}

// New creates a server.
func New(store service.Storage, records RecordWriter, chat Messenger, version string, logger *slog.Logger) *Server {
	return &Server{
		store:   store,
		records: records,
		chat:    chat,
		logger:  common.OrDefault(logger),
		now:     time.Now,
		version: version,
	}
}

// SetClock overrides the clock used for calendar feed timestamps.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// Handler returns the root handler with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Conversations
	mux.Handle("POST /conversations", s.scoped(s.handleCreateConversation))
	mux.Handle("GET /conversations", s.scoped(s.handleListConversations))
	mux.Handle("GET /conversations/{id}/messages", s.scoped(s.handleListMessages))
	mux.Handle("POST /messages", s.scoped(s.handleSendMessage))

	// Tasks
	mux.Handle("GET /tasks", s.scoped(s.handleListTasks))
	mux.Handle("POST /tasks", s.scoped(s.handleCreateTask))
	mux.Handle("PATCH /tasks/{id}", s.scoped(s.handleUpdateTask))
	mux.Handle("DELETE /tasks/{id}", s.scoped(s.handleDeleteTask))

	// Goals
	mux.Handle("GET /goals", s.scoped(s.handleListGoals))
	mux.Handle("POST /goals", s.scoped(s.handleCreateGoal))
	mux.Handle("PATCH /goals/{id}", s.scoped(s.handleUpdateGoal))
	mux.Handle("DELETE /goals/{id}", s.scoped(s.handleDeleteGoal))

	// Financial records
	mux.Handle("GET /financial-records", s.scoped(s.handleListFinancialRecords))
	mux.Handle("POST /financial-records", s.scoped(s.handleCreateFinancialRecord))
	mux.Handle("PATCH /financial-records/{id}", s.scoped(s.handleUpdateFinancialRecord))
	mux.Handle("DELETE /financial-records/{id}", s.scoped(s.handleDeleteFinancialRecord))

	// Calendar, documents, insights
	mux.Handle("GET /calendar-events", s.scoped(s.handleListCalendarEvents))
	mux.Handle("POST /calendar-events", s.scoped(s.handleCreateCalendarEvent))
	mux.Handle("GET /calendar-events.ics", s.scoped(s.handleCalendarFeed))
	mux.Handle("GET /documents", s.scoped(s.handleListDocuments))
	mux.Handle("POST /documents", s.scoped(s.handleCreateDocument))
	mux.Handle("GET /insights", s.scoped(s.handleListInsights))

	return s.logRequests(mux)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", addr, "version", s.version)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": s.version})
}
