package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Veraticus/bizpilot/internal/calendar"
	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
)

const (
	defaultConversationTitle = "New conversation"
	calendarName             = "bizpilot"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request, accountID string) {
	var req createConversationRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	conv := model.Conversation{AccountID: accountID, Title: strings.TrimSpace(req.Title)}
	if conv.Title == "" {
		conv.Title = defaultConversationTitle
	}
	if err := s.store.CreateConversation(r.Context(), &conv); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, accountID string) {
	convs, err := s.store.ListConversations(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(convs))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, accountID string) {
	id := r.PathValue("id")
	if _, err := s.store.GetConversation(r.Context(), accountID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), accountID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

// handleSendMessage answers 201 with both stored messages, or 502 with the
// stored user message when the model was unavailable.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, accountID string) {
	var req sendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		s.writeError(w, r, fmt.Errorf("%w: conversationId is required", common.ErrValidation))
		return
	}

	result, err := s.chat.SendMessage(r.Context(), accountID, req.ConversationID, req.Content)
	if err != nil {
		if result != nil && errors.Is(err, common.ErrModelUnavailable) {
			writeJSON(w, http.StatusBadGateway, result)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, accountID string) {
	tasks, err := s.store.ListTasks(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, accountID string) {
	var input model.TaskInput
	if err := decodeBody(w, r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := input.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	task := input.ToTask(accountID)
	if err := s.store.CreateTask(r.Context(), &task); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, accountID string) {
	var patch model.TaskPatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.store.GetTask(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := patch.Apply(task); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, accountID string) {
	if err := s.store.DeleteTask(r.Context(), accountID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, accountID string) {
	goals, err := s.store.ListGoals(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(goals))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, accountID string) {
	var input model.GoalInput
	if err := decodeBody(w, r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	goal, err := s.records.CreateGoal(r.Context(), accountID, input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request, accountID string) {
	var patch model.GoalPatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	goal, err := s.records.UpdateGoal(r.Context(), accountID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request, accountID string) {
	if err := s.store.DeleteGoal(r.Context(), accountID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFinancialRecords(w http.ResponseWriter, r *http.Request, accountID string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrValidation))
			return
		}
		limit = n
	}
	records, err := s.store.ListFinancialRecords(r.Context(), accountID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

// handleCreateFinancialRecord responds as soon as the record is stored;
// correlation continues in the background.
func (s *Server) handleCreateFinancialRecord(w http.ResponseWriter, r *http.Request, accountID string) {
	var input model.FinancialRecordInput
	if err := decodeBody(w, r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := s.records.CreateFinancialRecord(r.Context(), accountID, input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleUpdateFinancialRecord(w http.ResponseWriter, r *http.Request, accountID string) {
	var patch model.FinancialRecordPatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := s.records.UpdateFinancialRecord(r.Context(), accountID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteFinancialRecord(w http.ResponseWriter, r *http.Request, accountID string) {
	if err := s.records.DeleteFinancialRecord(r.Context(), accountID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCalendarEvents(w http.ResponseWriter, r *http.Request, accountID string) {
	events, err := s.store.ListCalendarEvents(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (s *Server) handleCreateCalendarEvent(w http.ResponseWriter, r *http.Request, accountID string) {
	var input model.CalendarEventInput
	if err := decodeBody(w, r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := input.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	event := input.ToEvent(accountID)
	if err := s.store.CreateCalendarEvent(r.Context(), &event); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request, accountID string) {
	events, err := s.store.ListCalendarEvents(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.Export(calendarName, events, s.now())))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, accountID string) {
	docs, err := s.store.ListDocuments(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request, accountID string) {
	var doc model.Document
	if err := decodeBody(w, r, &doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	doc.ID = ""
	doc.AccountID = accountID
	if err := doc.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.CreateDocument(r.Context(), &doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request, accountID string) {
	insights, err := s.store.ListInsights(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(insights))
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
