package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/bizpilot/internal/assistant"
	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/engine"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = testutil.DefaultAccount

// gatedDispatcher runs each dispatch in a goroutine that waits for release.
type gatedDispatcher struct {
	release chan struct{}
	done    []string
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func newGatedDispatcher() *gatedDispatcher {
	return &gatedDispatcher{release: make(chan struct{})}
}

func (d *gatedDispatcher) Dispatch(accountID, recordID string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		<-d.release
		d.mu.Lock()
		d.done = append(d.done, accountID+"/"+recordID)
		d.mu.Unlock()
	}()
}

func (d *gatedDispatcher) Done() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.done...)
}

type stubMessenger struct {
	result *assistant.ChatResult
	err    error
	got    []string
}

func (m *stubMessenger) SendMessage(_ context.Context, accountID, conversationID, content string) (*assistant.ChatResult, error) {
	m.got = append(m.got, accountID, conversationID, content)
	return m.result, m.err
}

type serverFixture struct {
	db         *testutil.TestDB
	dispatcher *gatedDispatcher
	chat       *stubMessenger
	ts         *httptest.Server
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	dispatcher := newGatedDispatcher()
	records := engine.NewRecordService(db.Storage, engine.NewRecalculator(db.Storage, nil), dispatcher, nil)
	chat := &stubMessenger{}

	srv := New(db.Storage, records, chat, "test", nil)
	srv.SetClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) })
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		select {
		case <-dispatcher.release:
		default:
			close(dispatcher.release)
		}
		dispatcher.wg.Wait()
	})

	return &serverFixture{db: db, dispatcher: dispatcher, chat: chat, ts: ts}
}

func (f *serverFixture) do(t *testing.T, method, path, accountID string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accountID != "" {
		req.Header.Set(AccountHeader, accountID)
	}
	resp, err := f.ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthzNeedsNoAccount(t *testing.T) {
	f := newServerFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "test", body["version"])
}

func TestMissingAccountHeader(t *testing.T) {
	f := newServerFixture(t)

	resp := f.do(t, http.MethodGet, "/tasks", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeJSON[map[string]string](t, resp)
	assert.Contains(t, body["error"], AccountHeader)
}

func TestTasksCRUD(t *testing.T) {
	f := newServerFixture(t)

	resp := f.do(t, http.MethodGet, "/tasks", account, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeJSON[[]model.Task](t, resp))

	resp = f.do(t, http.MethodPost, "/tasks", account, map[string]any{"title": "Renew lease", "priority": "high", "dueDate": "2025-06-30"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[model.Task](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.TaskPending, created.Status)
	require.NotNil(t, created.DueDate)

	resp = f.do(t, http.MethodPatch, "/tasks/"+created.ID, account, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.TaskInProgress, decodeJSON[model.Task](t, resp).Status)

	resp = f.do(t, http.MethodPatch, "/tasks/"+created.ID, account, map[string]any{"status": "blocked"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPatch, "/tasks/"+created.ID, "someone-else", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodDelete, "/tasks/"+created.ID, account, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodDelete, "/tasks/"+created.ID, account, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateTask_Validation(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing title", body: map[string]any{"priority": "high"}},
		{name: "bad priority", body: map[string]any{"title": "x", "priority": "urgent"}},
		{name: "bad date", body: map[string]any{"title": "x", "dueDate": "next week"}},
		{name: "not an object", body: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/tasks", account, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestPatchGoal_ClampsProgress(t *testing.T) {
	f := newServerFixture(t)
	data := f.db.Seed(account).WithGoal(model.Goal{Title: "Launch podcast"}).Build()
	goal := data.Goal(t, "Launch podcast")

	tests := []struct {
		progress int
		want     int
	}{
		{progress: 150, want: 100},
		{progress: -20, want: 0},
		{progress: 42, want: 42},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.progress), func(t *testing.T) {
			resp := f.do(t, http.MethodPatch, "/goals/"+goal.ID, account, map[string]any{"progress": tt.progress})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, decodeJSON[model.Goal](t, resp).Progress)

			stored, err := f.db.Storage.GetGoal(context.Background(), account, goal.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Progress)
		})
	}
}

func TestGoalsCreateDerivesProgress(t *testing.T) {
	f := newServerFixture(t)
	f.db.Seed(account).WithRevenue("consulting", 6_000_000, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)).Build()

	resp := f.do(t, http.MethodPost, "/goals", account, map[string]any{"title": "Hit 100k", "type": "revenue", "targetAmount": "100000"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	goal := decodeJSON[model.Goal](t, resp)
	assert.Equal(t, 60, goal.Progress)

	resp = f.do(t, http.MethodGet, "/goals", account, nil)
	require.Len(t, decodeJSON[[]model.Goal](t, resp), 1)

	resp = f.do(t, http.MethodDelete, "/goals/"+goal.ID, account, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateFinancialRecord_ReturnsBeforeCorrelation(t *testing.T) {
	f := newServerFixture(t)

	resp := f.do(t, http.MethodPost, "/financial-records", account, map[string]any{
		"type":     "expense",
		"category": "rent",
		"amount":   "2500.50",
		"date":     "2025-06-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	record := decodeJSON[model.FinancialRecord](t, resp)
	assert.Equal(t, int64(250050), record.Amount)
	assert.Empty(t, f.dispatcher.Done(), "correlation is still pending when the response arrives")

	close(f.dispatcher.release)
	f.dispatcher.wg.Wait()
	assert.Equal(t, []string{account + "/" + record.ID}, f.dispatcher.Done())
}

func TestFinancialRecordsPatchListDelete(t *testing.T) {
	f := newServerFixture(t)
	data := f.db.Seed(account).
		WithExpenseGoal("Stay under budget", 500_000).
		WithExpense("rent", 200_000, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)).
		WithExpense("software", 50_000, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)).
		Build()
	rent := data.Records[0]

	resp := f.do(t, http.MethodPatch, "/financial-records/"+rent.ID, account, map[string]any{"amount": "2200"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(220_000), decodeJSON[model.FinancialRecord](t, resp).Amount)

	resp = f.do(t, http.MethodGet, "/financial-records?limit=1", account, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeJSON[[]model.FinancialRecord](t, resp)
	require.Len(t, listed, 1)
	assert.Equal(t, "software", listed[0].Category)

	resp = f.do(t, http.MethodGet, "/financial-records?limit=abc", account, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodDelete, "/financial-records/"+rent.ID, account, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	goal, err := f.db.Storage.GetGoal(context.Background(), account, data.Goal(t, "Stay under budget").ID)
	require.NoError(t, err)
	assert.Equal(t, 90, goal.Progress, "delete recomputes derived progress")
}

func TestCalendarEventsAndFeed(t *testing.T) {
	f := newServerFixture(t)

	resp := f.do(t, http.MethodPost, "/calendar-events", account, map[string]any{
		"title":     "Landlord call",
		"startTime": "2025-06-03T15:00:00Z",
		"location":  "Phone",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	event := decodeJSON[model.CalendarEvent](t, resp)
	assert.Equal(t, time.Hour, event.EndTime.Sub(event.StartTime))

	resp = f.do(t, http.MethodGet, "/calendar-events", account, nil)
	require.Len(t, decodeJSON[[]model.CalendarEvent](t, resp), 1)

	resp = f.do(t, http.MethodGet, "/calendar-events.ics", account, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar"))
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "SUMMARY:Landlord call")
	assert.Contains(t, string(body), "UID:"+event.ID+"@bizpilot")
}

func TestDocumentsAndInsights(t *testing.T) {
	f := newServerFixture(t)
	f.db.Seed(account).WithInsight("Rent is up", "Rent rose 10%.").Build()

	resp := f.do(t, http.MethodPost, "/documents", account, map[string]any{"title": "Lease", "fileName": "lease.pdf", "content": "Term: 12 months"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decodeJSON[model.Document](t, resp)
	assert.Equal(t, account, doc.AccountID)

	resp = f.do(t, http.MethodPost, "/documents", account, map[string]any{"title": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/documents", account, nil)
	require.Len(t, decodeJSON[[]model.Document](t, resp), 1)

	resp = f.do(t, http.MethodGet, "/insights", account, nil)
	insights := decodeJSON[[]model.Insight](t, resp)
	require.Len(t, insights, 1)
	assert.Equal(t, "Rent is up", insights[0].Title)
}

func TestConversations(t *testing.T) {
	f := newServerFixture(t)

	resp := f.do(t, http.MethodPost, "/conversations", account, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	conv := decodeJSON[model.Conversation](t, resp)
	assert.Equal(t, defaultConversationTitle, conv.Title)

	resp = f.do(t, http.MethodPost, "/conversations", account, map[string]any{"title": "Lease questions"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/conversations", account, nil)
	assert.Len(t, decodeJSON[[]model.Conversation](t, resp), 2)

	resp = f.do(t, http.MethodGet, "/conversations/"+conv.ID+"/messages", account, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeJSON[[]model.Message](t, resp))

	resp = f.do(t, http.MethodGet, "/conversations/"+conv.ID+"/messages", "someone-else", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSendMessage(t *testing.T) {
	reply := &model.Message{ID: "m2", Role: model.RoleAssistant, Content: "Done."}
	tests := []struct {
		result     *assistant.ChatResult
		err        error
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "answered",
			body:       map[string]any{"conversationId": "c1", "content": "mark it done"},
			result:     &assistant.ChatResult{Assistant: reply, User: model.Message{ID: "m1"}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "model unavailable keeps user message",
			body:       map[string]any{"conversationId": "c1", "content": "hello"},
			result:     &assistant.ChatResult{User: model.Message{ID: "m1"}, Failed: true, Error: assistant.GenericFailureMessage},
			err:        fmt.Errorf("%w: timeout", common.ErrModelUnavailable),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown conversation",
			body:       map[string]any{"conversationId": "c404", "content": "hello"},
			err:        fmt.Errorf("conversation c404: %w", common.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing conversation id",
			body:       map[string]any{"content": "hello"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unexpected failure",
			body:       map[string]any{"conversationId": "c1", "content": "hello"},
			err:        fmt.Errorf("disk full"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			f.chat.result, f.chat.err = tt.result, tt.err

			resp := f.do(t, http.MethodPost, "/messages", account, tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeJSON[map[string]any](t, resp)

			switch tt.wantStatus {
			case http.StatusCreated:
				assert.Equal(t, []string{account, "c1", "mark it done"}, f.chat.got)
				assert.Equal(t, "Done.", body["assistantMessage"].(map[string]any)["content"])
			case http.StatusBadGateway:
				assert.Equal(t, true, body["failed"])
				assert.Equal(t, assistant.GenericFailureMessage, body["error"])
				assert.Equal(t, "m1", body["userMessage"].(map[string]any)["id"])
			case http.StatusInternalServerError:
				assert.Equal(t, http.StatusText(http.StatusInternalServerError), body["error"])
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("x: %w", common.ErrValidation), want: http.StatusBadRequest},
		{err: fmt.Errorf("x: %w", common.ErrNotFound), want: http.StatusNotFound},
		{err: fmt.Errorf("x: %w", common.ErrModelUnavailable), want: http.StatusBadGateway},
		{err: fmt.Errorf("x"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
