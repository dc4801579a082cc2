package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/engine"
	"github.com/Veraticus/bizpilot/internal/llm"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel answers topic requests with topic and conversation requests
// with converse.
func scriptedModel(topic string, converse func(req llm.Request) (*llm.Response, error)) *llm.MockClient {
	mock := llm.NewMockClient()
	mock.Handler = func(req llm.Request) (*llm.Response, error) {
		if len(req.Tools) == 0 {
			return &llm.Response{Content: topic}, nil
		}
		return converse(req)
	}
	return mock
}

type chatFixture struct {
	db   *testutil.TestDB
	chat *ChatService
}

func newChatFixture(t *testing.T, client llm.Client) *chatFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	prompts := newTestPromptBuilder(t)
	records := engine.NewRecordService(db.Storage, engine.NewRecalculator(db.Storage, nil), nil, nil)
	chat := NewChatService(
		db.Storage,
		newTestBuilder(t, db, client),
		prompts,
		NewDriver(client, DriverConfig{ExtendedActions: true}, nil),
		engine.NewExecutor(db.Storage, records, nil),
		nil,
	)
	return &chatFixture{db: db, chat: chat}
}

func (f *chatFixture) messages(t *testing.T, conversationID string) []model.Message {
	t.Helper()
	msgs, err := f.db.Storage.ListMessages(context.Background(), testutil.DefaultAccount, conversationID)
	require.NoError(t, err)
	return msgs
}

func TestChatService_AppliesActionsAndConfirms(t *testing.T) {
	var taskID string
	var sawTaskInPrompt bool
	client := scriptedModel("lease", func(req llm.Request) (*llm.Response, error) {
		sawTaskInPrompt = strings.Contains(req.System, "Renew lease") && strings.Contains(req.System, "["+taskID+"]")
		return &llm.Response{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "update_task_status",
			Arguments: json.RawMessage(`{"taskId":"` + taskID + `","status":"completed"}`),
		}}}, nil
	})
	f := newChatFixture(t, client)
	data := f.db.Seed(testutil.DefaultAccount).
		WithTask("Renew lease", model.PriorityHigh).
		WithConversation("Office").
		Build()
	taskID = data.Task(t, "Renew lease").ID

	result, err := f.chat.SendMessage(context.Background(), testutil.DefaultAccount, data.Conversation.ID, "I renewed the lease, mark it done")
	require.NoError(t, err)

	assert.True(t, sawTaskInPrompt, "relevant task is rendered into the system prompt")
	assert.False(t, result.Failed)
	assert.Equal(t, "lease", result.Topic)
	require.NotNil(t, result.Assistant)
	assert.Equal(t, "Done: I marked task "+taskID+" as completed.", result.Assistant.Content)
	require.Len(t, result.Outcomes, 1)
	assert.True(t, result.Outcomes[0].Applied())

	task, err := f.db.Storage.GetTask(context.Background(), testutil.DefaultAccount, taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, task.Status)

	msgs := f.messages(t, data.Conversation.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
}

func TestChatService_FailedActionsAreNotClaimed(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "synthesized confirmation",
			want: noActionsApplied,
		},
		{
			name: "model text",
			text: "Marked it as done!",
			want: "Marked it as done!\n\nNote: 1 of the requested change(s) could not be applied.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := scriptedModel("lease", func(llm.Request) (*llm.Response, error) {
				return &llm.Response{Content: tt.text, ToolCalls: []llm.ToolCall{{
					Name:      "update_task_status",
					Arguments: json.RawMessage(`{"taskId":"missing","status":"completed"}`),
				}}}, nil
			})
			f := newChatFixture(t, client)
			conv := f.db.Seed(testutil.DefaultAccount).WithConversation("c").Build().Conversation

			result, err := f.chat.SendMessage(context.Background(), testutil.DefaultAccount, conv.ID, "done with lease")
			require.NoError(t, err)
			require.NotNil(t, result.Assistant)
			assert.Equal(t, tt.want, result.Assistant.Content)
			assert.ErrorIs(t, result.Outcomes[0].Err, common.ErrNotFound)
		})
	}
}

func TestChatService_ModelUnavailable(t *testing.T) {
	client := scriptedModel("general", func(llm.Request) (*llm.Response, error) {
		return nil, errors.New("503 service unavailable")
	})
	f := newChatFixture(t, client)
	conv := f.db.Seed(testutil.DefaultAccount).WithConversation("c").Build().Conversation

	result, err := f.chat.SendMessage(context.Background(), testutil.DefaultAccount, conv.ID, "How are sales?")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModelUnavailable)

	require.NotNil(t, result)
	assert.True(t, result.Failed)
	assert.Equal(t, GenericFailureMessage, result.Error)
	assert.Nil(t, result.Assistant)

	msgs := f.messages(t, conv.ID)
	require.Len(t, msgs, 1, "the user's message is kept")
	assert.Equal(t, "How are sales?", msgs[0].Content)
}

func TestChatService_SendsHistory(t *testing.T) {
	var captured llm.Request
	client := scriptedModel("general", func(req llm.Request) (*llm.Response, error) {
		captured = req
		return &llm.Response{Content: "Second answer"}, nil
	})
	f := newChatFixture(t, client)
	conv := f.db.Seed(testutil.DefaultAccount).WithConversation("c").Build().Conversation
	ctx := context.Background()

	for _, msg := range []model.Message{
		{Role: model.RoleUser, Content: "first question"},
		{Role: model.RoleAssistant, Content: "first answer"},
	} {
		msg.ConversationID, msg.AccountID = conv.ID, testutil.DefaultAccount
		require.NoError(t, f.db.Storage.CreateMessage(ctx, &msg))
	}

	_, err := f.chat.SendMessage(ctx, testutil.DefaultAccount, conv.ID, "second question")
	require.NoError(t, err)

	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "first question", captured.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, captured.Messages[1].Role)
	assert.Equal(t, "second question", captured.Messages[2].Content)
}

func TestChatService_RejectsForeignConversation(t *testing.T) {
	client := scriptedModel("general", func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "hi"}, nil
	})
	f := newChatFixture(t, client)
	conv := f.db.Seed("acct-other").WithConversation("theirs").Build().Conversation

	_, err := f.chat.SendMessage(context.Background(), testutil.DefaultAccount, conv.ID, "hello")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Zero(t, client.Calls())

	_, err = f.chat.SendMessage(context.Background(), testutil.DefaultAccount, conv.ID, "   ")
	assert.ErrorIs(t, err, common.ErrValidation)
}
