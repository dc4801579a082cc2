package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/engine"
	"github.com/Veraticus/bizpilot/internal/model"
	"github.com/Veraticus/bizpilot/internal/service"
)

// GenericFailureMessage is shown when the model could not be reached.
const GenericFailureMessage = "Sorry, I couldn't reach the assistant just now. Your message was saved; please try again in a moment."

// noActionsApplied replaces a generated confirmation when every action failed.
const noActionsApplied = "I couldn't apply any of the requested changes. Please check the record names and try again."

// Conversationalist runs one model turn.
type Conversationalist interface {
	Converse(ctx context.Context, history []model.Message, contextPrompt string) (*Reply, error)
}

// ChatResult is the outcome of one user message.
type ChatResult struct {
	Assistant *model.Message   `json:"assistantMessage,omitempty"`
	User      model.Message    `json:"userMessage"`
	Topic     string           `json:"topic"`
	Error     string           `json:"error,omitempty"`
	Outcomes  []engine.Outcome `json:"-"`
	Failed    bool             `json:"failed"`
}

// ChatService handles a user message end to end.
type ChatService struct {
	store    service.ConversationStore
	builder  *ContextBuilder
	prompts  *PromptBuilder
	driver   Conversationalist
	executor engine.ActionExecutor
	logger   *slog.Logger
}

// NewChatService wires the chat pipeline.
func NewChatService(store service.ConversationStore, builder *ContextBuilder, prompts *PromptBuilder,
	driver Conversationalist, executor engine.ActionExecutor, logger *slog.Logger) *ChatService {
	return &ChatService{
		store:    store,
		builder:  builder,
		prompts:  prompts,
		driver:   driver,
		executor: executor,
		logger:   common.OrDefault(logger),
	}
}

// SendMessage verifies the conversation belongs to the account, builds
// context, stores the user's message, runs the model turn, applies the
// returned actions and stores the assistant's reply.
//
// When the model is unavailable the user's message is still stored; the
// result has Failed set and the error wraps common.ErrModelUnavailable.
func (s *ChatService) SendMessage(ctx context.Context, accountID, conversationID, content string) (*ChatResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", common.ErrValidation)
	}
	if _, err := s.store.GetConversation(ctx, accountID, conversationID); err != nil {
		return nil, err
	}

	history, err := s.store.ListMessages(ctx, accountID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	built, err := s.builder.Build(ctx, BuildRequest{AccountID: accountID, ConversationID: conversationID, Message: content})
	if err != nil {
		s.logger.Warn("Context build failed, answering without records", "account_id", accountID, "error", err)
		built = &Context{Topic: GeneralTopic}
	}
	prompt, err := s.prompts.Render(built)
	if err != nil {
		return nil, err
	}

	userMsg := model.Message{ConversationID: conversationID, AccountID: accountID, Role: model.RoleUser, Content: content}
	if err := s.store.CreateMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	s.touch(ctx, accountID, conversationID)

	result := &ChatResult{User: userMsg, Topic: built.Topic}

	reply, err := s.driver.Converse(ctx, append(history, userMsg), prompt)
	if err != nil {
		s.logger.Error("Assistant turn failed", "account_id", accountID, "conversation_id", conversationID, "error", err)
		result.Failed = true
		result.Error = GenericFailureMessage
		if !errors.Is(err, common.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", common.ErrModelUnavailable, err)
		}
		return result, err
	}

	var outcomes []engine.Outcome
	if len(reply.Actions) > 0 {
		outcomes = s.executor.Execute(ctx, accountID, reply.Actions)
	}
	result.Outcomes = outcomes

	assistantMsg := model.Message{
		ConversationID: conversationID,
		AccountID:      accountID,
		Role:           model.RoleAssistant,
		Content:        replyText(reply, outcomes),
	}
	if err := s.store.CreateMessage(ctx, &assistantMsg); err != nil {
		return result, fmt.Errorf("failed to save assistant reply: %w", err)
	}
	s.touch(ctx, accountID, conversationID)
	result.Assistant = &assistantMsg

	return result, nil
}

func (s *ChatService) touch(ctx context.Context, accountID, conversationID string) {
	if err := s.store.TouchConversation(ctx, accountID, conversationID); err != nil {
		s.logger.Warn("Failed to touch conversation", "conversation_id", conversationID, "error", err)
	}
}

// replyText makes sure the text only claims actions that were applied. A
// generated confirmation is rebuilt from the outcomes; model-written text
// gets a note when some requested actions failed.
func replyText(reply *Reply, outcomes []engine.Outcome) string {
	failed := 0
	for _, outcome := range outcomes {
		if !outcome.Applied() {
			failed++
		}
	}

	if reply.Synthesized {
		if summary := engine.Summarize(outcomes); summary != "" {
			if failed > 0 {
				return fmt.Sprintf("%s %d other requested change(s) could not be applied.", summary, failed)
			}
			return summary
		}
		return noActionsApplied
	}

	if failed > 0 {
		return fmt.Sprintf("%s\n\nNote: %d of the requested change(s) could not be applied.", reply.Text, failed)
	}
	return reply.Text
}
