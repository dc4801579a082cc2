package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/llm"
	"github.com/Veraticus/bizpilot/internal/model"
)

// Reply is the parsed result of one conversational turn.
type Reply struct {
	Text    string
	Actions []model.Action
	// Synthesized is set when the model returned actions without text and
	// Text was generated from the actions.
	Synthesized bool
}

// DriverConfig tunes the conversational model call.
type DriverConfig struct {
	Temperature *float64
	MaxTokens   int
	// ExtendedActions declares the create_* tools in addition to the
	// status and progress updates.
	ExtendedActions bool
}

// Driver runs the function-calling conversation with the model.
type Driver struct {
	client   llm.Client
	logger   *slog.Logger
	declared map[string]struct{}
	tools    []llm.Tool
	cfg      DriverConfig
}

// NewDriver creates a driver declaring the configured tools.
func NewDriver(client llm.Client, cfg DriverConfig, logger *slog.Logger) *Driver {
	tools := Tools(cfg.ExtendedActions)
	declared := make(map[string]struct{}, len(tools))
	for _, tool := range tools {
		declared[tool.Name] = struct{}{}
	}
	return &Driver{
		client:   client,
		logger:   common.OrDefault(logger),
		declared: declared,
		tools:    tools,
		cfg:      cfg,
	}
}

// Converse sends the system prompt and the conversation history to the model
// and parses its reply. Actions keep the order the model returned them in.
// Tool calls naming an undeclared tool, or carrying arguments that are not a
// JSON object, are dropped. Every failure wraps common.ErrModelUnavailable.
func (d *Driver) Converse(ctx context.Context, history []model.Message, contextPrompt string) (*Reply, error) {
	messages := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case model.RoleUser:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case model.RoleAssistant:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
		}
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: empty conversation", common.ErrValidation)
	}

	resp, err := d.client.Complete(ctx, llm.Request{
		System:      contextPrompt,
		Messages:    messages,
		Tools:       d.tools,
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, common.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrModelUnavailable, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %w: no response", common.ErrModelUnavailable, common.ErrInvalidResponse)
	}

	reply := &Reply{Text: strings.TrimSpace(resp.Content)}
	for _, call := range resp.ToolCalls {
		if _, ok := d.declared[call.Name]; !ok {
			d.logger.Warn("Dropping call to undeclared tool", "tool", call.Name, "call_id", call.ID)
			continue
		}
		if !isJSONObject(call.Arguments) {
			d.logger.Warn("Dropping tool call with malformed arguments", "tool", call.Name, "call_id", call.ID)
			continue
		}
		reply.Actions = append(reply.Actions, model.Action{
			Type:       model.ActionType(call.Name),
			Parameters: call.Arguments,
		})
	}

	if reply.Text == "" {
		if len(reply.Actions) == 0 {
			return nil, fmt.Errorf("%w: %w: reply has neither text nor actions", common.ErrModelUnavailable, common.ErrInvalidResponse)
		}
		reply.Text = confirmation(reply.Actions)
		reply.Synthesized = true
	}

	return reply, nil
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

// confirmation enumerates requested actions for a reply without text.
func confirmation(actions []model.Action) string {
	parts := make([]string, len(actions))
	for i, action := range actions {
		parts[i] = action.Describe()
	}
	return "I " + strings.Join(parts, "; ") + "."
}
