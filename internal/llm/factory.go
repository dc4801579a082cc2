package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/service"
)

// Config holds configuration for the language model client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int // requests per minute
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ManagedClient wraps a provider with rate limiting and retries. Every
// failure it returns wraps common.ErrModelUnavailable.
type ManagedClient struct {
	provider    Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// NewClient creates a managed client for the configured provider. "openai"
// covers every OpenAI-compatible server; "ollama" is the same wire format
// pointed at a local server by default.
func NewClient(cfg Config, logger *slog.Logger) (*ManagedClient, error) {
	var provider Client
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		c, err := newOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		provider = c
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434/v1"
		}
		c, err := newOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		provider = c
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, cfg.Provider)
	}

	return NewManagedClient(provider, cfg, logger), nil
}

// NewManagedClient wraps an existing provider. Tests use it to put the
// retry and rate limit layer around a fake.
func NewManagedClient(provider Client, cfg Config, logger *slog.Logger) *ManagedClient {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &ManagedClient{
		provider:    provider,
		logger:      common.OrDefault(logger),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		retryOpts: service.RetryOptions{
			MaxAttempts:  maxRetries,
			InitialDelay: retryDelay,
			MaxDelay:     retryDelay * 30,
			Multiplier:   2.0,
		},
	}
}

// Complete waits for a rate limit token and calls the provider, retrying
// transient failures with exponential backoff.
func (c *ManagedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit error: %w", common.ErrModelUnavailable, err)
	}

	var resp *Response
	attempt := 0
	err := common.WithRetry(ctx, func() error {
		attempt++
		var callErr error
		resp, callErr = c.provider.Complete(ctx, req)
		if callErr != nil {
			c.logger.Warn("completion attempt failed",
				"attempt", attempt,
				"tools", len(req.Tools),
				"json_mode", req.JSONMode,
				"error", callErr)
		}
		return callErr
	}, c.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrModelUnavailable, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %w: provider returned no response", common.ErrModelUnavailable, common.ErrInvalidResponse)
	}

	c.logger.Debug("completion finished",
		"model", resp.Model,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp, nil
}

// Close releases the rate limiter.
func (c *ManagedClient) Close() error {
	if c.rateLimiter != nil {
		c.rateLimiter.Close()
	}
	return nil
}
