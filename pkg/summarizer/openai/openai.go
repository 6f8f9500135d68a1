package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"songtldr/pkg/config"
	"songtldr/pkg/summarizer/types"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const providerName = "openai"

// Client summarizes text with the chat completions endpoint.
type Client struct {
	client         osdk.Client
	model          string
	maxTokens      int64
	temperature    float64
	requestTimeout time.Duration
}

func New(cfg config.SummarizerConfig) (*Client, error) {
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		return nil, errors.New("summarizer api key is required: set API_KEY, OPENAI_API_KEY or summarizer.api_key_env")
	}

	model, err := types.NormalizeOpenAIModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	// Failed upstream calls are never retried.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	return &Client{
		client:         osdk.NewClient(opts...),
		model:          model,
		maxTokens:      int64(cfg.MaxTokens),
		temperature:    cfg.Temperature,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "health")
	startedAt := time.Now()
	log.Debug("summarizer request started")

	if _, err := c.client.Models.List(ctx); err != nil {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Debug("summarizer request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

func (c *Client) Summarize(ctx context.Context, prompt string) (types.Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "summarize")
	startedAt := time.Now()

	if strings.TrimSpace(prompt) == "" {
		return types.Result{}, errors.New("prompt is required")
	}
	log.Debug("summarizer request started", "model", c.model, "prompt_length", len(prompt))

	params := osdk.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []osdk.ChatCompletionMessageParamUnion{osdk.UserMessage(prompt)},
	}
	if c.maxTokens > 0 {
		params.MaxTokens = osdk.Int(c.maxTokens)
	}
	if c.temperature > 0 {
		params.Temperature = osdk.Float(c.temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return types.Result{}, fmt.Errorf("summarize failed: %w", err)
	}

	text := ""
	if len(completion.Choices) > 0 {
		text = strings.TrimSpace(completion.Choices[0].Message.Content)
	}
	if text == "" {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no choices")
		return types.Result{}, types.ErrEmptySummary
	}
	log.Debug("summarizer request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	model := strings.TrimSpace(completion.Model)
	if model == "" {
		model = c.model
	}

	return types.Result{
		Text: text,
		Metadata: types.Metadata{
			Provider: providerName,
			Model:    model,
			Usage: types.UsageOrNil(types.TokenUsage{
				InputTokens:  completion.Usage.PromptTokens,
				OutputTokens: completion.Usage.CompletionTokens,
				TotalTokens:  completion.Usage.TotalTokens,
			}),
		},
	}, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "summarizer.openai")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}
