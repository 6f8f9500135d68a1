package opencode

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"songtldr/pkg/config"
	"songtldr/pkg/summarizer/types"

	sdk "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
)

const (
	sessionTitle          = "songtldr summary"
	sessionCleanupTimeout = 10 * time.Second
)

// Client summarizes text through an OpenCode server, one session per summary.
type Client struct {
	client         *sdk.Client
	model          string
	requestTimeout time.Duration
}

type healthResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

func New(cfg config.SummarizerConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.OpenCode.BaseURL)
	if baseURL == "" {
		return nil, errors.New("summarizer.opencode.base_url is required")
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL), option.WithMaxRetries(0)}
	if authHeader, ok := buildBasicAuthHeader(cfg.OpenCode); ok {
		opts = append(opts, option.WithHeader("Authorization", authHeader))
	}

	return &Client{
		client:         sdk.NewClient(opts...),
		model:          strings.TrimSpace(cfg.Model),
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}, nil
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("operation", "health")
	startedAt := time.Now()
	log.Debug("summarizer request started")

	var response healthResponse
	if err := c.client.Get(ctx, "/global/health", nil, &response); err != nil {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("health check failed: %w", err)
	}
	if !response.Healthy {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "server unhealthy")
		return errors.New("opencode server reported unhealthy status")
	}
	log.Debug("summarizer request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "version", response.Version)
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

	session, err := c.client.Session.New(ctx, sdk.SessionNewParams{Title: sdk.F(sessionTitle)})
	if err != nil {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return types.Result{}, fmt.Errorf("create session failed: %w", err)
	}
	if session.ID == "" {
		return types.Result{}, errors.New("create session returned empty session id")
	}
	defer c.deleteSession(ctx, session.ID)
	log.Debug("summarizer request started", "session_id", session.ID, "model", c.model, "prompt_length", len(prompt))

	params := sdk.SessionPromptParams{
		Parts: sdk.F([]sdk.SessionPromptParamsPartUnion{
			sdk.TextPartInputParam{
				Type: sdk.F(sdk.TextPartInputTypeText),
				Text: sdk.F(prompt),
			},
		}),
	}
	if providerID, modelID, ok := types.ParseModelRef(c.model); ok {
		params.Model = sdk.F(sdk.SessionPromptParamsModel{
			ProviderID: sdk.F(providerID),
			ModelID:    sdk.F(modelID),
		})
	}

	response, err := c.client.Session.Prompt(ctx, session.ID, params)
	if err != nil {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return types.Result{}, fmt.Errorf("summarize failed: %w", err)
	}

	text := extractText(response.Parts)
	if text == "" {
		log.Debug("summarizer request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no text parts")
		return types.Result{}, types.ErrEmptySummary
	}
	log.Debug("summarizer request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"response_length", len(text),
		"parts_count", len(response.Parts),
	)

	return types.Result{
		Text: text,
		Metadata: types.Metadata{
			Provider: strings.TrimSpace(response.Info.ProviderID),
			Model:    strings.TrimSpace(response.Info.ModelID),
			Usage: types.UsageOrNil(types.TokenUsage{
				InputTokens:     tokenCount(response.Info.Tokens.Input),
				OutputTokens:    tokenCount(response.Info.Tokens.Output),
				TotalTokens:     tokenCount(response.Info.Tokens.Input) + tokenCount(response.Info.Tokens.Output),
				ReasoningTokens: tokenCount(response.Info.Tokens.Reasoning),
				CacheReadTokens: tokenCount(response.Info.Tokens.Cache.Read),
			}),
		},
	}, nil
}

// deleteSession removes a finished summary session. It runs on a detached
// context so a timed-out or canceled summary still cleans up.
func (c *Client) deleteSession(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCleanupTimeout)
	defer cancel()

	if _, err := c.client.Session.Delete(ctx, id, sdk.SessionDeleteParams{}); err != nil {
		providerLogger().Warn("Failed to delete summarizer session", "session_id", id, "error", err)
	}
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "summarizer.opencode")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func buildBasicAuthHeader(cfg config.OpenCodeConfig) (string, bool) {
	passwordEnv := strings.TrimSpace(cfg.PasswordEnv)
	if passwordEnv == "" {
		return "", false
	}

	password := strings.TrimSpace(os.Getenv(passwordEnv))
	if password == "" {
		return "", false
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "opencode"
	}

	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token, true
}

func extractText(parts []sdk.Part) string {
	var lines []string
	for _, part := range parts {
		if part.Type == sdk.PartTypeText {
			if text := strings.TrimSpace(part.Text); text != "" {
				lines = append(lines, text)
			}
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func tokenCount(value float64) int64 {
	if value <= 0 {
		return 0
	}

	return int64(math.Round(value))
}
