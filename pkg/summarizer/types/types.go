package types

import (
	"errors"
	"fmt"
	"strings"
)

// Result is the normalized summarization response payload.
type Result struct {
	Text     string
	Metadata Metadata
}

// Metadata carries provider/model identity and optional usage accounting.
type Metadata struct {
	Provider string
	Model    string
	Usage    *TokenUsage
}

// TokenUsage captures token accounting across backends.
type TokenUsage struct {
	InputTokens     int64
	OutputTokens    int64
	TotalTokens     int64
	ReasoningTokens int64
	CacheReadTokens int64
}

// IsZero reports whether all token counters are unset/zero.
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 &&
		u.OutputTokens == 0 &&
		u.TotalTokens == 0 &&
		u.ReasoningTokens == 0 &&
		u.CacheReadTokens == 0
}

// UsageOrNil returns nil for zero usage so callers can omit it.
func UsageOrNil(usage TokenUsage) *TokenUsage {
	if usage.IsZero() {
		return nil
	}

	return &usage
}

// ErrEmptySummary is returned when a backend succeeds without any text.
var ErrEmptySummary = errors.New("summarizer returned no text")

// ParseModelRef splits a "provider/model" reference. ok is false when the
// input has no provider prefix.
func ParseModelRef(input string) (providerID string, modelID string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(input), "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	providerID = strings.TrimSpace(parts[0])
	modelID = strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", "", false
	}

	return providerID, modelID, true
}

// NormalizeOpenAIModel strips an optional "openai/" prefix and rejects other providers.
func NormalizeOpenAIModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}
	if !strings.Contains(model, "/") {
		return model, nil
	}

	providerID, modelID, ok := ParseModelRef(model)
	if !ok {
		return "", fmt.Errorf("model %q is invalid", model)
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by the openai backend", providerID)
	}

	return modelID, nil
}
