// Package summarizer selects the completion backend that turns lyrics into a summary.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"songtldr/pkg/config"
	"songtldr/pkg/summarizer/fantasy"
	summarizeropenai "songtldr/pkg/summarizer/openai"
	"songtldr/pkg/summarizer/opencode"
	"songtldr/pkg/summarizer/types"
)

// Summarizer produces one summary per prompt. Implementations do not need to
// bound the call themselves; callers race it against their own timer.
type Summarizer interface {
	Health(ctx context.Context) error
	Summarize(ctx context.Context, prompt string) (types.Result, error)
}

func New(cfg config.SummarizerConfig) (Summarizer, error) {
	providerID := strings.TrimSpace(cfg.Provider)
	if providerID == "" {
		providerID = config.DefaultSummarizerProvider
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = config.DefaultSummarizerModel
	}

	slog.Default().With("component", "summarizer.factory").Debug("Resolving summarizer", "provider", providerID, "model", cfg.Model)

	switch providerID {
	case "openai":
		return summarizeropenai.New(cfg)
	case "fantasy":
		return fantasy.New(cfg)
	case "opencode":
		return opencode.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported summarizer provider: %s", providerID)
	}
}
