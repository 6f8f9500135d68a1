package summarizer

import (
	"testing"

	"songtldr/pkg/config"
	"songtldr/pkg/summarizer/fantasy"
	summarizeropenai "songtldr/pkg/summarizer/openai"
	"songtldr/pkg/summarizer/opencode"
)

func TestNewDefaultsToOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	client, err := New(config.SummarizerConfig{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := client.(*summarizeropenai.Client); !ok {
		t.Fatalf("expected *openai.Client, got %T", client)
	}
}

func TestNewReturnsErrorForUnsupportedProvider(t *testing.T) {
	_, err := New(config.SummarizerConfig{Provider: "unknown"})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewReturnsFantasyBackend(t *testing.T) {
	client, err := New(config.SummarizerConfig{Provider: "fantasy", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := client.(*fantasy.Client); !ok {
		t.Fatalf("expected *fantasy.Client, got %T", client)
	}
}

func TestNewReturnsOpenCodeBackend(t *testing.T) {
	cfg := config.SummarizerConfig{Provider: "opencode"}
	cfg.OpenCode.BaseURL = "http://127.0.0.1:4096"

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := client.(*opencode.Client); !ok {
		t.Fatalf("expected *opencode.Client, got %T", client)
	}
}
