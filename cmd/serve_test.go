package cmd

import (
	"testing"

	"songtldr/pkg/config"
)

func TestNewTransportRequiresEnabledTelegram(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Telegram.Enabled = false
	if _, err := newTransport(&cfg, nil); err == nil {
		t.Fatal("expected error when telegram is disabled")
	}
}

func TestNewTransportRequiresToken(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if _, err := newTransport(&cfg, nil); err == nil {
		t.Fatal("expected error without a bot token")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, command := range rootCmd.Commands() {
		names[command.Name()] = true
	}
	for _, want := range []string{"serve", "summarize"} {
		if !names[want] {
			t.Fatalf("missing %s command", want)
		}
	}
}
