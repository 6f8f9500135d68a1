package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"songtldr/pkg/bus"
	"songtldr/pkg/config"
)

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"telegram": {Running: true}}}
	if svc.isReady() {
		t.Fatal("expected not ready without summarizer health")
	}

	svc.summarizerLastOKAt = time.Now().UTC()
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and healthy summarizer")
	}

	svc.summarizerLastErr = "boom"
	if svc.isReady() {
		t.Fatal("expected not ready when summarizer has error")
	}

	svc.summarizerLastErr = ""
	svc.channelStates["telegram"] = channelState{Error: "stopped"}
	if svc.isReady() {
		t.Fatal("expected not ready without a running channel")
	}
}

func TestNewLyricsProvider(t *testing.T) {
	t.Parallel()

	if _, err := NewLyricsProvider(config.LyricsConfig{}); err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if _, err := NewLyricsProvider(config.LyricsConfig{Provider: "Genius"}); err != nil {
		t.Fatalf("genius provider: %v", err)
	}
	if _, err := NewLyricsProvider(config.LyricsConfig{Provider: "musixmatch"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestNewServiceRejectsUnknownSummarizer(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Summarizer.Provider = "llama"

	if _, err := NewService(&cfg, newScriptedTransport(), slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected summarizer initialization error")
	}
}

func TestHandleInboundDropsSendersOutsideAllowFrom(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telegram.AllowFrom = []string{"@friend"}
	transport := newScriptedTransport()
	svc := newService(cfg, transport, stubLyrics{}, &toggledSummarizer{}, quietLogger())

	stranger := bus.InboundMessage{Channel: "telegram", ChatID: 5, SenderID: 5, Username: "stranger", MessageID: 1, Text: "Yesterday"}
	if err := svc.handleInbound(context.Background(), stranger); err != nil {
		t.Fatalf("handleInbound() error = %v", err)
	}
	svc.shutdown()

	if got := transport.textsFor(5); len(got) != 0 {
		t.Fatalf("stranger received %v", got)
	}
	if got := transport.textsFor(1); len(got) != 0 {
		t.Fatalf("admin received mirror of dropped message: %v", got)
	}
}

func TestHandleInboundDerivesSessionKey(t *testing.T) {
	transport := newScriptedTransport()
	svc := newService(testConfig(t), transport, stubLyrics{}, &toggledSummarizer{}, quietLogger())

	msg := bus.InboundMessage{Channel: "telegram", ChatID: 7, SenderID: 7, MessageID: 1, Text: "/help"}
	if err := svc.handleInbound(context.Background(), msg); err != nil {
		t.Fatalf("handleInbound() error = %v", err)
	}
	svc.shutdown()

	got := transport.textsFor(7)
	if len(got) != 1 || got[0] != "songtldr\n\nThis bot uses GPT to summarize song lyrics.\nAll songs that have lyrics on Genius.com are supported." {
		t.Fatalf("help reply = %v", got)
	}
}

func TestHandleInboundAfterShutdown(t *testing.T) {
	svc := newService(testConfig(t), newScriptedTransport(), stubLyrics{}, &toggledSummarizer{}, quietLogger())
	svc.shutdown()

	err := svc.handleInbound(context.Background(), bus.InboundMessage{Channel: "telegram", ChatID: 7, Text: "Yesterday"})
	if !errors.Is(err, ErrSequencerClosed) {
		t.Fatalf("handleInbound() error = %v, want ErrSequencerClosed", err)
	}
}
