package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"songtldr/pkg/bus"
)

type fakeMessenger struct {
	sent []bus.Reply
	err  error
}

func (m *fakeMessenger) Send(_ context.Context, _ int64, reply bus.Reply) (int, error) {
	m.sent = append(m.sent, reply)
	return len(m.sent), m.err
}

func (m *fakeMessenger) Delete(context.Context, int64, int) error         { return nil }
func (m *fakeMessenger) Forward(context.Context, int64, int64, int) error { return nil }

func TestParse(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "/start", want: "start", wantOK: true},
		{input: "  /HELP  ", want: "help", wantOK: true},
		{input: "/cmd@songtldr_bot extra", want: "cmd", wantOK: true},
		{input: "/", wantOK: false},
		{input: "Bohemian Rhapsody", wantOK: false},
		{input: "AC/DC", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("Parse(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestReply(t *testing.T) {
	if got := Reply("start").Text(); got != "Welcome! ✨\nSend a song name to get the summary." {
		t.Fatalf("start reply = %q", got)
	}

	help := Reply("help")
	if help.Title != "songtldr" || !help.ItalicBody {
		t.Fatalf("help reply = %+v", help)
	}

	list := "Commands\n/start - Welcome message\n/help - What this bot does\n/cmd - List available commands"
	for _, name := range []string{"cmd", "add", "ban", "whatever"} {
		if got := Reply(name).Text(); got != list {
			t.Fatalf("%s reply = %q", name, got)
		}
	}
}

func TestHandlerIgnoresPlainText(t *testing.T) {
	messenger := &fakeMessenger{}
	handler := NewHandler(messenger, slog.New(slog.NewTextHandler(io.Discard, nil)))

	handled, err := handler.Handle(context.Background(), bus.InboundMessage{ChatID: 1, Text: "Yesterday"})
	if err != nil || handled {
		t.Fatalf("Handle() = (%v, %v), want (false, nil)", handled, err)
	}
	if len(messenger.sent) != 0 {
		t.Fatalf("sent %d replies, want 0", len(messenger.sent))
	}
}

func TestHandlerAnswersCommand(t *testing.T) {
	messenger := &fakeMessenger{}
	handler := NewHandler(messenger, slog.New(slog.NewTextHandler(io.Discard, nil)))

	handled, err := handler.Handle(context.Background(), bus.InboundMessage{ChatID: 1, Text: "/start"})
	if err != nil || !handled {
		t.Fatalf("Handle() = (%v, %v), want (true, nil)", handled, err)
	}
	if len(messenger.sent) != 1 || messenger.sent[0].Title != "Welcome! ✨" {
		t.Fatalf("sent = %+v", messenger.sent)
	}
}

func TestHandlerWrapsSendError(t *testing.T) {
	sendErr := errors.New("network down")
	handler := NewHandler(&fakeMessenger{err: sendErr}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	handled, err := handler.Handle(context.Background(), bus.InboundMessage{ChatID: 1, Text: "/help"})
	if !handled || !errors.Is(err, sendErr) {
		t.Fatalf("Handle() = (%v, %v)", handled, err)
	}
}
