package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
	"songtldr/pkg/config"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	sendErr    error
	deleteErr  error
	forwardErr error

	sent      []*telego.SendMessageParams
	deleted   []*telego.DeleteMessageParams
	forwarded []*telego.ForwardMessageParams
}

func (f *fakeBotAPI) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.sent = append(f.sent, params)
	if f.sendErr != nil {
		return nil, f.sendErr
	}

	return &telego.Message{MessageID: 100 + len(f.sent)}, nil
}

func (f *fakeBotAPI) DeleteMessage(_ context.Context, params *telego.DeleteMessageParams) error {
	f.deleted = append(f.deleted, params)
	return f.deleteErr
}

func (f *fakeBotAPI) ForwardMessage(_ context.Context, params *telego.ForwardMessageParams) (*telego.Message, error) {
	f.forwarded = append(f.forwarded, params)
	if f.forwardErr != nil {
		return nil, f.forwardErr
	}

	return &telego.Message{MessageID: 1}, nil
}

func newTestAdapter(api botAPI) *Adapter {
	return &Adapter{api: api, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(config.TelegramConfig{Token: "  "}, nil); err == nil {
		t.Fatal("expected error when token is missing")
	}
}

func TestSendRendersEntitiesAndReplyTarget(t *testing.T) {
	api := &fakeBotAPI{}
	adapter := newTestAdapter(api)

	id, err := adapter.Send(context.Background(), 42, bus.Reply{Title: "An error occurred.", Body: "Error: boom", Compact: true, ItalicBody: true, ReplyTo: 7})
	require.NoError(t, err)
	require.Equal(t, 101, id)
	require.Len(t, api.sent, 1)

	params := api.sent[0]
	require.Equal(t, int64(42), params.ChatID.ID)
	require.Equal(t, "An error occurred.\nError: boom", params.Text)
	require.NotNil(t, params.ReplyParameters)
	require.Equal(t, 7, params.ReplyParameters.MessageID)
	require.True(t, params.ReplyParameters.AllowSendingWithoutReply)

	types := make([]string, 0, len(params.Entities))
	for _, entity := range params.Entities {
		types = append(types, entity.Type)
	}
	require.Equal(t, []string{telego.EntityTypeBold, telego.EntityTypeItalic}, types)
}

func TestSendWithoutReplyTarget(t *testing.T) {
	api := &fakeBotAPI{}
	adapter := newTestAdapter(api)

	_, err := adapter.Send(context.Background(), 42, bus.Reply{Title: "Summary of Song", Body: "It is about *stars*_"})
	require.NoError(t, err)
	require.Nil(t, api.sent[0].ReplyParameters)
	require.Equal(t, "Summary of Song\n\nIt is about *stars*_", api.sent[0].Text)
	require.Empty(t, api.sent[0].ParseMode)
}

func TestSendMapsAPIErrors(t *testing.T) {
	api := &fakeBotAPI{sendErr: fmt.Errorf("api: %w", &ta.Error{ErrorCode: 403, Description: "Forbidden: bot was blocked by the user"})}
	adapter := newTestAdapter(api)

	_, err := adapter.Send(context.Background(), 42, bus.Reply{Title: "Summarising"})

	var deliveryErr *channel.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	require.Equal(t, channel.MethodSendMessage, deliveryErr.Method)
	require.Equal(t, 403, deliveryErr.Code)
	require.True(t, deliveryErr.Blocked())
}

func TestSendKeepsTransportErrors(t *testing.T) {
	transportErr := errors.New("dial tcp: i/o timeout")
	adapter := newTestAdapter(&fakeBotAPI{sendErr: transportErr})

	_, err := adapter.Send(context.Background(), 42, bus.Reply{Title: "Summarising"})
	require.ErrorIs(t, err, transportErr)

	var deliveryErr *channel.DeliveryError
	require.False(t, errors.As(err, &deliveryErr))
}

func TestDeleteAndForward(t *testing.T) {
	api := &fakeBotAPI{}
	adapter := newTestAdapter(api)

	require.NoError(t, adapter.Delete(context.Background(), 5, 9))
	require.Equal(t, int64(5), api.deleted[0].ChatID.ID)
	require.Equal(t, 9, api.deleted[0].MessageID)

	require.NoError(t, adapter.Forward(context.Background(), 1, 5, 9))
	require.Equal(t, int64(1), api.forwarded[0].ChatID.ID)
	require.Equal(t, int64(5), api.forwarded[0].FromChatID.ID)
	require.Equal(t, 9, api.forwarded[0].MessageID)

	api.deleteErr = &ta.Error{ErrorCode: 400, Description: "Bad Request: message to delete not found"}
	var deliveryErr *channel.DeliveryError
	require.ErrorAs(t, adapter.Delete(context.Background(), 5, 9), &deliveryErr)
	require.Equal(t, channel.MethodDeleteMessage, deliveryErr.Method)
}

func TestInboundFromUpdate(t *testing.T) {
	update := telego.Update{
		UpdateID: 77,
		Message: &telego.Message{
			MessageID: 12,
			Chat:      telego.Chat{ID: -100},
			From:      &telego.User{ID: 5, FirstName: "Freddie", LastName: "Mercury", Username: "freddie"},
			Text:      " Bohemian Rhapsody ",
		},
	}

	inbound, ok := inboundFromUpdate(update)
	if !ok {
		t.Fatal("expected text update to be accepted")
	}
	if inbound.Text != " Bohemian Rhapsody " {
		t.Fatalf("text = %q, want raw message text", inbound.Text)
	}
	if inbound.DisplayName != "Freddie Mercury" {
		t.Fatalf("display name = %q", inbound.DisplayName)
	}
	if inbound.SessionKey != "telegram:-100" {
		t.Fatalf("session key = %q", inbound.SessionKey)
	}
	if inbound.MessageID != 12 || inbound.ChatID != -100 || inbound.SenderID != 5 {
		t.Fatalf("unexpected ids: %+v", inbound)
	}
	if inbound.Metadata["update_id"] != "77" {
		t.Fatalf("update_id metadata = %q", inbound.Metadata["update_id"])
	}
}

func TestInboundFromUpdateSkipsNonText(t *testing.T) {
	cases := []telego.Update{
		{},
		{Message: &telego.Message{Chat: telego.Chat{ID: 1}, Text: "no sender"}},
		{Message: &telego.Message{Chat: telego.Chat{ID: 1}, From: &telego.User{ID: 1}, Text: "   "}},
	}

	for i, update := range cases {
		if _, ok := inboundFromUpdate(update); ok {
			t.Fatalf("case %d: expected update to be skipped", i)
		}
	}
}

func TestPreviewText(t *testing.T) {
	short := " hello "
	if got := previewText(short); got != "hello" {
		t.Fatalf("previewText short = %q, want %q", got, "hello")
	}

	long := strings.Repeat("a", messagePreviewLimit+20)
	got := previewText(long)
	if len(got) != messagePreviewLimit+3 {
		t.Fatalf("previewText long len = %d, want %d", len(got), messagePreviewLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText long = %q, want ellipsis suffix", got)
	}
}

func TestPreviewTextKeepsMultiByteRunesWhole(t *testing.T) {
	// "ü" is two bytes, so the byte limit lands inside a rune.
	query := "a" + strings.Repeat("ü", messagePreviewLimit)
	got := previewText(query)

	if !utf8.ValidString(got) {
		t.Fatalf("previewText produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText = %q, want ellipsis suffix", got)
	}
	if want := messagePreviewLimit - 1 + len("..."); len(got) != want {
		t.Fatalf("previewText len = %d, want %d", len(got), want)
	}
}
