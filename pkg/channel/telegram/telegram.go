package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
	"songtldr/pkg/config"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// botAPI is the subset of *telego.Bot used for outbound calls.
type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	ForwardMessage(ctx context.Context, params *telego.ForwardMessageParams) (*telego.Message, error)
}

// Adapter bridges Telegram updates into inbound messages and implements
// channel.Messenger for replies.
type Adapter struct {
	cfg config.TelegramConfig
	bot *telego.Bot
	api botAPI
	log *slog.Logger
}

var _ channel.Messenger = (*Adapter)(nil)

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram.token is required (set BOT_TOKEN)")
	}

	if log == nil {
		log = slog.Default()
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Adapter{
		cfg: cfg,
		bot: bot,
		api: bot,
		log: log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and hands every text message to handler.
//
// handler is expected to return quickly; per-chat ordering is the caller's job.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := inboundFromUpdate(update)
			if !ok {
				continue
			}
			a.log.Info("Received message",
				"chat_id", inbound.ChatID,
				"sender_id", inbound.SenderID,
				"sender", inbound.SenderLabel(),
				"session_key", inbound.SessionKey,
				"content", previewText(inbound.Text),
			)

			if err := handler(ctx, inbound); err != nil {
				a.log.Error("Failed to dispatch inbound message", "chat_id", inbound.ChatID, "error", err)
			}
		}
	}
}

// Send delivers reply with a bold title and optional reply threading.
func (a *Adapter) Send(ctx context.Context, chatID int64, reply bus.Reply) (int, error) {
	a.log.Debug("Sending message", "chat_id", chatID, "reply_to", reply.ReplyTo, "content", previewText(reply.Text()))

	message, err := a.api.SendMessage(ctx, sendParams(chatID, reply))
	if err != nil {
		return 0, deliveryError(channel.MethodSendMessage, err)
	}

	return message.MessageID, nil
}

// Delete removes one message previously sent by the bot.
func (a *Adapter) Delete(ctx context.Context, chatID int64, messageID int) error {
	err := a.api.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	if err != nil {
		return deliveryError(channel.MethodDeleteMessage, err)
	}

	return nil
}

// Forward copies a message from one chat into another, keeping its origin header.
func (a *Adapter) Forward(ctx context.Context, toChatID int64, fromChatID int64, messageID int) error {
	_, err := a.api.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:     tu.ID(toChatID),
		FromChatID: tu.ID(fromChatID),
		MessageID:  messageID,
	})
	if err != nil {
		return deliveryError(channel.MethodForwardMessage, err)
	}

	return nil
}

// sendParams renders reply with message entities so user text never needs markup escaping.
func sendParams(chatID int64, reply bus.Reply) *telego.SendMessageParams {
	parts := make([]tu.MessageEntityCollection, 0, 3)
	if reply.Title != "" {
		parts = append(parts, tu.Entity(reply.Title).Bold())
	}
	if separator := reply.Separator(); separator != "" {
		parts = append(parts, tu.Entity(separator))
	}
	if reply.Body != "" {
		body := tu.Entity(reply.Body)
		if reply.ItalicBody {
			body = body.Italic()
		}
		parts = append(parts, body)
	}

	params := tu.MessageWithEntities(tu.ID(chatID), parts...)
	if reply.ReplyTo != 0 {
		params = params.WithReplyParameters(&telego.ReplyParameters{
			MessageID:                reply.ReplyTo,
			AllowSendingWithoutReply: true,
		})
	}

	return params
}

// deliveryError converts Bot API failures into channel.DeliveryError.
// Transport failures without an API response keep their original error.
func deliveryError(method string, err error) error {
	var apiErr *ta.Error
	if errors.As(err, &apiErr) {
		return &channel.DeliveryError{
			Method:      method,
			Code:        apiErr.ErrorCode,
			Description: apiErr.Description,
		}
	}

	return fmt.Errorf("%s: %w", method, err)
}

// inboundFromUpdate extracts a text message; other update kinds are skipped.
func inboundFromUpdate(update telego.Update) (bus.InboundMessage, bool) {
	message := update.Message
	if message == nil || message.From == nil {
		return bus.InboundMessage{}, false
	}
	if strings.TrimSpace(message.Text) == "" {
		return bus.InboundMessage{}, false
	}

	chatID := message.Chat.ID
	return bus.InboundMessage{
		Channel:     channelName,
		ChatID:      chatID,
		SenderID:    message.From.ID,
		DisplayName: displayName(message.From),
		Username:    message.From.Username,
		MessageID:   message.MessageID,
		Text:        message.Text,
		SessionKey:  sessionKey(chatID),
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
		},
	}, true
}

func displayName(user *telego.User) string {
	name := strings.TrimSpace(user.FirstName)
	if last := strings.TrimSpace(user.LastName); last != "" {
		name = strings.TrimSpace(name + " " + last)
	}

	return name
}

// sessionKey maps one Telegram chat to one processing lane.
func sessionKey(chatID int64) string {
	return channelName + ":" + strconv.FormatInt(chatID, 10)
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	cut := messagePreviewLimit
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}

	return trimmed[:cut] + "..."
}
