package channel

import (
	"context"

	"songtldr/pkg/bus"
)

// Handler processes one inbound channel message.
type Handler func(context.Context, bus.InboundMessage) error

// Adapter bridges one external transport (for example Telegram) into the bot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

// Messenger is the outbound half of a transport.
type Messenger interface {
	Send(ctx context.Context, chatID int64, reply bus.Reply) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
	Forward(ctx context.Context, toChatID int64, fromChatID int64, messageID int) error
}
