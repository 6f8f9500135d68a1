// Package commands answers the bot's slash commands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
)

// Command is one user-facing slash command.
type Command struct {
	Name        string
	Description string
}

var commandList = []Command{
	{Name: "start", Description: "Welcome message"},
	{Name: "help", Description: "What this bot does"},
	{Name: "cmd", Description: "List available commands"},
}

// Commands returns the supported commands in display order.
func Commands() []Command {
	out := make([]Command, len(commandList))
	copy(out, commandList)
	return out
}

// Parse extracts the command name from text such as "/start@songtldr_bot now".
// ok is false when text is not a slash command.
func Parse(text string) (name string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	token, _, _ := strings.Cut(text[1:], " ")
	token, _, _ = strings.Cut(token, "@")
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return "", false
	}

	return token, true
}

// Handler replies to slash commands through a Messenger.
type Handler struct {
	messenger channel.Messenger
	log       *slog.Logger
}

func NewHandler(messenger channel.Messenger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{messenger: messenger, log: log.With("component", "commands")}
}

// Handle answers msg when it is a command. handled is false for plain text.
func (h *Handler) Handle(ctx context.Context, msg bus.InboundMessage) (handled bool, err error) {
	name, ok := Parse(msg.Text)
	if !ok {
		return false, nil
	}

	reply := Reply(name)
	h.log.Info("Answering command", "command", name, "chat_id", msg.ChatID, "is_admin", msg.IsAdmin)
	if _, err := h.messenger.Send(ctx, msg.ChatID, reply); err != nil {
		return true, fmt.Errorf("reply to /%s: %w", name, err)
	}

	return true, nil
}

// Reply returns the reply for a command name. Unknown commands, including
// the unimplemented /add and /ban, get the command list.
func Reply(name string) bus.Reply {
	switch name {
	case "start":
		return bus.Reply{
			Title:      "Welcome! ✨",
			Body:       "Send a song name to get the summary.",
			Compact:    true,
			ItalicBody: true,
		}
	case "help":
		return bus.Reply{
			Title:      "songtldr",
			Body:       "This bot uses GPT to summarize song lyrics.\nAll songs that have lyrics on Genius.com are supported.",
			ItalicBody: true,
		}
	default:
		return commandListReply()
	}
}

func commandListReply() bus.Reply {
	lines := make([]string, 0, len(commandList))
	for _, command := range commandList {
		lines = append(lines, "/"+command.Name+" - "+command.Description)
	}

	return bus.Reply{Title: "Commands", Body: strings.Join(lines, "\n"), Compact: true}
}
