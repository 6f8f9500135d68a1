package bus

import (
	"strconv"
	"strings"
)

// InboundMessage is one text message delivered by a channel adapter.
type InboundMessage struct {
	Channel     string            `json:"channel"`
	ChatID      int64             `json:"chat_id"`
	SenderID    int64             `json:"sender_id"`
	DisplayName string            `json:"display_name"`
	Username    string            `json:"username,omitempty"`
	MessageID   int               `json:"message_id"`
	Text        string            `json:"text"`
	SessionKey  string            `json:"session_key"`
	IsAdmin     bool              `json:"is_admin"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IsCommand reports whether the message is a slash command.
func (m InboundMessage) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// SenderLabel renders the sender as "Name (@username)".
func (m InboundMessage) SenderLabel() string {
	name := strings.TrimSpace(m.DisplayName)
	if name == "" {
		name = strconv.FormatInt(m.SenderID, 10)
	}

	username := strings.TrimSpace(m.Username)
	if username == "" {
		return name
	}

	return name + " (@" + username + ")"
}

// Reply is one outbound chat message.
//
// Title is rendered with emphasis by transports that support it. Body follows
// after a blank line, or after a single line break when Compact is set.
type Reply struct {
	Title      string `json:"title"`
	Body       string `json:"body,omitempty"`
	Compact    bool   `json:"compact,omitempty"`
	ItalicBody bool   `json:"italic_body,omitempty"`
	ReplyTo    int    `json:"reply_to,omitempty"`
}

// Separator returns the text placed between Title and Body.
func (r Reply) Separator() string {
	if r.Body == "" || r.Title == "" {
		return ""
	}
	if r.Compact {
		return "\n"
	}

	return "\n\n"
}

// Text returns the plain-text rendering of the reply.
func (r Reply) Text() string {
	return r.Title + r.Separator() + r.Body
}
