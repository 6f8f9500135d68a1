// Package access tags inbound messages with admin status, applies the sender
// allow list and mirrors non-admin traffic to the admin inboxes.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
	"songtldr/pkg/config"
)

const defaultMirrorTimeout = 15 * time.Second

// Options tunes a Filter. Zero values select defaults.
type Options struct {
	Bus           *bus.MessageBus
	Logger        *slog.Logger
	MirrorTimeout time.Duration
}

// Filter is built once from configuration and shared by all requests.
type Filter struct {
	admins    []int64
	allowFrom map[string]struct{}
	mirror    bool

	messenger channel.Messenger
	bus       *bus.MessageBus
	timeout   time.Duration
	log       *slog.Logger

	wg sync.WaitGroup
}

func New(cfg config.TelegramConfig, messenger channel.Messenger, opts Options) *Filter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	timeout := opts.MirrorTimeout
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}

	admins := slices.Clone(cfg.AdminChatIDs)
	slices.Sort(admins)
	admins = slices.Compact(admins)

	return &Filter{
		admins:    admins,
		allowFrom: allowFromSet(cfg.AllowFrom),
		mirror:    !cfg.DisableAdminMirror,
		messenger: messenger,
		bus:       opts.Bus,
		timeout:   timeout,
		log:       log.With("component", "access"),
	}
}

// IsAdmin reports whether chatID belongs to a configured administrator.
func (f *Filter) IsAdmin(chatID int64) bool {
	_, found := slices.BinarySearch(f.admins, chatID)
	return found
}

// Allowed checks the sender against allow_from. Entries match the numeric
// sender id or the username with or without a leading "@". An empty list
// accepts everyone.
func (f *Filter) Allowed(msg bus.InboundMessage) bool {
	if len(f.allowFrom) == 0 {
		return true
	}

	if _, ok := f.allowFrom[strconv.FormatInt(msg.SenderID, 10)]; ok {
		return true
	}

	username := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(msg.Username), "@"))
	if username == "" {
		return false
	}
	_, ok := f.allowFrom["@"+username]
	return ok
}

// Annotate sets IsAdmin on msg.
func (f *Filter) Annotate(msg *bus.InboundMessage) {
	if msg == nil {
		return
	}
	msg.IsAdmin = f.IsAdmin(msg.ChatID)
}

// ShouldMirror reports whether msg is forwarded to the admin inboxes. Admin
// chats and any text containing "/" are never mirrored.
func (f *Filter) ShouldMirror(msg bus.InboundMessage) bool {
	if !f.mirror || len(f.admins) == 0 || f.messenger == nil {
		return false
	}

	return !f.IsAdmin(msg.ChatID) && !strings.Contains(msg.Text, "/")
}

// Mirror sends every admin a sender header followed by the forwarded original
// message. It returns immediately; delivery runs on a detached context and
// failures are only logged.
func (f *Filter) Mirror(ctx context.Context, msg bus.InboundMessage) {
	if !f.ShouldMirror(msg) {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		for _, adminID := range f.admins {
			err := f.mirrorTo(mirrorCtx, adminID, msg)
			event := bus.Event{
				Type:       bus.EventAdminMirrored,
				Channel:    msg.Channel,
				ChatID:     msg.ChatID,
				SessionKey: msg.SessionKey,
				Payload:    map[string]string{"admin_chat_id": strconv.FormatInt(adminID, 10)},
			}
			if err != nil {
				f.log.Warn("Failed to mirror message to admin", "admin_chat_id", adminID, "chat_id", msg.ChatID, "error", err)
				event.Type = bus.EventMirrorFailed
				event.Error = err.Error()
			}
			f.bus.PublishEvent(mirrorCtx, event)
		}
	}()
}

// Wait blocks until every pending mirror has finished.
func (f *Filter) Wait() {
	f.wg.Wait()
}

func (f *Filter) mirrorTo(ctx context.Context, adminID int64, msg bus.InboundMessage) error {
	header := bus.Reply{Title: MirrorHeader(msg)}
	if _, err := f.messenger.Send(ctx, adminID, header); err != nil {
		return fmt.Errorf("send mirror header: %w", err)
	}
	if err := f.messenger.Forward(ctx, adminID, msg.ChatID, msg.MessageID); err != nil {
		return fmt.Errorf("forward message: %w", err)
	}

	return nil
}

// MirrorHeader renders "From: Name (@username) ID: 123".
func MirrorHeader(msg bus.InboundMessage) string {
	return "From: " + msg.SenderLabel() + " ID: " + strconv.FormatInt(msg.SenderID, 10)
}

func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			trimmed = "@" + strings.ToLower(strings.TrimPrefix(trimmed, "@"))
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}
