package gateway

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"songtldr/pkg/bus"
	"songtldr/pkg/metrics"
)

const eventBufferSize = 64

// observeEvents logs every lifecycle event and feeds the event-derived
// metrics until ctx is done or the bus closes.
func observeEvents(ctx context.Context, messageBus *bus.MessageBus, log *slog.Logger, ready chan<- struct{}) {
	log = log.With("component", "bus.events")
	events, unsubscribe := messageBus.SubscribeEvents(ctx, eventBufferSize)
	defer unsubscribe()
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, event)
			recordEvent(event)
		}
	}
}

func logEvent(log *slog.Logger, event bus.Event) {
	// Same attribute set for every type so logs correlate by request and chat.
	attrs := []any{
		"event_type", event.Type,
		"request_id", event.RequestID,
		"channel", event.Channel,
		"chat_id", event.ChatID,
		"session_key", event.SessionKey,
		"timestamp", event.At.UTC().Format(time.RFC3339Nano),
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration_ms", event.Duration.Milliseconds())
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch event.Type {
	case bus.EventRequestFailed, bus.EventMirrorFailed:
		log.Error("Request event", append(attrs, "error", event.Error)...)
	case bus.EventRequestTimedOut, bus.EventDeliveryBlocked:
		log.Warn("Request event", append(attrs, "error", event.Error)...)
	case bus.EventRequestReceived, bus.EventLyricsFound, bus.EventLyricsMissing, bus.EventSummaryCompleted:
		log.Info("Request event", attrs...)
	default:
		log.Debug("Request event", attrs...)
	}
}

func recordEvent(event bus.Event) {
	switch event.Type {
	case bus.EventSummaryCompleted:
		if ms, err := strconv.ParseInt(event.Payload["summarize_ms"], 10, 64); err == nil {
			metrics.ObserveSummarize(time.Duration(ms) * time.Millisecond)
		}
	case bus.EventMirrorFailed:
		metrics.MirrorFailed()
	}
}
