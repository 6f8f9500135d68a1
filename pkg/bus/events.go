package bus

import "time"

type EventType string

const (
	EventRequestReceived  EventType = "request_received"
	EventLyricsFound      EventType = "lyrics_found"
	EventLyricsMissing    EventType = "lyrics_missing"
	EventSummaryCompleted EventType = "summary_completed"
	EventRequestTimedOut  EventType = "request_timed_out"
	EventRequestFailed    EventType = "request_failed"
	EventDeliveryBlocked  EventType = "delivery_blocked"
	EventAdminMirrored    EventType = "admin_mirrored"
	EventMirrorFailed     EventType = "admin_mirror_failed"
)

// Terminal reports whether the event closes a request.
func (t EventType) Terminal() bool {
	switch t {
	case EventLyricsMissing, EventSummaryCompleted, EventRequestTimedOut, EventRequestFailed, EventDeliveryBlocked:
		return true
	default:
		return false
	}
}

type Event struct {
	Type       EventType         `json:"type"`
	At         time.Time         `json:"at"`
	Channel    string            `json:"channel,omitempty"`
	ChatID     int64             `json:"chat_id,omitempty"`
	SessionKey string            `json:"session_key,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Duration   time.Duration     `json:"duration,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	Error      string            `json:"error,omitempty"`
}
