package pipeline

import (
	"context"
	"errors"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
)

// Kind names the terminal state of one request.
type Kind string

const (
	KindSucceeded       Kind = "succeeded"
	KindIgnored         Kind = "ignored"
	KindNoLyrics        Kind = "no_lyrics"
	KindTimeout         Kind = "timeout"
	KindDeliveryBlocked Kind = "delivery_blocked"
	KindDeliveryFailed  Kind = "delivery_failed"
	KindDeliveryError   Kind = "delivery_error"
	KindCanceled        Kind = "canceled"
	KindUnknown         Kind = "unknown"
)

const (
	noLyricsMessage       = "No lyrics found. Are you sure you entered a correct song?"
	timeoutMessage        = "Query timed out."
	telegramFailedMessage = "Error contacting Telegram."
	unknownErrorTitle     = "An error occurred."
)

var (
	// ErrNoLyrics covers an empty search result list and an empty lyrics page.
	ErrNoLyrics = errors.New("no lyrics found")
	// ErrSummaryTimeout is returned when the timer beats the summarizer.
	ErrSummaryTimeout = errors.New("summarization timed out")
)

// Outcome is the classified result of a failed request. A nil Reply means
// nothing is sent to the user.
type Outcome struct {
	Kind  Kind
	Reply *bus.Reply
	Err   error
}

// Classify maps a pipeline failure to its user-facing reply.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: KindSucceeded}
	}

	var deliveryErr *channel.DeliveryError
	switch {
	case errors.As(err, &deliveryErr):
		switch {
		case deliveryErr.Blocked():
			return Outcome{Kind: KindDeliveryBlocked, Err: err}
		case deliveryErr.Method == channel.MethodSendMessage:
			return Outcome{Kind: KindDeliveryFailed, Err: err, Reply: &bus.Reply{Title: telegramFailedMessage}}
		default:
			return Outcome{Kind: KindDeliveryError, Err: err, Reply: &bus.Reply{Title: "An error occurred: " + deliveryErr.Error()}}
		}
	case errors.Is(err, ErrNoLyrics):
		return Outcome{Kind: KindNoLyrics, Err: err, Reply: &bus.Reply{Title: noLyricsMessage}}
	case errors.Is(err, ErrSummaryTimeout):
		return Outcome{Kind: KindTimeout, Err: err, Reply: &bus.Reply{Title: timeoutMessage}}
	case errors.Is(err, context.Canceled):
		return Outcome{Kind: KindCanceled, Err: err}
	default:
		return Outcome{
			Kind: KindUnknown,
			Err:  err,
			Reply: &bus.Reply{
				Title:      unknownErrorTitle,
				Body:       "Error: " + err.Error(),
				Compact:    true,
				ItalicBody: true,
			},
		}
	}
}
