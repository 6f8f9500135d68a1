// Package pipeline turns one inbound song query into exactly one reply.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
	"songtldr/pkg/lyrics"
	"songtldr/pkg/summarizer"
	"songtldr/pkg/summarizer/types"

	"github.com/google/uuid"
)

const (
	StatusNotice   = "Summarising"
	PromptSuffix   = " Tl;dr"
	DefaultTimeout = 60 * time.Second

	cleanupTimeout = 10 * time.Second
)

// Options tunes a Pipeline. Zero values select defaults.
type Options struct {
	Timeout time.Duration
	Bus     *bus.MessageBus
	Logger  *slog.Logger
}

// Pipeline orchestrates status notice, lyrics lookup, summarization and reply.
type Pipeline struct {
	lyrics     lyrics.Provider
	summarizer summarizer.Summarizer
	messenger  channel.Messenger
	bus        *bus.MessageBus
	timeout    time.Duration
	log        *slog.Logger
}

// Result describes how one request ended.
type Result struct {
	RequestID string
	Kind      Kind
	Song      lyrics.Song
	Summary   types.Result
	Duration  time.Duration
	Err       error
}

func New(provider lyrics.Provider, client summarizer.Summarizer, messenger channel.Messenger, opts Options) *Pipeline {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		lyrics:     provider,
		summarizer: client,
		messenger:  messenger,
		bus:        opts.Bus,
		timeout:    timeout,
		log:        log.With("component", "pipeline"),
	}
}

// Handle runs one request to its terminal state. It never returns an error:
// every failure is classified, replied to where appropriate, and logged.
func (p *Pipeline) Handle(ctx context.Context, msg bus.InboundMessage) Result {
	req := &request{
		id:        uuid.NewString(),
		msg:       msg,
		startedAt: time.Now(),
	}
	req.log = p.log.With("request_id", req.id, "chat_id", msg.ChatID, "message_id", msg.MessageID)

	if strings.TrimSpace(msg.Text) == "" {
		req.log.Debug("Ignoring empty message")
		return Result{RequestID: req.id, Kind: KindIgnored}
	}

	p.publish(ctx, req, bus.EventRequestReceived, map[string]string{"query_length": strconv.Itoa(len(msg.Text))}, nil)

	err := p.run(ctx, req)

	result := Result{
		RequestID: req.id,
		Kind:      KindSucceeded,
		Song:      req.song,
		Summary:   req.summary,
		Duration:  time.Since(req.startedAt),
	}
	if err == nil {
		p.deleteStatus(ctx, req)
		req.log.Info("Request completed", "kind", result.Kind, "song", req.song.DisplayTitle(), "duration_ms", result.Duration.Milliseconds())
		p.publish(ctx, req, bus.EventSummaryCompleted, summaryPayload(req), nil)
		return result
	}

	outcome := Classify(err)
	result.Kind = outcome.Kind
	result.Err = err
	p.finishWithOutcome(ctx, req, outcome)
	p.deleteStatus(ctx, req)
	result.Duration = time.Since(req.startedAt)

	return result
}

type request struct {
	id        string
	msg       bus.InboundMessage
	startedAt time.Time
	log       *slog.Logger

	statusID          int
	song              lyrics.Song
	summary           types.Result
	summarizeDuration time.Duration
}

func (p *Pipeline) run(ctx context.Context, req *request) error {
	statusID, err := p.messenger.Send(ctx, req.msg.ChatID, bus.Reply{Title: StatusNotice})
	if err != nil {
		return fmt.Errorf("send status notice: %w", err)
	}
	req.statusID = statusID

	song, text, err := p.fetchLyrics(ctx, req.msg.Text)
	if err != nil {
		return err
	}
	req.song = song
	p.publish(ctx, req, bus.EventLyricsFound, map[string]string{
		"song_id": strconv.FormatInt(song.ID, 10),
		"title":   song.DisplayTitle(),
	}, nil)

	summarizeStarted := time.Now()
	summary, err := p.summarize(ctx, text+PromptSuffix)
	req.summarizeDuration = time.Since(summarizeStarted)
	if err != nil {
		return err
	}
	req.summary = summary

	if _, err := p.messenger.Send(ctx, req.msg.ChatID, bus.Reply{
		Title: "Summary of " + song.DisplayTitle(),
		Body:  summary.Text,
	}); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}

	return nil
}

// fetchLyrics searches with the raw message text and reads lyrics for the
// first ranked result only.
func (p *Pipeline) fetchLyrics(ctx context.Context, query string) (lyrics.Song, string, error) {
	songs, err := p.lyrics.Search(ctx, query)
	if err != nil {
		return lyrics.Song{}, "", fmt.Errorf("search lyrics: %w", err)
	}
	if len(songs) == 0 {
		return lyrics.Song{}, "", fmt.Errorf("search %q returned no songs: %w", query, ErrNoLyrics)
	}

	song := songs[0]
	text, err := p.lyrics.Lyrics(ctx, song)
	if err != nil {
		return song, "", fmt.Errorf("fetch lyrics: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return song, "", fmt.Errorf("song %q has empty lyrics: %w", song.DisplayTitle(), ErrNoLyrics)
	}

	return song, text, nil
}

// summarize races the summarizer against the timeout. The losing call is not
// cancelled; its late result lands in the buffered channel and is dropped.
func (p *Pipeline) summarize(ctx context.Context, prompt string) (types.Result, error) {
	type settled struct {
		result types.Result
		err    error
	}

	done := make(chan settled, 1)
	go func() {
		result, err := p.summarizer.Summarize(ctx, prompt)
		done <- settled{result: result, err: err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case s := <-done:
		if s.err != nil {
			return types.Result{}, fmt.Errorf("summarize lyrics: %w", s.err)
		}
		return s.result, nil
	case <-timer.C:
		return types.Result{}, fmt.Errorf("after %s: %w", p.timeout, ErrSummaryTimeout)
	case <-ctx.Done():
		return types.Result{}, ctx.Err()
	}
}

func (p *Pipeline) finishWithOutcome(ctx context.Context, req *request, outcome Outcome) {
	log := req.log.With("kind", outcome.Kind, "duration_ms", time.Since(req.startedAt).Milliseconds())

	switch outcome.Kind {
	case KindNoLyrics:
		log.Info("No lyrics found", "error", outcome.Err)
		p.publish(ctx, req, bus.EventLyricsMissing, nil, outcome.Err)
	case KindTimeout:
		log.Warn("Summarization timed out", "timeout_ms", p.timeout.Milliseconds())
		p.publish(ctx, req, bus.EventRequestTimedOut, nil, outcome.Err)
	case KindDeliveryBlocked:
		log.Warn("Recipient blocked the bot", "error", outcome.Err)
		p.publish(ctx, req, bus.EventDeliveryBlocked, nil, outcome.Err)
	case KindCanceled:
		log.Info("Request canceled", "error", outcome.Err)
		p.publish(context.WithoutCancel(ctx), req, bus.EventRequestFailed, map[string]string{"kind": string(outcome.Kind)}, outcome.Err)
	default:
		log.Error("Request failed", "error", outcome.Err)
		p.publish(ctx, req, bus.EventRequestFailed, map[string]string{"kind": string(outcome.Kind)}, outcome.Err)
	}

	if outcome.Reply == nil {
		return
	}

	reply := *outcome.Reply
	reply.ReplyTo = req.msg.MessageID
	if _, err := p.messenger.Send(ctx, req.msg.ChatID, reply); err != nil {
		log.Error("Failed to send error reply", "error", err)
	}
}

// deleteStatus removes the status notice on every terminal path. Failures are
// logged only.
func (p *Pipeline) deleteStatus(ctx context.Context, req *request) {
	if req.statusID == 0 {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := p.messenger.Delete(cleanupCtx, req.msg.ChatID, req.statusID); err != nil {
		req.log.Warn("Failed to delete status notice", "status_message_id", req.statusID, "error", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, req *request, eventType bus.EventType, payload map[string]string, err error) {
	event := bus.Event{
		Type:       eventType,
		Channel:    req.msg.Channel,
		ChatID:     req.msg.ChatID,
		SessionKey: req.msg.SessionKey,
		RequestID:  req.id,
		Payload:    payload,
	}
	if eventType.Terminal() {
		event.Duration = time.Since(req.startedAt)
	}
	if err != nil {
		event.Error = err.Error()
	}

	p.bus.PublishEvent(ctx, event)
}

func summaryPayload(req *request) map[string]string {
	payload := map[string]string{
		"title":        req.song.DisplayTitle(),
		"provider":     req.summary.Metadata.Provider,
		"model":        req.summary.Metadata.Model,
		"summarize_ms": strconv.FormatInt(req.summarizeDuration.Milliseconds(), 10),
	}
	if usage := req.summary.Metadata.Usage; usage != nil {
		payload["input_tokens"] = strconv.FormatInt(usage.InputTokens, 10)
		payload["output_tokens"] = strconv.FormatInt(usage.OutputTokens, 10)
		payload["total_tokens"] = strconv.FormatInt(usage.TotalTokens, 10)
	}

	return payload
}
