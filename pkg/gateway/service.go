package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"songtldr/pkg/access"
	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
	"songtldr/pkg/commands"
	"songtldr/pkg/config"
	"songtldr/pkg/lyrics"
	"songtldr/pkg/lyrics/genius"
	"songtldr/pkg/metrics"
	"songtldr/pkg/pipeline"
	"songtldr/pkg/summarizer"
)

const healthCheckInterval = 30 * time.Second

// Transport is a channel that both receives updates and delivers replies.
type Transport interface {
	channel.Adapter
	channel.Messenger
}

type Service struct {
	cfg        *config.Config
	log        *slog.Logger
	summarizer summarizer.Summarizer
	transport  Transport

	bus       *bus.MessageBus
	access    *access.Filter
	commands  *commands.Handler
	pipeline  *pipeline.Pipeline
	sequencer *Sequencer

	mu                 sync.RWMutex
	startedAt          time.Time
	summarizerLastOKAt time.Time
	summarizerLastErr  string
	channelStates      map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status             string                  `json:"status"`
	UptimeSeconds      int64                   `json:"uptime_seconds"`
	SummarizerLastOKAt string                  `json:"summarizer_last_ok_at,omitempty"`
	SummarizerLastErr  string                  `json:"summarizer_last_error,omitempty"`
	ActiveLanes        int                     `json:"active_lanes"`
	Channels           map[string]channelState `json:"channels"`
}

// NewService builds the lyrics provider and summarizer from cfg and wires
// them to transport.
func NewService(cfg *config.Config, transport Transport, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}

	provider, err := NewLyricsProvider(cfg.Lyrics)
	if err != nil {
		return nil, fmt.Errorf("initialize lyrics provider: %w", err)
	}

	client, err := summarizer.New(cfg.Summarizer)
	if err != nil {
		return nil, fmt.Errorf("initialize summarizer: %w", err)
	}

	return newService(cfg, transport, provider, client, log), nil
}

// NewLyricsProvider returns the configured lyrics backend.
func NewLyricsProvider(cfg config.LyricsConfig) (lyrics.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch name {
	case "", config.DefaultLyricsProvider:
		return genius.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported lyrics provider %q", cfg.Provider)
	}
}

func newService(cfg *config.Config, transport Transport, provider lyrics.Provider, client summarizer.Summarizer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	metrics.Init()

	messageBus := bus.NewMessageBus()
	timeout := time.Duration(cfg.Summarizer.SummaryTimeoutMS()) * time.Millisecond

	return &Service{
		cfg:        cfg,
		log:        log.With("component", "gateway.service"),
		summarizer: client,
		transport:  transport,
		bus:        messageBus,
		access:     access.New(cfg.Telegram, transport, access.Options{Bus: messageBus, Logger: log}),
		commands:   commands.NewHandler(transport, log),
		pipeline: pipeline.New(provider, client, transport, pipeline.Options{
			Timeout: timeout,
			Bus:     messageBus,
			Logger:  log,
		}),
		sequencer:     NewSequencer(log, metrics.SetActiveLanes),
		channelStates: map[string]channelState{transport.Name(): {}},
	}
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkSummarizerHealth(ctx); err != nil {
		s.shutdown()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observerReady := make(chan struct{})
	go observeEvents(ctx, s.bus, s.log, observerReady)
	<-observerReady

	serverErrors := make(chan error, 1)
	go s.runStatusServer(ctx, serverErrors)

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.checkSummarizerHealth(ctx); err != nil && ctx.Err() == nil {
					s.log.Warn("Summarizer health check failed", "error", err)
				}
			}
		}
	}()

	name := s.transport.Name()
	s.setChannelState(name, channelState{Running: true})

	errCh := make(chan error, 1)
	transportDone := make(chan struct{})
	go func() {
		defer close(transportDone)
		err := s.transport.Run(ctx, s.handleInbound)
		s.setChannelState(name, channelState{Running: false, Error: errorString(err)})
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("run %s channel: %w", name, err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrors:
	case runErr = <-errCh:
	}

	// No inbound message may reach the sequencer or the mirror once they
	// start draining.
	cancel()
	<-transportDone
	s.shutdown()
	return runErr
}

// shutdown drains queued requests and pending mirrors before closing the bus.
func (s *Service) shutdown() {
	s.sequencer.Close()
	s.access.Wait()
	s.bus.Close()
}

// handleInbound applies the access rules and queues the message on its chat
// lane. It returns as soon as the message is queued.
func (s *Service) handleInbound(ctx context.Context, msg bus.InboundMessage) error {
	if !s.access.Allowed(msg) {
		s.log.Debug("Ignoring message from sender outside allow_from", "chat_id", msg.ChatID, "sender_id", msg.SenderID)
		return nil
	}

	s.access.Annotate(&msg)
	if msg.SessionKey == "" {
		msg.SessionKey = msg.Channel + ":" + strconv.FormatInt(msg.ChatID, 10)
	}

	s.log.Info("Inbound message", "from", msg.SenderLabel(), "message", msg.Text, "chat_id", msg.ChatID, "is_admin", msg.IsAdmin)
	s.access.Mirror(ctx, msg)

	receivedAt := time.Now()
	return s.sequencer.Submit(ctx, msg.SessionKey, func(ctx context.Context) {
		s.process(ctx, msg)
		s.log.Info("Response time", "chat_id", msg.ChatID, "duration_ms", time.Since(receivedAt).Milliseconds())
	})
}

func (s *Service) process(ctx context.Context, msg bus.InboundMessage) {
	handled, err := s.commands.Handle(ctx, msg)
	if handled {
		if err != nil {
			s.log.Error("Failed to answer command", "chat_id", msg.ChatID, "kind", pipeline.Classify(err).Kind, "error", err)
		}
		return
	}

	result := s.pipeline.Handle(ctx, msg)
	if result.Kind != pipeline.KindIgnored {
		metrics.ObserveRequest(string(result.Kind), result.Duration)
	}
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = config.DefaultGatewayHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = config.DefaultGatewayPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.statusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	lastOK := ""
	if !s.summarizerLastOKAt.IsZero() {
		lastOK = s.summarizerLastOKAt.Format(time.RFC3339)
	}

	active := 0
	if s.sequencer != nil {
		active = s.sequencer.Active()
	}

	return statusResponse{
		Status:             status,
		UptimeSeconds:      uptime,
		SummarizerLastOKAt: lastOK,
		SummarizerLastErr:  s.summarizerLastErr,
		ActiveLanes:        active,
		Channels:           channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}

	return anyRunning && !s.summarizerLastOKAt.IsZero() && s.summarizerLastErr == ""
}

func (s *Service) checkSummarizerHealth(ctx context.Context) error {
	if err := s.summarizer.Health(ctx); err != nil {
		s.mu.Lock()
		s.summarizerLastErr = err.Error()
		s.mu.Unlock()
		metrics.SetSummarizerHealthy(false)
		return fmt.Errorf("summarizer health check failed: %w", err)
	}

	s.mu.Lock()
	s.summarizerLastErr = ""
	s.summarizerLastOKAt = time.Now().UTC()
	s.mu.Unlock()
	metrics.SetSummarizerHealthy(true)

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
