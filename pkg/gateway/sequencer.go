package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrSequencerClosed is returned by Submit after Close.
var ErrSequencerClosed = errors.New("sequencer is closed")

// Job is one unit of work run inside a session lane.
type Job func(ctx context.Context)

// Sequencer runs jobs FIFO per session key. Each key with pending work owns
// one worker goroutine; the worker exits once its queue drains, so idle chats
// hold no resources. Different keys run concurrently.
type Sequencer struct {
	log      *slog.Logger
	onActive func(int)

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

type lane struct {
	queue []queuedJob
}

type queuedJob struct {
	ctx context.Context
	run Job
}

// NewSequencer builds a sequencer. onActive, when set, receives the number of
// busy lanes whenever it changes. It runs with the sequencer locked and must
// not call back into it.
func NewSequencer(log *slog.Logger, onActive func(int)) *Sequencer {
	if log == nil {
		log = slog.Default()
	}

	return &Sequencer{
		log:      log.With("component", "gateway.sequencer"),
		onActive: onActive,
		lanes:    make(map[string]*lane),
	}
}

// Submit queues job behind any pending work for key and returns immediately.
func (s *Sequencer) Submit(ctx context.Context, key string, job Job) error {
	if job == nil {
		return errors.New("job is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSequencerClosed
	}

	l, ok := s.lanes[key]
	if !ok {
		l = &lane{}
		s.lanes[key] = l
		s.wg.Add(1)
		go s.work(key, l)
	}
	l.queue = append(l.queue, queuedJob{ctx: ctx, run: job})
	s.reportLocked()
	s.mu.Unlock()

	return nil
}

// Active returns the number of lanes with queued or running work.
func (s *Sequencer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}

// Close rejects new jobs and waits for every queued job to finish.
func (s *Sequencer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sequencer) work(key string, l *lane) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(l.queue) == 0 {
			// Removal happens under the same lock Submit appends under, so a
			// job can never land on a lane whose worker has gone.
			delete(s.lanes, key)
			s.reportLocked()
			s.mu.Unlock()
			return
		}
		next := l.queue[0]
		l.queue[0] = queuedJob{}
		l.queue = l.queue[1:]
		s.mu.Unlock()

		s.run(key, next)
	}
}

func (s *Sequencer) run(key string, job queuedJob) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.log.Error("Job panicked", "session_key", key, "panic", fmt.Sprint(recovered), "stack", string(debug.Stack()))
		}
	}()

	job.run(job.ctx)
}

// reportLocked publishes the lane count. Callers hold s.mu so reports reach
// onActive in the order the count changed.
func (s *Sequencer) reportLocked() {
	if s.onActive != nil {
		s.onActive(len(s.lanes))
	}
}
