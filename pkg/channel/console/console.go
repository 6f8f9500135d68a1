// Package console implements channel.Messenger on top of a plain writer.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"
)

// Messenger prints replies to a writer. The status notice is printed once and
// deletions are recorded but cannot be undone on a terminal.
type Messenger struct {
	out io.Writer

	mu      sync.Mutex
	nextID  int
	deleted map[int]struct{}
}

var _ channel.Messenger = (*Messenger)(nil)

func New(out io.Writer) *Messenger {
	return &Messenger{out: out, deleted: make(map[int]struct{})}
}

func (m *Messenger) Send(ctx context.Context, _ int64, reply bus.Reply) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	if _, err := fmt.Fprintln(m.out, reply.Text()); err != nil {
		return 0, fmt.Errorf("write reply: %w", err)
	}

	return m.nextID, nil
}

func (m *Messenger) Delete(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted[messageID] = struct{}{}
	return nil
}

// Forward is a no-op; the console has no other chats.
func (m *Messenger) Forward(context.Context, int64, int64, int) error {
	return nil
}

// Deleted reports whether messageID was deleted.
func (m *Messenger) Deleted(messageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.deleted[messageID]
	return ok
}
