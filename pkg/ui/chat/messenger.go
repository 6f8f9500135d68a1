package chat

import (
	"context"
	"errors"
	"sync"

	"songtldr/pkg/bus"
	"songtldr/pkg/channel"

	tea "github.com/charmbracelet/bubbletea"
)

var errNotRunning = errors.New("console is not running")

// Messenger delivers pipeline replies into the running console program.
type Messenger struct {
	mu      sync.Mutex
	program *tea.Program
	nextID  int
}

var _ channel.Messenger = (*Messenger)(nil)

func NewMessenger() *Messenger {
	return &Messenger{}
}

func (m *Messenger) attach(program *tea.Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.program = program
}

func (m *Messenger) Send(ctx context.Context, _ int64, reply bus.Reply) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	program := m.program
	if program == nil {
		m.mu.Unlock()
		return 0, errNotRunning
	}
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	program.Send(replyMsg{id: id, reply: reply})
	return id, nil
}

func (m *Messenger) Delete(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	program := m.program
	m.mu.Unlock()

	if program == nil {
		return errNotRunning
	}

	program.Send(deleteMsg{id: messageID})
	return nil
}

// Forward is a no-op; the console has a single chat.
func (m *Messenger) Forward(context.Context, int64, int64, int) error {
	return nil
}
