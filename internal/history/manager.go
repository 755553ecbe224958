package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/lilybot/internal/core"
)

// Manager is the ordered transcript of one conversation. Turns are only ever
// appended; Reset is the single way to drop them.
type Manager struct {
	session  string
	recorder core.TranscriptRepository
	now      func() time.Time

	mu    sync.RWMutex
	turns []core.Turn

	// interaction serializes whole pipeline runs on this conversation.
	interaction sync.Mutex
}

func NewManager(session string, recorder core.TranscriptRepository) *Manager {
	return &Manager{
		session:  session,
		recorder: recorder,
		now:      time.Now,
	}
}

func (m *Manager) Session() string {
	return m.session
}

// Append records a turn. When a recorder is configured the turn is persisted
// first, so memory and storage never disagree.
func (m *Manager) Append(ctx context.Context, role core.Role, content string) error {
	switch role {
	case core.RoleUser, core.RoleAssistant, core.RoleSystem:
	default:
		return fmt.Errorf("%w: unsupported role %q", core.ErrHistory, role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	turn := core.Turn{Role: role, Content: content, Timestamp: m.now()}
	if m.recorder != nil {
		if err := m.recorder.AppendTurn(ctx, m.session, turn); err != nil {
			return fmt.Errorf("%w: %w", core.ErrHistory, err)
		}
	}
	m.turns = append(m.turns, turn)
	return nil
}

// Snapshot returns a copy of the transcript in append order.
func (m *Manager) Snapshot() []core.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.DeleteSession(ctx, m.session); err != nil {
			return fmt.Errorf("%w: %w", core.ErrHistory, err)
		}
	}
	m.turns = nil
	return nil
}

// Acquire blocks until no other interaction runs on this conversation and
// returns the release func.
func (m *Manager) Acquire() func() {
	m.interaction.Lock()
	return m.interaction.Unlock
}

func (m *Manager) restore(turns []core.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append([]core.Turn(nil), turns...)
}
