package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/log"
)

// Sessions hands out one Manager per conversation key.
type Sessions struct {
	recorder core.TranscriptRepository

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewSessions(recorder core.TranscriptRepository) *Sessions {
	return &Sessions{
		recorder: recorder,
		managers: make(map[string]*Manager),
	}
}

// Get returns the manager for key, loading a persisted transcript the first
// time the key is seen.
func (s *Sessions) Get(ctx context.Context, key string) (*Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.managers[key]; ok {
		return m, nil
	}

	m := NewManager(key, s.recorder)
	if s.recorder != nil {
		turns, err := s.recorder.Turns(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: load session %s: %w", core.ErrHistory, key, err)
		}
		m.restore(turns)
		if len(turns) > 0 {
			log.FromCtx(ctx).Debug().Str("session", key).Int("turns", len(turns)).Msg("session restored")
		}
	}

	s.managers[key] = m
	return m, nil
}

func (s *Sessions) Reset(ctx context.Context, key string) error {
	m, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return m.Reset(ctx)
}
