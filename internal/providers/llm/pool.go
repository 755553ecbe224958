package llm

import (
	"errors"
	"sync"

	"github.com/sandevgo/lilybot/internal/core"
)

// KeyPool rotates through per-credential providers. Concurrent callers each
// get the next provider exactly once per cycle.
type KeyPool struct {
	mu        sync.Mutex
	providers []core.ChatProvider
	next      int
}

func NewKeyPool(providers ...core.ChatProvider) (*KeyPool, error) {
	if len(providers) == 0 {
		return nil, errors.New("key pool needs at least one provider")
	}
	return &KeyPool{providers: providers}, nil
}

func (p *KeyPool) Next() core.ChatProvider {
	p.mu.Lock()
	defer p.mu.Unlock()

	provider := p.providers[p.next]
	p.next = (p.next + 1) % len(p.providers)
	return provider
}

func (p *KeyPool) Size() int {
	return len(p.providers)
}
