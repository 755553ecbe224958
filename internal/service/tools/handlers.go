package tools

import (
	"context"
	"encoding/json"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/providers/builtin"
)

// BuiltinHandlers wires the built-in capability providers to their kinds.
func BuiltinHandlers(
	clock *builtin.Clock,
	fs *builtin.Filesystem,
	search *builtin.WebSearch,
	store FactStore,
) map[core.ToolKind]Handler {
	handlers := map[core.ToolKind]Handler{
		core.KindClock:     Text(clock.CurrentTime),
		core.KindFileRead:  Text(fs.ReadFile),
		core.KindFileWrite: Text(fs.WriteFile),
		core.KindWebSearch: Text(search.Search),
	}
	for kind, h := range MemoryHandlers(store) {
		handlers[kind] = h
	}
	return handlers
}

// RemoteCaller runs tools that live on another process, keyed by catalog name.
type RemoteCaller interface {
	Call(ctx context.Context, name string, args json.RawMessage) (string, error)
}

func RemoteHandler(c RemoteCaller) Handler {
	return HandlerFunc(func(ctx context.Context, name string, args json.RawMessage) (Result, error) {
		out, err := c.Call(ctx, name, args)
		return Result{Text: out}, err
	})
}
