package command

import (
	"context"

	"github.com/sandevgo/lilybot/internal/core"
)

type SessionResetter interface {
	Reset(ctx context.Context, key string) error
}

type FactSearcher interface {
	SimilaritySearch(ctx context.Context, query string, topK int) ([]core.Fact, error)
}

type ToolLister interface {
	Tools() []core.ToolDefinition
}

// NewCommands builds the slash commands every transport offers.
func NewCommands(sessions SessionResetter, facts FactSearcher, tools ToolLister) []core.Command {
	return []core.Command{
		NewResetCommand(sessions),
		NewMemoryCommand(facts),
		NewToolsCommand(tools),
	}
}
