package core

import "context"

// CmdRouter handles slash commands before a message reaches the orchestrator.
// The bool result reports whether input was a command at all.
type CmdRouter interface {
	Execute(ctx context.Context, sessionID, input string) (string, bool)
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Usage() string
	Execute(ctx context.Context, sessionID string, args []string) (string, error)
}
