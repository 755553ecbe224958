package command

import (
	"context"

	"github.com/sandevgo/lilybot/internal/core"
)

type ResetCommand struct {
	sessions  SessionResetter
	formatter *ResponseFormatter
}

func NewResetCommand(sessions SessionResetter) core.Command {
	return &ResetCommand{sessions: sessions, formatter: NewResponseFormatter()}
}

func (c *ResetCommand) Name() string {
	return "reset"
}

func (c *ResetCommand) Description() string {
	return "Forget this conversation (long-term memory is kept)"
}

func (c *ResetCommand) Usage() string {
	return "/reset"
}

func (c *ResetCommand) Execute(ctx context.Context, sessionID string, _ []string) (string, error) {
	if err := c.sessions.Reset(ctx, sessionID); err != nil {
		return "", err
	}
	return c.formatter.Success("Conversation cleared"), nil
}
