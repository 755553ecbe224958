package agent

import (
	"context"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/history"
)

// Runner routes incoming text from a transport: slash commands go to the
// command router, everything else through the orchestrator on the
// conversation's own history.
type Runner struct {
	orch     *Orchestrator
	sessions *history.Sessions
	commands core.CmdRouter
}

func NewRunner(orch *Orchestrator, sessions *history.Sessions, commands core.CmdRouter) *Runner {
	return &Runner{orch: orch, sessions: sessions, commands: commands}
}

func (r *Runner) Handle(ctx context.Context, sessionID, text string, req core.Requester) (string, error) {
	hist, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	// One interaction at a time per conversation; history is read-modify-write.
	// Commands wait too, so /reset never lands in the middle of a run.
	release := hist.Acquire()
	defer release()

	if r.commands != nil {
		if out, ok := r.commands.Execute(ctx, sessionID, text); ok {
			return out, nil
		}
	}

	return r.orch.Process(ctx, hist, text, req)
}
