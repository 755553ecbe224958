package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/telemetry"
	"github.com/sandevgo/lilybot/pkg/log"
)

// reconcile asks for a single memory decision over the full profile catalog
// and records exactly one outcome turn when a write was chosen.
func (o *Orchestrator) reconcile(ctx context.Context, it *interaction) error {
	logger := log.FromCtx(ctx)

	base := append(o.prompt(it), core.SystemMessage(reconcileDirective(it.facts)))

	name, err := o.deps.LLM.NextAction(ctx, base, o.allTools)
	if err != nil {
		logger.Warn().Err(err).Msg("memory reconcile skipped")
		telemetry.ReconcileOutcomes.WithLabelValues("skipped").Inc()
		return nil
	}

	def, ok := o.deps.Catalog.Find(name)
	if name == "" || !ok || !o.inProfile(name) ||
		(def.Kind != core.KindMemorySave && def.Kind != core.KindMemoryUpdate) {
		logger.Debug().Str("choice", name).Msg("memory reconcile: nothing to store")
		telemetry.ReconcileOutcomes.WithLabelValues("noop").Inc()
		return nil
	}

	record := core.ToolCallRecord{ToolName: name}
	stored := false
	var failures []string
	for attempt := 1; attempt <= o.profile.ReconcileAttempts && !stored; attempt++ {
		msgs := base
		if len(failures) > 0 {
			msgs = append(append([]core.Message(nil), base...), core.SystemMessage(attemptsContext(failures)))
		}

		args, out, err := o.attempt(ctx, msgs, def)
		record.Arguments = args
		if err == nil {
			record.Result = out
			stored = true
			continue
		}

		logger.Warn().Err(err).Int("attempt", attempt).Str("tool", name).Msg("memory write failed")
		failures = append(failures, fmt.Sprintf("Attempt %d: %v", attempt, err))
		if errors.Is(err, core.ErrMemoryNotFound) {
			failures = append(failures, retryContext(it.facts, err))
		}
		record.Result = errorResult(fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err))
	}

	if stored {
		telemetry.ReconcileOutcomes.WithLabelValues("stored").Inc()
		telemetry.ToolCalls.WithLabelValues(name, "ok").Inc()
	} else {
		telemetry.ReconcileOutcomes.WithLabelValues("failed").Inc()
		telemetry.ToolCalls.WithLabelValues(name, "error").Inc()
	}

	return it.hist.Append(ctx, core.RoleSystem, record.String())
}

func (o *Orchestrator) inProfile(name string) bool {
	for _, d := range o.allTools {
		if d.Name == name {
			return true
		}
	}
	return false
}
