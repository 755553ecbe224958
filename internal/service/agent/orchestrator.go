package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/history"
	"github.com/sandevgo/lilybot/internal/telemetry"
	"github.com/sandevgo/lilybot/pkg/log"
)

type Planner interface {
	NextAction(ctx context.Context, msgs []core.Message, catalog []core.ToolDefinition) (string, error)
	GenerateArguments(ctx context.Context, msgs []core.Message, def core.ToolDefinition) (json.RawMessage, error)
	FinalReply(ctx context.Context, msgs []core.Message) (string, error)
}

type ToolRunner interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

type Catalog interface {
	Find(name string) (core.ToolDefinition, bool)
	Subset(allow, exclude []string) ([]core.ToolDefinition, error)
}

type FactSearcher interface {
	SimilaritySearch(ctx context.Context, query string, topK int) ([]core.Fact, error)
}

// Transcript is the history of the conversation being processed.
type Transcript interface {
	Append(ctx context.Context, role core.Role, content string) error
	Snapshot() []core.Turn
}

type Deps struct {
	LLM     Planner
	Tools   ToolRunner
	Catalog Catalog
	Facts   FactSearcher
}

type Options struct {
	PrefetchLimit int
	// WindowTokens bounds the history sent to the model; 0 sends all of it.
	WindowTokens int
	CountTokens  history.TokenCounter
	Now          func() time.Time
}

// Orchestrator turns one user message into tool calls, an optional memory
// write and a final reply. One instance serves one profile and is safe for
// concurrent use across conversations.
type Orchestrator struct {
	deps    Deps
	profile Profile
	opts    Options

	loopTools []core.ToolDefinition
	allTools  []core.ToolDefinition
	permitted map[string]bool
}

func New(deps Deps, profile Profile, opts Options) (*Orchestrator, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}
	all, err := deps.Catalog.Subset(profile.Allowlist, nil)
	if err != nil {
		return nil, fmt.Errorf("profile %s allowlist: %w", profile.Name, err)
	}
	loop, err := deps.Catalog.Subset(profile.Allowlist, profile.LoopExcluded)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
	}

	if opts.PrefetchLimit <= 0 {
		opts.PrefetchLimit = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if profile.Transform == nil {
		profile.Transform = Identity
	}

	permitted := make(map[string]bool, len(loop))
	for _, d := range loop {
		permitted[d.Name] = true
	}

	return &Orchestrator{
		deps:      deps,
		profile:   profile,
		opts:      opts,
		loopTools: loop,
		allTools:  all,
		permitted: permitted,
	}, nil
}

func (o *Orchestrator) Profile() Profile {
	return o.profile
}

// Tools lists what the profile may use, memory tools included.
func (o *Orchestrator) Tools() []core.ToolDefinition {
	return append([]core.ToolDefinition(nil), o.allTools...)
}

// interaction is the state of one Process call.
type interaction struct {
	hist  Transcript
	seed  []core.Message
	facts string
}

// Process runs the full pipeline for one message. It always yields a reply
// unless the history cannot be written, in which case the error wraps
// core.ErrHistory.
func (o *Orchestrator) Process(ctx context.Context, hist Transcript, message string, req core.Requester) (string, error) {
	ctx = log.WithFields(ctx, "interaction", ulid.Make().String(), "profile", o.profile.Name)
	logger := log.FromCtx(ctx)
	start := time.Now()

	reply, err := o.process(ctx, hist, message, req)

	result := "ok"
	if err != nil {
		result = "history_error"
		logger.Error().Err(err).Msg("interaction aborted")
	}
	telemetry.Interactions.WithLabelValues(o.profile.Name, result).Inc()
	telemetry.InteractionDuration.WithLabelValues(o.profile.Name).Observe(time.Since(start).Seconds())
	logger.Debug().Dur("took", time.Since(start)).Msg("interaction finished")
	return reply, err
}

func (o *Orchestrator) process(ctx context.Context, hist Transcript, message string, req core.Requester) (string, error) {
	it := &interaction{
		hist: hist,
		seed: o.profile.Persona(req, o.opts.Now()),
	}

	it.facts = o.prefetch(ctx, message)

	if err := hist.Append(ctx, core.RoleUser, o.profile.Transform(req, message)); err != nil {
		return "", err
	}

	if err := o.toolLoop(ctx, it); err != nil {
		return "", err
	}

	if o.profile.RunMemoryReconcile {
		if err := o.reconcile(ctx, it); err != nil {
			return "", err
		}
	}

	return o.finalize(ctx, it)
}

// prefetch never fails: an unavailable store reads as no matching facts.
func (o *Orchestrator) prefetch(ctx context.Context, message string) string {
	if o.deps.Facts == nil {
		return ""
	}
	facts, err := o.deps.Facts.SimilaritySearch(ctx, message, o.opts.PrefetchLimit)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("memory prefetch skipped")
		telemetry.PrefetchDegraded.Inc()
		return ""
	}
	if len(facts) > o.opts.PrefetchLimit {
		facts = facts[:o.opts.PrefetchLimit]
	}
	log.FromCtx(ctx).Debug().Int("facts", len(facts)).Msg("memory prefetched")
	return factContext(facts)
}

func (o *Orchestrator) toolLoop(ctx context.Context, it *interaction) error {
	logger := log.FromCtx(ctx)

	for calls := 0; calls < o.profile.MaxToolCalls; calls++ {
		name, err := o.deps.LLM.NextAction(ctx, o.prompt(it), o.loopTools)
		if err != nil {
			logger.Warn().Err(err).Msg("tool loop stopped: no usable action")
			return nil
		}
		if name == "" {
			logger.Debug().Int("calls", calls).Msg("tool loop finished")
			return nil
		}

		record, err := o.runTool(ctx, it, name)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		telemetry.ToolCalls.WithLabelValues(metricToolName(name, o.permitted), outcome).Inc()

		if herr := it.hist.Append(ctx, core.RoleSystem, record.String()); herr != nil {
			return herr
		}
		if err != nil {
			logger.Warn().Err(err).Str("tool", name).Msg("tool loop stopped on error")
			return nil
		}
	}

	logger.Info().Int("budget", o.profile.MaxToolCalls).Msg("tool call budget exhausted")
	return nil
}

// runTool generates arguments and executes one loop tool. A stale memory id
// on update_memory gets one more attempt with the retrieved facts as guidance.
func (o *Orchestrator) runTool(ctx context.Context, it *interaction, name string) (core.ToolCallRecord, error) {
	record := core.ToolCallRecord{ToolName: name}

	def, ok := o.deps.Catalog.Find(name)
	if !o.permitted[name] || !ok {
		err := fmt.Errorf("%w: %s", core.ErrToolNotPermitted, name)
		record.Result = errorResult(err)
		return record, err
	}

	args, out, err := o.attempt(ctx, o.prompt(it), def)
	if err != nil && def.Kind == core.KindMemoryUpdate && errors.Is(err, core.ErrMemoryNotFound) {
		log.FromCtx(ctx).Info().Err(err).Msg("retrying update_memory with retrieved facts")
		guided := append(o.prompt(it), core.SystemMessage(retryContext(it.facts, err)))
		args, out, err = o.attempt(ctx, guided, def)
	}

	record.Arguments = args
	if err != nil {
		record.Result = errorResult(err)
		return record, err
	}
	record.Result = out
	return record, nil
}

// attempt is one argument generation plus execution.
func (o *Orchestrator) attempt(ctx context.Context, msgs []core.Message, def core.ToolDefinition) (json.RawMessage, string, error) {
	args, err := o.deps.LLM.GenerateArguments(ctx, msgs, def)
	if err != nil {
		return nil, "", err
	}
	out, err := o.deps.Tools.Execute(ctx, def.Name, args)
	return args, out, err
}

func (o *Orchestrator) finalize(ctx context.Context, it *interaction) (string, error) {
	reply, err := o.deps.LLM.FinalReply(ctx, o.prompt(it))
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("final reply failed")
		reply = apology
	}
	if err := it.hist.Append(ctx, core.RoleAssistant, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// prompt assembles seed messages, the windowed history and the retrieved
// facts, in that order.
func (o *Orchestrator) prompt(it *interaction) []core.Message {
	turns := history.Window(it.hist.Snapshot(), o.opts.WindowTokens, o.opts.CountTokens)

	msgs := make([]core.Message, 0, len(it.seed)+len(turns)+2)
	msgs = append(msgs, it.seed...)
	msgs = append(msgs, core.TurnsToMessages(turns)...)
	if it.facts != "" {
		msgs = append(msgs, core.SystemMessage(it.facts))
	}
	return msgs
}

// metricToolName keeps label cardinality bounded when a model invents names.
func metricToolName(name string, known map[string]bool) string {
	if known[name] {
		return name
	}
	return "not_permitted"
}
