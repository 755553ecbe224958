package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/log"
)

const (
	defaultMaxOutput = 4000
	noOutput         = "Tool executed successfully, but returned no output."
	noMemories       = "No relevant memories found."
)

// Result is what a handler produces before post-processing. Memory handlers
// fill the structured fields; everything else sets Text.
type Result struct {
	Text       string
	Facts      []core.Fact
	FactID     string
	ReplacedID string
}

type Handler interface {
	Handle(ctx context.Context, name string, args json.RawMessage) (Result, error)
}

type HandlerFunc func(ctx context.Context, name string, args json.RawMessage) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	return f(ctx, name, args)
}

// Text adapts a plain string tool to a Handler.
func Text(fn func(ctx context.Context, args json.RawMessage) (string, error)) Handler {
	return HandlerFunc(func(ctx context.Context, _ string, args json.RawMessage) (Result, error) {
		out, err := fn(ctx, args)
		return Result{Text: out}, err
	})
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Executor struct {
	registry   *Registry
	handlers   map[core.ToolKind]Handler
	summarizer Summarizer
	maxOutput  int
}

// NewExecutor fails unless every kind used by the registry has a handler.
func NewExecutor(registry *Registry, handlers map[core.ToolKind]Handler, summarizer Summarizer) (*Executor, error) {
	var missing []string
	for _, k := range registry.Kinds() {
		if handlers[k] == nil {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no handler for tool kinds: %s", strings.Join(missing, ", "))
	}
	return &Executor{
		registry:   registry,
		handlers:   handlers,
		summarizer: summarizer,
		maxOutput:  defaultMaxOutput,
	}, nil
}

// Execute runs a tool and returns its post-processed display string.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	logger := log.FromCtx(ctx)

	def, ok := e.registry.Find(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownTool, name)
	}
	if err := e.registry.Validate(name, args); err != nil {
		return "", err
	}

	logger.Info().Str("tool", name).Msg("executing tool")
	start := time.Now()

	res, err := e.handlers[def.Kind].Handle(ctx, name, args)
	if err != nil {
		logger.Warn().Err(err).Str("tool", name).Dur("took", time.Since(start)).Msg("tool failed")
		return "", classify(def, err)
	}
	logger.Debug().Str("tool", name).Dur("took", time.Since(start)).Msg("tool finished")

	return e.postProcess(ctx, def, res), nil
}

func (e *Executor) postProcess(ctx context.Context, def core.ToolDefinition, res Result) string {
	switch def.Kind {
	case core.KindWebSearch:
		return e.summarize(ctx, res.Text)
	case core.KindMemoryFetch:
		return FormatFacts(res.Facts)
	case core.KindMemorySave:
		return fmt.Sprintf("Memory saved successfully. ID: %s", res.FactID)
	case core.KindMemoryUpdate:
		return fmt.Sprintf("Memory updated successfully. New ID: %s (replaced %s)", res.FactID, res.ReplacedID)
	}

	if strings.TrimSpace(res.Text) == "" {
		return noOutput
	}
	return truncate(res.Text, e.maxOutput)
}

// summarize falls back to the raw text when the model is unavailable.
func (e *Executor) summarize(ctx context.Context, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return noOutput
	}
	if e.summarizer == nil {
		return truncate(raw, e.maxOutput)
	}
	summary, err := e.summarizer.Summarize(ctx, raw)
	if err != nil || strings.TrimSpace(summary) == "" {
		log.FromCtx(ctx).Warn().Err(err).Msg("search summary failed, using raw results")
		return truncate(raw, e.maxOutput)
	}
	return summary
}

// FormatFacts renders facts as "id | content" lines for the model.
func FormatFacts(facts []core.Fact) string {
	if len(facts) == 0 {
		return noMemories
	}
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, f.ID+" | "+f.Content)
	}
	return strings.Join(lines, "\n")
}

// classify keeps known failure kinds and tags everything else as an
// execution failure.
func classify(def core.ToolDefinition, err error) error {
	for _, known := range []error{
		core.ErrInvalidArguments,
		core.ErrMemoryNotFound,
		core.ErrDuplicateFact,
		core.ErrCapabilityUnavailable,
	} {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", def.Name, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", def.Name, core.ErrToolExecution, err)
}

// truncate keeps the head and the tail of long output.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	head := maxLen / 2
	tail := maxLen - head
	return string(runes[:head]) + "\n... [output truncated] ...\n" + string(runes[len(runes)-tail:])
}
