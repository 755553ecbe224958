package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/history"
	"github.com/sandevgo/lilybot/internal/service/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// scriptedLLM answers each call through the matching func; nil funcs mean
// "no tool", "{}" and a fixed reply.
type scriptedLLM struct {
	next  func(call int, msgs []core.Message, catalog []core.ToolDefinition) (string, error)
	args  func(call int, msgs []core.Message, def core.ToolDefinition) (json.RawMessage, error)
	reply func(msgs []core.Message) (string, error)

	nextCalls   int
	argsCalls   int
	catalogs    [][]core.ToolDefinition
	argPrompts  [][]core.Message
	finalPrompt []core.Message
}

func (s *scriptedLLM) NextAction(_ context.Context, msgs []core.Message, catalog []core.ToolDefinition) (string, error) {
	s.nextCalls++
	s.catalogs = append(s.catalogs, catalog)
	if s.next == nil {
		return "", nil
	}
	return s.next(s.nextCalls, msgs, catalog)
}

func (s *scriptedLLM) GenerateArguments(_ context.Context, msgs []core.Message, def core.ToolDefinition) (json.RawMessage, error) {
	s.argsCalls++
	s.argPrompts = append(s.argPrompts, msgs)
	if s.args == nil {
		return json.RawMessage(`{}`), nil
	}
	return s.args(s.argsCalls, msgs, def)
}

func (s *scriptedLLM) FinalReply(_ context.Context, msgs []core.Message) (string, error) {
	s.finalPrompt = msgs
	if s.reply == nil {
		return "Done.", nil
	}
	return s.reply(msgs)
}

type fakeStore struct {
	facts      []core.Fact
	searchErr  error
	addErr     error
	replaceErr []error
	added      []string
	replaced   []string
	searches   int
}

func (f *fakeStore) SimilaritySearch(context.Context, string, int) ([]core.Fact, error) {
	f.searches++
	return f.facts, f.searchErr
}

func (f *fakeStore) AddFact(_ context.Context, content string) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, content)
	return fmt.Sprintf("fact-%d", len(f.added)), nil
}

func (f *fakeStore) ReplaceFact(_ context.Context, id, content string) (string, error) {
	if len(f.replaceErr) > 0 {
		err := f.replaceErr[0]
		f.replaceErr = f.replaceErr[1:]
		if err != nil {
			return "", err
		}
	}
	f.replaced = append(f.replaced, id)
	return "fact-new", nil
}

type toolCounts map[string]int

type harness struct {
	llm   *scriptedLLM
	store *fakeStore
	calls toolCounts
	hist  *history.Manager
	orch  *Orchestrator
}

func newHarness(t *testing.T, profile Profile, llm *scriptedLLM, store *fakeStore) *harness {
	t.Helper()

	reg, err := tools.NewRegistry(tools.BuiltinCatalog()...)
	require.NoError(t, err)

	calls := toolCounts{}
	counted := func(name, out string) tools.Handler {
		return tools.Text(func(context.Context, json.RawMessage) (string, error) {
			calls[name]++
			return out, nil
		})
	}

	handlers := tools.MemoryHandlers(store)
	handlers[core.KindClock] = counted(tools.GetCurrentTime, "The current time is Saturday, 14 March 2026 09:30:00 UTC.")
	handlers[core.KindFileRead] = counted(tools.ReadFile, "file body")
	handlers[core.KindFileWrite] = counted(tools.WriteFile, "Successfully wrote 5 bytes to notes.txt")
	handlers[core.KindWebSearch] = counted(tools.SearchWeb, "1. Result\n   https://example.com\n   Snippet")

	exec, err := tools.NewExecutor(reg, handlers, nil)
	require.NoError(t, err)

	orch, err := New(Deps{LLM: llm, Tools: exec, Catalog: reg, Facts: store}, profile, Options{
		PrefetchLimit: 3,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return &harness{
		llm:   llm,
		store: store,
		calls: calls,
		hist:  history.NewManager("test", nil),
		orch:  orch,
	}
}

func (h *harness) process(t *testing.T, msg string, req core.Requester) string {
	t.Helper()
	reply, err := h.orch.Process(context.Background(), h.hist, msg, req)
	require.NoError(t, err)
	return reply
}

func roles(turns []core.Turn) []core.Role {
	out := make([]core.Role, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Role)
	}
	return out
}

func countRole(turns []core.Turn, role core.Role) int {
	n := 0
	for _, t := range turns {
		if t.Role == role {
			n++
		}
	}
	return n
}

func toolRecord(t *testing.T, turn core.Turn) core.ToolCallRecord {
	t.Helper()
	require.Equal(t, core.RoleSystem, turn.Role)
	var rec core.ToolCallRecord
	require.NoError(t, json.Unmarshal([]byte(turn.Content), &rec))
	return rec
}

func names(defs []core.ToolDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}

func hasMessage(msgs []core.Message, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

func chatbox() Profile {
	return ChatboxProfile(config.DefaultProfilesConfig().Chatbox)
}

func channel() Profile {
	return ChannelProfile(config.DefaultProfilesConfig().Channel)
}

func TestProcess_NoToolNeeded(t *testing.T) {
	llm := &scriptedLLM{reply: func([]core.Message) (string, error) { return "Hi there!", nil }}
	h := newHarness(t, channel(), llm, &fakeStore{})

	reply := h.process(t, "hello", core.Requester{ID: "7", Name: "Ann"})

	assert.Equal(t, "Hi there!", reply)
	turns := h.hist.Snapshot()
	assert.Equal(t, []core.Role{core.RoleUser, core.RoleAssistant}, roles(turns))
	assert.Equal(t, "Ann: hello", turns[0].Content)
	assert.Equal(t, 1, llm.nextCalls)
}

func TestProcess_BudgetStopsLoop(t *testing.T) {
	llm := &scriptedLLM{
		next: func(int, []core.Message, []core.ToolDefinition) (string, error) {
			return tools.GetCurrentTime, nil
		},
	}
	h := newHarness(t, channel(), llm, &fakeStore{})
	require.Equal(t, 3, h.orch.Profile().MaxToolCalls)

	h.process(t, "what time is it?", core.Requester{ID: "1"})

	turns := h.hist.Snapshot()
	assert.Equal(t, 3, countRole(turns, core.RoleSystem))
	assert.Equal(t, 1, countRole(turns, core.RoleAssistant))
	assert.Equal(t, 3, llm.nextCalls)
	assert.Equal(t, 3, h.calls[tools.GetCurrentTime])
}

func TestProcess_ToolTurnsAreRecords(t *testing.T) {
	llm := &scriptedLLM{
		next: func(call int, _ []core.Message, _ []core.ToolDefinition) (string, error) {
			if call == 1 {
				return tools.SearchWeb, nil
			}
			return "", nil
		},
		args: func(int, []core.Message, core.ToolDefinition) (json.RawMessage, error) {
			return json.RawMessage(`{"query":"go release"}`), nil
		},
	}
	h := newHarness(t, channel(), llm, &fakeStore{})

	h.process(t, "latest go release?", core.Requester{ID: "1"})

	turns := h.hist.Snapshot()
	require.Len(t, turns, 3)
	rec := toolRecord(t, turns[1])
	assert.Equal(t, tools.SearchWeb, rec.ToolName)
	assert.JSONEq(t, `{"query":"go release"}`, string(rec.Arguments))
	assert.Contains(t, rec.Result, "https://example.com")
	assert.Contains(t, llm.finalPrompt[len(llm.finalPrompt)-1].Content, `"tool_used"`)
}

func TestProcess_MalformedActionStopsWithoutTurn(t *testing.T) {
	llm := &scriptedLLM{
		next: func(int, []core.Message, []core.ToolDefinition) (string, error) {
			return "", fmt.Errorf("%w: no JSON object", core.ErrLLMProtocol)
		},
	}
	h := newHarness(t, channel(), llm, &fakeStore{})

	reply := h.process(t, "hello", core.Requester{ID: "1"})

	assert.NotEmpty(t, reply)
	assert.Equal(t, []core.Role{core.RoleUser, core.RoleAssistant}, roles(h.hist.Snapshot()))
	assert.Equal(t, 1, llm.nextCalls)
}

func TestProcess_ArgumentFailureRecordsErrorAndStops(t *testing.T) {
	llm := &scriptedLLM{
		next: func(int, []core.Message, []core.ToolDefinition) (string, error) {
			return tools.SearchWeb, nil
		},
		args: func(int, []core.Message, core.ToolDefinition) (json.RawMessage, error) {
			return json.RawMessage(`{"q":"missing field"}`), nil
		},
	}
	h := newHarness(t, channel(), llm, &fakeStore{})

	h.process(t, "search something", core.Requester{ID: "1"})

	turns := h.hist.Snapshot()
	require.Equal(t, 1, countRole(turns, core.RoleSystem))
	rec := toolRecord(t, turns[1])
	assert.True(t, strings.HasPrefix(rec.Result, "Error: "))
	assert.Contains(t, rec.Result, core.ErrInvalidArguments.Error())
	assert.Equal(t, 1, llm.nextCalls)
	assert.Zero(t, h.calls[tools.SearchWeb])
}

func TestProcess_AllowlistBlocksWriteFile(t *testing.T) {
	llm := &scriptedLLM{
		next: func(int, []core.Message, []core.ToolDefinition) (string, error) {
			return tools.WriteFile, nil
		},
	}
	h := newHarness(t, channel(), llm, &fakeStore{})

	h.process(t, "write hello to notes.txt", core.Requester{ID: "1"})

	assert.Zero(t, h.calls[tools.WriteFile])
	assert.Zero(t, llm.argsCalls)
	require.Len(t, llm.catalogs, 1)
	assert.Equal(t, []string{tools.GetCurrentTime, tools.SearchWeb}, names(llm.catalogs[0]))

	turns := h.hist.Snapshot()
	require.Equal(t, 1, countRole(turns, core.RoleSystem))
	rec := toolRecord(t, turns[1])
	assert.Equal(t, tools.WriteFile, rec.ToolName)
	assert.Contains(t, rec.Result, "not permitted")
}

func TestProcess_LoopHidesMemoryTools(t *testing.T) {
	llm := &scriptedLLM{}
	h := newHarness(t, chatbox(), llm, &fakeStore{})

	h.process(t, "hello", core.Requester{})

	require.Len(t, llm.catalogs, 2)
	loop, reconcile := names(llm.catalogs[0]), names(llm.catalogs[1])
	assert.NotContains(t, loop, tools.FetchMemory)
	assert.NotContains(t, loop, tools.SaveMemory)
	assert.Contains(t, loop, tools.UpdateMemory)
	assert.Contains(t, loop, tools.WriteFile)
	for _, n := range tools.MemoryTools {
		assert.Contains(t, reconcile, n)
	}
}

// loopUpdateProfile lets every memory tool into the tool loop.
func loopUpdateProfile() Profile {
	p := chatbox()
	p.LoopExcluded = nil
	p.RunMemoryReconcile = false
	return p
}

func updateOnce(call int, _ []core.Message, _ []core.ToolDefinition) (string, error) {
	if call == 1 {
		return tools.UpdateMemory, nil
	}
	return "", nil
}

func TestProcess_StaleIDRetriedOnce(t *testing.T) {
	store := &fakeStore{
		facts:      []core.Fact{{ID: "real-id", Content: "lives in Oslo"}},
		replaceErr: []error{fmt.Errorf("%w: stale", core.ErrMemoryNotFound), nil},
	}
	llm := &scriptedLLM{
		next: updateOnce,
		args: func(call int, _ []core.Message, _ core.ToolDefinition) (json.RawMessage, error) {
			if call == 1 {
				return json.RawMessage(`{"memory_id":"made-up","content":"lives in Bergen"}`), nil
			}
			return json.RawMessage(`{"memory_id":"real-id","content":"lives in Bergen"}`), nil
		},
	}
	h := newHarness(t, chatbox(), llm, store)

	h.process(t, "I moved to Bergen", core.Requester{})

	assert.Equal(t, 2, llm.argsCalls)
	assert.False(t, hasMessage(llm.argPrompts[0], "RETRY CONTEXT:"))
	assert.True(t, hasMessage(llm.argPrompts[1], "RETRY CONTEXT:"))
	assert.True(t, hasMessage(llm.argPrompts[1], "real-id"))
	assert.Equal(t, []string{"real-id"}, store.replaced)

	turns := h.hist.Snapshot()
	require.Equal(t, 1, countRole(turns, core.RoleSystem))
	rec := toolRecord(t, turns[1])
	assert.Equal(t, "Memory updated successfully. New ID: fact-new (replaced real-id)", rec.Result)
}

func TestProcess_StaleIDTwiceRecordsSingleFailure(t *testing.T) {
	stale := fmt.Errorf("%w: stale", core.ErrMemoryNotFound)
	store := &fakeStore{replaceErr: []error{stale, stale, stale}}
	llm := &scriptedLLM{
		next: updateOnce,
		args: func(int, []core.Message, core.ToolDefinition) (json.RawMessage, error) {
			return json.RawMessage(`{"memory_id":"nope","content":"x"}`), nil
		},
	}
	h := newHarness(t, loopUpdateProfile(), llm, store)

	h.process(t, "update it", core.Requester{})

	assert.Equal(t, 2, llm.argsCalls)
	assert.Equal(t, 1, llm.nextCalls)
	turns := h.hist.Snapshot()
	require.Equal(t, 1, countRole(turns, core.RoleSystem))
	assert.Contains(t, toolRecord(t, turns[1]).Result, core.ErrMemoryNotFound.Error())
	assert.Len(t, store.replaceErr, 1)
}

func TestProcess_NonUpdateErrorNotRetried(t *testing.T) {
	store := &fakeStore{addErr: fmt.Errorf("%w: fact-1", core.ErrDuplicateFact)}
	llm := &scriptedLLM{
		next: func(int, []core.Message, []core.ToolDefinition) (string, error) {
			return tools.SaveMemory, nil
		},
		args: func(int, []core.Message, core.ToolDefinition) (json.RawMessage, error) {
			return json.RawMessage(`{"content":"likes tea"}`), nil
		},
	}
	h := newHarness(t, loopUpdateProfile(), llm, store)

	h.process(t, "I like tea", core.Requester{})

	assert.Equal(t, 1, llm.argsCalls)
	assert.Equal(t, 1, countRole(h.hist.Snapshot(), core.RoleSystem))
}

func TestProcess_ReconcileDuplicateIsFailureTurn(t *testing.T) {
	store := &fakeStore{addErr: fmt.Errorf("%w: existing fact-9", core.ErrDuplicateFact)}
	llm := &scriptedLLM{
		next: func(call int, _ []core.Message, _ []core.ToolDefinition) (string, error) {
			if call == 2 {
				return tools.SaveMemory, nil
			}
			return "", nil
		},
		args: func(int, []core.Message, core.ToolDefinition) (json.RawMessage, error) {
			return json.RawMessage(`{"content":"favorite color: blue"}`), nil
		},
	}
	h := newHarness(t, chatbox(), llm, store)

	h.process(t, "My favorite color is blue.", core.Requester{})

	assert.Equal(t, 2, llm.argsCalls)
	assert.False(t, hasMessage(llm.argPrompts[0], "Previous attempts failed"))
	assert.True(t, hasMessage(llm.argPrompts[1], "Previous attempts failed"))
	assert.Empty(t, store.added)

	turns := h.hist.Snapshot()
	require.Equal(t, 1, countRole(turns, core.RoleSystem))
	rec := toolRecord(t, turns[1])
	assert.Contains(t, rec.Result, "failed after 2 attempts")
	assert.Contains(t, rec.Result, core.ErrDuplicateFact.Error())
}

func TestProcess_ReconcileRetriesUntilValid(t *testing.T) {
	store := &fakeStore{}
	llm := &scriptedLLM{
		next: func(call int, _ []core.Message, _ []core.ToolDefinition) (string, error) {
			if call == 2 {
				return tools.SaveMemory, nil
			}
			return "", nil
		},
		args: func(call int, _ []core.Message, _ core.ToolDefinition) (json.RawMessage, error) {
			if call == 1 {
				return nil, fmt.Errorf("%w: not json", core.ErrLLMProtocol)
			}
			return json.RawMessage(`{"content":"has a cat named Miso"}`), nil
		},
	}
	h := newHarness(t, chatbox(), llm, store)

	h.process(t, "My cat is called Miso", core.Requester{})

	assert.Equal(t, []string{"has a cat named Miso"}, store.added)
	turns := h.hist.Snapshot()
	require.Equal(t, 1, countRole(turns, core.RoleSystem))
	assert.Equal(t, "Memory saved successfully. ID: fact-1", toolRecord(t, turns[1]).Result)
}

func TestProcess_ReconcileNoopAppendsNothing(t *testing.T) {
	llm := &scriptedLLM{}
	h := newHarness(t, chatbox(), llm, &fakeStore{})

	h.process(t, "thanks!", core.Requester{})

	assert.Equal(t, 2, llm.nextCalls)
	assert.Equal(t, []core.Role{core.RoleUser, core.RoleAssistant}, roles(h.hist.Snapshot()))
}

func TestProcess_ReconcileIgnoresNonMemoryChoice(t *testing.T) {
	llm := &scriptedLLM{
		next: func(call int, _ []core.Message, _ []core.ToolDefinition) (string, error) {
			if call == 2 {
				return tools.WriteFile, nil
			}
			return "", nil
		},
	}
	h := newHarness(t, chatbox(), llm, &fakeStore{})

	h.process(t, "hello", core.Requester{})

	assert.Zero(t, llm.argsCalls)
	assert.Zero(t, h.calls[tools.WriteFile])
	assert.Equal(t, 0, countRole(h.hist.Snapshot(), core.RoleSystem))
}

func TestProcess_PrefetchUnavailableMatchesNoFacts(t *testing.T) {
	run := func(store *fakeStore) ([]core.Turn, []core.Message) {
		llm := &scriptedLLM{}
		h := newHarness(t, chatbox(), llm, store)
		h.process(t, "what do you know about me?", core.Requester{})
		return h.hist.Snapshot(), llm.finalPrompt
	}

	down := &fakeStore{searchErr: fmt.Errorf("%w: embedder down", core.ErrCapabilityUnavailable)}
	downTurns, downPrompt := run(down)
	emptyTurns, emptyPrompt := run(&fakeStore{})

	require.Equal(t, len(emptyTurns), len(downTurns))
	for i := range emptyTurns {
		assert.Equal(t, emptyTurns[i].Role, downTurns[i].Role)
		assert.Equal(t, emptyTurns[i].Content, downTurns[i].Content)
	}
	assert.Equal(t, emptyPrompt, downPrompt)
	assert.Equal(t, 1, down.searches)
}

func TestProcess_FinalReplyFailureApologizes(t *testing.T) {
	llm := &scriptedLLM{
		reply: func([]core.Message) (string, error) {
			return "", fmt.Errorf("%w: all keys exhausted", core.ErrCapabilityUnavailable)
		},
	}
	h := newHarness(t, chatbox(), llm, &fakeStore{})

	reply := h.process(t, "hello", core.Requester{})

	assert.Equal(t, apology, reply)
	turns := h.hist.Snapshot()
	assert.Equal(t, 1, countRole(turns, core.RoleAssistant))
	assert.Equal(t, apology, turns[len(turns)-1].Content)
}

func TestProcess_ExactlyOneAssistantTurnEachTime(t *testing.T) {
	llm := &scriptedLLM{
		next: func(call int, _ []core.Message, _ []core.ToolDefinition) (string, error) {
			if call%3 == 1 {
				return tools.GetCurrentTime, nil
			}
			return "", nil
		},
	}
	h := newHarness(t, chatbox(), llm, &fakeStore{})

	for i := 0; i < 3; i++ {
		assert.NotEmpty(t, h.process(t, fmt.Sprintf("message %d", i), core.Requester{}))
		assert.Equal(t, i+1, countRole(h.hist.Snapshot(), core.RoleAssistant))
	}
}

type brokenTranscript struct{ appended int }

func (b *brokenTranscript) Append(context.Context, core.Role, string) error {
	b.appended++
	return fmt.Errorf("%w: disk full", core.ErrHistory)
}

func (b *brokenTranscript) Snapshot() []core.Turn { return nil }

func TestProcess_HistoryFailureIsReturned(t *testing.T) {
	llm := &scriptedLLM{}
	h := newHarness(t, chatbox(), llm, &fakeStore{})

	_, err := h.orch.Process(context.Background(), &brokenTranscript{}, "hello", core.Requester{})

	assert.True(t, errors.Is(err, core.ErrHistory))
	assert.Zero(t, llm.nextCalls)
}

func TestScenario_SavesFavoriteColor(t *testing.T) {
	store := &fakeStore{}
	llm := &scriptedLLM{
		next: func(call int, msgs []core.Message, _ []core.ToolDefinition) (string, error) {
			if call == 2 && hasMessage(msgs, "save_memory") {
				return tools.SaveMemory, nil
			}
			return "", nil
		},
		args: func(int, []core.Message, core.ToolDefinition) (json.RawMessage, error) {
			return json.RawMessage(`{"content":"favorite color: blue"}`), nil
		},
		reply: func(msgs []core.Message) (string, error) {
			if hasMessage(msgs, "Memory saved successfully") {
				return "Blue, noted! I'll remember that.", nil
			}
			return "What is your favorite color?", nil
		},
	}
	h := newHarness(t, chatbox(), llm, store)

	reply := h.process(t, "My favorite color is blue.", core.Requester{})

	assert.Equal(t, []string{"favorite color: blue"}, store.added)
	assert.Equal(t, "Blue, noted! I'll remember that.", reply)
	assert.Equal(t,
		[]core.Role{core.RoleUser, core.RoleSystem, core.RoleAssistant},
		roles(h.hist.Snapshot()),
	)
}

func TestScenario_RecallsFromPrefetch(t *testing.T) {
	store := &fakeStore{facts: []core.Fact{{ID: "f1", Content: "favorite color: blue", Score: 0.88}}}
	llm := &scriptedLLM{
		reply: func(msgs []core.Message) (string, error) {
			last := msgs[len(msgs)-1]
			if last.Role == core.RoleSystem &&
				strings.HasPrefix(last.Content, "The following information was retrieved from memory") &&
				strings.Contains(last.Content, "- favorite color: blue") {
				return "Your favorite color is blue.", nil
			}
			return "I don't know yet.", nil
		},
	}
	h := newHarness(t, chatbox(), llm, store)

	reply := h.process(t, "What's my favorite color?", core.Requester{})

	assert.Contains(t, reply, "blue")
	for _, turn := range h.hist.Snapshot() {
		assert.NotContains(t, turn.Content, tools.FetchMemory)
	}
}

func TestNew_RejectsUnknownAllowlistName(t *testing.T) {
	reg, err := tools.NewRegistry(tools.BuiltinCatalog()...)
	require.NoError(t, err)

	p := channel()
	p.Allowlist = []string{tools.SearchWeb, "launch_rockets"}
	_, err = New(Deps{LLM: &scriptedLLM{}, Catalog: reg}, p, Options{})
	assert.ErrorIs(t, err, core.ErrUnknownTool)

	p = channel()
	p.MaxToolCalls = 0
	_, err = New(Deps{LLM: &scriptedLLM{}, Catalog: reg}, p, Options{})
	assert.Error(t, err)
}
