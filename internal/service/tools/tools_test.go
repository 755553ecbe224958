package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	facts      []core.Fact
	searchErr  error
	addErr     error
	replaceErr error
	added      []string
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, _ int) ([]core.Fact, error) {
	return f.facts, f.searchErr
}

func (f *fakeStore) AddFact(_ context.Context, content string) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, content)
	return "new-1", nil
}

func (f *fakeStore) ReplaceFact(_ context.Context, id, _ string) (string, error) {
	if f.replaceErr != nil {
		return "", f.replaceErr
	}
	return "new-2", nil
}

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.calls++
	return f.out, f.err
}

func textHandler(out string, err error) Handler {
	return Text(func(context.Context, json.RawMessage) (string, error) { return out, err })
}

func newTestExecutor(t *testing.T, store *fakeStore, sum Summarizer, overrides map[core.ToolKind]Handler) *Executor {
	t.Helper()
	reg, err := NewRegistry(BuiltinCatalog()...)
	require.NoError(t, err)

	handlers := map[core.ToolKind]Handler{
		core.KindClock:     textHandler("The current time is noon.", nil),
		core.KindFileRead:  textHandler("file body", nil),
		core.KindFileWrite: textHandler("", nil),
		core.KindWebSearch: textHandler("1. Result\n   https://example.com\n   snippet", nil),
	}
	for k, h := range MemoryHandlers(store) {
		handlers[k] = h
	}
	for k, h := range overrides {
		handlers[k] = h
	}

	exec, err := NewExecutor(reg, handlers, sum)
	require.NoError(t, err)
	return exec
}

func TestNewRegistry(t *testing.T) {
	t.Run("builtin catalog is valid", func(t *testing.T) {
		reg, err := NewRegistry(BuiltinCatalog()...)
		require.NoError(t, err)
		assert.Equal(t, []string{GetCurrentTime, ReadFile, WriteFile, SearchWeb, FetchMemory, SaveMemory, UpdateMemory}, reg.Names())
	})

	tests := []struct {
		name string
		defs []core.ToolDefinition
	}{
		{name: "duplicate", defs: []core.ToolDefinition{
			{Name: "a", Kind: core.KindClock}, {Name: "a", Kind: core.KindClock},
		}},
		{name: "unknown kind", defs: []core.ToolDefinition{{Name: "a", Kind: "teleport"}}},
		{name: "empty name", defs: []core.ToolDefinition{{Kind: core.KindClock}}},
		{name: "undeclared required", defs: []core.ToolDefinition{
			{Name: "a", Kind: core.KindClock, Schema: json.RawMessage(`{"type":"object","required":["x"]}`)},
		}},
		{name: "not an object schema", defs: []core.ToolDefinition{
			{Name: "a", Kind: core.KindClock, Schema: json.RawMessage(`{"type":"string"}`)},
		}},
		{name: "malformed property", defs: []core.ToolDefinition{
			{Name: "a", Kind: core.KindClock, Schema: json.RawMessage(`{"type":"object","properties":{"x":{"type":7}}}`)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs...)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_Subset(t *testing.T) {
	reg, err := NewRegistry(BuiltinCatalog()...)
	require.NoError(t, err)

	names := func(defs []core.ToolDefinition) []string {
		var out []string
		for _, d := range defs {
			out = append(out, d.Name)
		}
		return out
	}

	all, err := reg.Subset(nil, MemoryTools)
	require.NoError(t, err)
	assert.Equal(t, []string{GetCurrentTime, ReadFile, WriteFile, SearchWeb}, names(all))

	restricted, err := reg.Subset([]string{FetchMemory, SearchWeb, GetCurrentTime}, MemoryTools)
	require.NoError(t, err)
	assert.Equal(t, []string{GetCurrentTime, SearchWeb}, names(restricted))

	_, err = reg.Subset([]string{"launch_rockets"}, nil)
	assert.ErrorIs(t, err, core.ErrUnknownTool)
}

func TestNewExecutor_MissingHandler(t *testing.T) {
	reg, err := NewRegistry(BuiltinCatalog()...)
	require.NoError(t, err)

	_, err = NewExecutor(reg, MemoryHandlers(&fakeStore{}), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(core.KindWebSearch))
}

func TestExecutor_Execute(t *testing.T) {
	facts := []core.Fact{{ID: "f1", Content: "favorite color: blue"}, {ID: "f2", Content: "owns a cat"}}

	tests := []struct {
		name    string
		store   *fakeStore
		sum     *fakeSummarizer
		tool    string
		args    string
		want    string
		wantErr error
	}{
		{name: "clock passes through", tool: GetCurrentTime, args: `{}`, want: "The current time is noon."},
		{name: "empty output", tool: WriteFile, args: `{"file_path":"a","content":"b"}`, want: noOutput},
		{name: "search is summarized", tool: SearchWeb, args: `{"query":"go"}`, sum: &fakeSummarizer{out: "- Go is a language"}, want: "- Go is a language"},
		{name: "search summary failure falls back", tool: SearchWeb, args: `{"query":"go"}`, sum: &fakeSummarizer{err: errors.New("down")}, want: "1. Result\n   https://example.com\n   snippet"},
		{name: "fetch formats id pairs", tool: FetchMemory, args: `{"query":"color"}`, store: &fakeStore{facts: facts}, want: "f1 | favorite color: blue\nf2 | owns a cat"},
		{name: "fetch no results", tool: FetchMemory, args: `{"query":"color"}`, want: noMemories},
		{name: "save reports id", tool: SaveMemory, args: `{"content":"likes tea"}`, want: "Memory saved successfully. ID: new-1"},
		{name: "update reports new id", tool: UpdateMemory, args: `{"memory_id":"f1","content":"x"}`, want: "Memory updated successfully. New ID: new-2 (replaced f1)"},
		{name: "unknown tool", tool: "launch_rockets", args: `{}`, wantErr: core.ErrUnknownTool},
		{name: "missing required", tool: SaveMemory, args: `{}`, wantErr: core.ErrInvalidArguments},
		{name: "wrong type", tool: SaveMemory, args: `{"content":42}`, wantErr: core.ErrInvalidArguments},
		{name: "not an object", tool: SaveMemory, args: `"likes tea"`, wantErr: core.ErrInvalidArguments},
		{name: "stale id", tool: UpdateMemory, args: `{"memory_id":"gone","content":"x"}`, store: &fakeStore{replaceErr: core.ErrMemoryNotFound}, wantErr: core.ErrMemoryNotFound},
		{name: "duplicate fact", tool: SaveMemory, args: `{"content":"x"}`, store: &fakeStore{addErr: fmt.Errorf("%w: f1", core.ErrDuplicateFact)}, wantErr: core.ErrDuplicateFact},
		{name: "store down", tool: FetchMemory, args: `{"query":"x"}`, store: &fakeStore{searchErr: core.ErrCapabilityUnavailable}, wantErr: core.ErrCapabilityUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = &fakeStore{}
			}
			var sum Summarizer
			if tt.sum != nil {
				sum = tt.sum
			}
			exec := newTestExecutor(t, store, sum, nil)

			got, err := exec.Execute(context.Background(), tt.tool, json.RawMessage(tt.args))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const forecastSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "units": {"type": "string", "enum": ["metric", "imperial"]},
    "location": {
      "type": "object",
      "properties": {"lat": {"type": "number"}, "lon": {"type": "number"}},
      "required": ["lat", "lon"]
    },
    "days": {"type": "array", "items": {"type": "integer"}}
  },
  "required": ["location"]
}`

func TestExecutor_ValidatesRemoteSchemas(t *testing.T) {
	reg, err := NewRegistry(core.ToolDefinition{
		Name:   "weather_get_forecast",
		Kind:   core.KindMCP,
		Schema: json.RawMessage(forecastSchema),
	})
	require.NoError(t, err)
	exec, err := NewExecutor(reg, map[core.ToolKind]Handler{core.KindMCP: textHandler("sunny", nil)}, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		args string
		ok   bool
	}{
		{name: "valid", args: `{"location":{"lat":52.2,"lon":21.0},"units":"metric","days":[1,2]}`, ok: true},
		{name: "extra keys tolerated", args: `{"location":{"lat":1,"lon":2},"note":"hi"}`, ok: true},
		{name: "enum violated", args: `{"location":{"lat":1,"lon":2},"units":"kelvin"}`},
		{name: "nested required missing", args: `{"location":{"lat":1}}`},
		{name: "nested wrong type", args: `{"location":{"lat":"north","lon":2}}`},
		{name: "array item wrong type", args: `{"location":{"lat":1,"lon":2},"days":[1.5]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := exec.Execute(context.Background(), "weather_get_forecast", json.RawMessage(tt.args))
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, "sunny", out)
				return
			}
			assert.ErrorIs(t, err, core.ErrInvalidArguments)
		})
	}
}

func TestExecutor_WrapsUnknownFailures(t *testing.T) {
	exec := newTestExecutor(t, &fakeStore{}, nil, map[core.ToolKind]Handler{
		core.KindFileRead: textHandler("", errors.New("permission denied")),
	})

	_, err := exec.Execute(context.Background(), ReadFile, json.RawMessage(`{"file_path":"x"}`))
	assert.ErrorIs(t, err, core.ErrToolExecution)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestExecutor_TruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("a", 3000) + strings.Repeat("z", 3000)
	exec := newTestExecutor(t, &fakeStore{}, nil, map[core.ToolKind]Handler{
		core.KindFileRead: textHandler(long, nil),
	})

	got, err := exec.Execute(context.Background(), ReadFile, json.RawMessage(`{"file_path":"x"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "aaaa"))
	assert.True(t, strings.HasSuffix(got, "zzzz"))
	assert.Contains(t, got, "[output truncated]")
	assert.Less(t, len(got), len(long))
}

func TestFormatFacts(t *testing.T) {
	assert.Equal(t, noMemories, FormatFacts(nil))
	assert.Equal(t, "a | b", FormatFacts([]core.Fact{{ID: "a", Content: "b"}}))
}
