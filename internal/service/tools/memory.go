package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/lilybot/internal/core"
)

type FactStore interface {
	SimilaritySearch(ctx context.Context, query string, topK int) ([]core.Fact, error)
	AddFact(ctx context.Context, content string) (string, error)
	ReplaceFact(ctx context.Context, id, content string) (string, error)
}

const fetchLimit = 5

// MemoryHandlers returns the handlers for the three memory kinds.
func MemoryHandlers(store FactStore) map[core.ToolKind]Handler {
	return map[core.ToolKind]Handler{
		core.KindMemoryFetch: HandlerFunc(func(ctx context.Context, _ string, args json.RawMessage) (Result, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return Result{}, fmt.Errorf("%w: %w", core.ErrInvalidArguments, err)
			}
			facts, err := store.SimilaritySearch(ctx, in.Query, fetchLimit)
			if err != nil {
				return Result{}, err
			}
			return Result{Facts: facts}, nil
		}),
		core.KindMemorySave: HandlerFunc(func(ctx context.Context, _ string, args json.RawMessage) (Result, error) {
			var in struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return Result{}, fmt.Errorf("%w: %w", core.ErrInvalidArguments, err)
			}
			id, err := store.AddFact(ctx, in.Content)
			if err != nil {
				return Result{}, fmt.Errorf("memory not saved: %w", err)
			}
			return Result{FactID: id}, nil
		}),
		core.KindMemoryUpdate: HandlerFunc(func(ctx context.Context, _ string, args json.RawMessage) (Result, error) {
			var in struct {
				ID      string `json:"memory_id"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return Result{}, fmt.Errorf("%w: %w", core.ErrInvalidArguments, err)
			}
			newID, err := store.ReplaceFact(ctx, in.ID, in.Content)
			if err != nil {
				return Result{}, fmt.Errorf("memory replacement failed for ID %q: %w", in.ID, err)
			}
			return Result{FactID: newID, ReplacedID: in.ID}, nil
		}),
	}
}
