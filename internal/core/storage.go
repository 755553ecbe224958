package core

import (
	"context"
	"time"
)

type StoredFact struct {
	ID        string
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

type FactRepository interface {
	Insert(ctx context.Context, content string, embedding []float32) (string, error)
	// Replace deletes id and inserts content under a new id in one transaction.
	Replace(ctx context.Context, id, content string, embedding []float32) (string, error)
	Get(ctx context.Context, id string) (StoredFact, error)
	Delete(ctx context.Context, id string) error
	// Nearest returns up to k facts ranked by cosine similarity to embedding,
	// best first, with Score set.
	Nearest(ctx context.Context, embedding []float32, k int) ([]Fact, error)
}

type TranscriptRepository interface {
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	Turns(ctx context.Context, sessionID string) ([]Turn, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
