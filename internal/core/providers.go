package core

import "context"

type ChatRequest struct {
	Messages []Message
	// JSON asks the provider for a single JSON object as the reply.
	JSON      bool
	MaxTokens int
}

type ChatProvider interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

type Embedder interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	EncodePassage(ctx context.Context, text string) ([]float32, error)
}
