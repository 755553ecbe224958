package config

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lilybot/pkg/log"
)

// EmbeddingConfig points at any OpenAI-compatible /v1/embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL string `env:"LILY_EMBEDDING_BASE_URL" envDefault:"https://api.openai.com"`
	Model   string `env:"LILY_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	APIKey  string `env:"LILY_EMBEDDING_API_KEY"`
	// Width of the model's vectors; fixes the column width of the KNN index.
	Dimensions int `env:"LILY_EMBEDDING_DIMENSIONS" envDefault:"1536"`
	// Prefixes for asymmetric models such as e5 ("query: ", "passage: ").
	QueryPrefix   string `env:"LILY_EMBEDDING_QUERY_PREFIX"`
	PassagePrefix string `env:"LILY_EMBEDDING_PASSAGE_PREFIX"`
}

func LoadEmbeddingConfig() (*EmbeddingConfig, error) {
	c := &EmbeddingConfig{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse embedding config: %w", err)
	}
	return c, nil
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	c, err := LoadEmbeddingConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse embedding config")
	}
	return c
}
