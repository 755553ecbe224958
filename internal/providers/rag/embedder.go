package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/pkg/log"
	"github.com/sandevgo/lilybot/pkg/retry"
)

const defaultTimeout = 30 * time.Second

// Embedder calls an OpenAI-compatible /v1/embeddings endpoint.
type Embedder struct {
	client        *http.Client
	baseURL       string
	apiKey        string
	model         string
	queryPrefix   string
	passagePrefix string
	retrier       *retry.Retrier
}

func NewEmbedder(cfg *config.EmbeddingConfig) *Embedder {
	return &Embedder{
		client:        &http.Client{Timeout: defaultTimeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		queryPrefix:   cfg.QueryPrefix,
		passagePrefix: cfg.PassagePrefix,
		retrier:       retry.NewDefaultRetrier(),
	}
}

func (e *Embedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embed(ctx, e.queryPrefix+text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	return vec, nil
}

func (e *Embedder) EncodePassage(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embed(ctx, e.passagePrefix+text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode passage: %w", err)
	}
	return vec, nil
}

func (e *Embedder) embed(ctx context.Context, input string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{"model": e.model, "input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var vec []float32
	err = e.retrier.Do(ctx, func() error {
		v, err := e.request(ctx, body)
		if err != nil {
			log.FromCtx(ctx).Debug().Err(err).Msg("embedding request failed")
			return err
		}
		vec = v
		return nil
	})
	return vec, err
}

func (e *Embedder) request(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(data), 200))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode: %w", err))
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, retry.Permanent(fmt.Errorf("empty embedding in response"))
	}
	return result.Data[0].Embedding, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
