package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/log"
	"github.com/sandevgo/lilybot/pkg/retry"
)

// Client exposes the model operations the orchestrator needs on top of a
// rotating credential pool.
type Client struct {
	pool      *KeyPool
	retrier   *retry.Retrier
	maxTokens int
}

func NewClient(pool *KeyPool, maxTokens int) *Client {
	cfg := retry.NewDefaultConfig()
	// At least one attempt per credential before giving up.
	if pool.Size() > cfg.MaxRetries {
		cfg.MaxRetries = pool.Size()
	}
	return &Client{
		pool:      pool,
		retrier:   retry.NewRetrier(cfg),
		maxTokens: maxTokens,
	}
}

// NextAction asks which tool to run next. It returns "" when the model
// chooses no tool. The name is not checked against catalog; callers reject
// names they do not permit.
func (c *Client) NextAction(ctx context.Context, msgs []core.Message, catalog []core.ToolDefinition) (string, error) {
	if len(catalog) == 0 {
		return "", nil
	}

	prompt := append(cloneMessages(msgs), core.SystemMessage(nextActionPrompt(catalog)))
	out, err := c.complete(ctx, core.ChatRequest{Messages: prompt, JSON: true, MaxTokens: 200})
	if err != nil {
		return "", err
	}
	return parseToolChoice(out)
}

// GenerateArguments asks for a JSON object of arguments for def.
func (c *Client) GenerateArguments(ctx context.Context, msgs []core.Message, def core.ToolDefinition) (json.RawMessage, error) {
	prompt := append(cloneMessages(msgs), core.SystemMessage(argumentsPrompt(def)))
	out, err := c.complete(ctx, core.ChatRequest{Messages: prompt, JSON: true, MaxTokens: c.maxTokens})
	if err != nil {
		return nil, err
	}

	raw, err := extractJSONObject(out)
	if err != nil {
		return nil, fmt.Errorf("arguments for %s: %w", def.Name, err)
	}
	return raw, nil
}

func (c *Client) FinalReply(ctx context.Context, msgs []core.Message) (string, error) {
	out, err := c.complete(ctx, core.ChatRequest{Messages: msgs, MaxTokens: c.maxTokens})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty reply", core.ErrLLMProtocol)
	}
	return out, nil
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	out, err := c.complete(ctx, core.ChatRequest{
		Messages:  []core.Message{core.SystemMessage(summarizePrompt), core.UserMessage(text)},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) complete(ctx context.Context, req core.ChatRequest) (string, error) {
	logger := log.FromCtx(ctx)

	var out string
	err := c.retrier.Do(ctx, func() error {
		res, err := c.pool.Next().Complete(ctx, req)
		if err != nil {
			if errors.Is(err, core.ErrLLMProtocol) || !retryable(err) {
				return retry.Permanent(err)
			}
			logger.Warn().Err(err).Msg("llm request failed, rotating credential")
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrLLMProtocol) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", core.ErrCapabilityUnavailable, err)
	}
	return out, nil
}

func parseToolChoice(out string) (string, error) {
	raw, err := extractJSONObject(out)
	if err != nil {
		return "", err
	}

	var choice struct {
		ActionType string  `json:"action_type"`
		ToolName   *string `json:"tool_name"`
	}
	if err := json.Unmarshal(raw, &choice); err != nil {
		return "", fmt.Errorf("%w: tool choice: %w", core.ErrLLMProtocol, err)
	}
	if choice.ActionType != "" && choice.ActionType != "tool_choice" {
		return "", fmt.Errorf("%w: unexpected action_type %q", core.ErrLLMProtocol, choice.ActionType)
	}
	if choice.ToolName == nil {
		return "", nil
	}

	name := strings.TrimSpace(*choice.ToolName)
	switch strings.ToLower(name) {
	case "", "null", "none":
		return "", nil
	}
	return name, nil
}

// extractJSONObject tolerates code fences and prose around a single object.
func extractJSONObject(out string) (json.RawMessage, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in %q", core.ErrLLMProtocol, clip(out, 120))
	}

	raw := json.RawMessage(out[start : end+1])
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON object: %w", core.ErrLLMProtocol, err)
	}
	return raw, nil
}

func cloneMessages(msgs []core.Message) []core.Message {
	out := make([]core.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
