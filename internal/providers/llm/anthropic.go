package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sandevgo/lilybot/internal/core"
)

type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *Anthropic {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (a *Anthropic) Complete(ctx context.Context, req core.ChatRequest) (string, error) {
	system, messages := toAnthropicMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no text content (stop reason %s)", core.ErrLLMProtocol, msg.StopReason)
	}
	return sb.String(), nil
}

// toAnthropicMessages lifts leading system messages into the system prompt.
// Later system messages (tool records, directives) become user turns, and
// adjacent turns of the same role are merged so roles alternate.
func toAnthropicMessages(msgs []core.Message) (string, []anthropic.MessageParam) {
	var system []string
	i := 0
	for ; i < len(msgs) && msgs[i].Role == core.RoleSystem; i++ {
		system = append(system, msgs[i].Content)
	}

	type turn struct {
		role  core.Role
		parts []string
	}
	var turns []turn
	for _, m := range msgs[i:] {
		role, content := m.Role, m.Content
		if role == core.RoleSystem {
			role, content = core.RoleUser, "[system] "+content
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].parts = append(turns[n-1].parts, content)
			continue
		}
		turns = append(turns, turn{role: role, parts: []string{content}})
	}

	if len(turns) == 0 || turns[0].role != core.RoleUser {
		turns = append([]turn{{role: core.RoleUser, parts: []string{"(conversation start)"}}}, turns...)
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == core.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return strings.Join(system, "\n\n"), out
}
