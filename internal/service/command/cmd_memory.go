package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/lilybot/internal/core"
)

const memoryResults = 5

type MemoryCommand struct {
	facts     FactSearcher
	formatter *ResponseFormatter
}

func NewMemoryCommand(facts FactSearcher) core.Command {
	return &MemoryCommand{facts: facts, formatter: NewResponseFormatter()}
}

func (c *MemoryCommand) Name() string {
	return "memory"
}

func (c *MemoryCommand) Description() string {
	return "Search long-term memory"
}

func (c *MemoryCommand) Usage() string {
	return "/memory <query>"
}

func (c *MemoryCommand) Execute(ctx context.Context, _ string, args []string) (string, error) {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return c.formatter.Usage(c.Usage()), nil
	}

	facts, err := c.facts.SimilaritySearch(ctx, query, memoryResults)
	if err != nil {
		return "", err
	}
	if len(facts) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Memory"),
			c.formatter.Label("Query", query),
			"Nothing relevant stored yet.",
		), nil
	}

	items := make([]string, len(facts))
	for i, f := range facts {
		items[i] = fmt.Sprintf("%s (`%.2f`, id `%s`)", f.Content, f.Score, f.ID)
	}
	return c.formatter.Combine(
		c.formatter.Info("Memory"),
		c.formatter.Label("Query", query),
		c.formatter.List(items),
	), nil
}
