package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/lilybot/internal/core"
)

type ToolsCommand struct {
	tools     ToolLister
	formatter *ResponseFormatter
}

func NewToolsCommand(tools ToolLister) core.Command {
	return &ToolsCommand{tools: tools, formatter: NewResponseFormatter()}
}

func (c *ToolsCommand) Name() string {
	return "tools"
}

func (c *ToolsCommand) Description() string {
	return "Show the tools available in this chat"
}

func (c *ToolsCommand) Usage() string {
	return "/tools"
}

func (c *ToolsCommand) Execute(context.Context, string, []string) (string, error) {
	defs := c.tools.Tools()
	if len(defs) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Tools"),
			"No tools are enabled.",
		), nil
	}

	items := make([]string, len(defs))
	for i, d := range defs {
		items[i] = fmt.Sprintf("**%s** %s", d.Name, oneLine(d.Description, 120))
	}
	return c.formatter.Combine(
		c.formatter.Info("Tools"),
		c.formatter.Label("Enabled", fmt.Sprintf("%d", len(defs))),
		c.formatter.List(items),
	), nil
}

func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLen {
		s = s[:maxLen-3] + "..."
	}
	return s
}
