package llm

import (
	"fmt"
	"strings"

	"github.com/sandevgo/lilybot/internal/core"
)

const summarizePrompt = "Summarize the following web search results so they can answer the user's question. " +
	"Keep names, numbers, dates and URLs that matter. Use at most 8 short bullet points."

func nextActionPrompt(catalog []core.ToolDefinition) string {
	var sb strings.Builder
	sb.WriteString("Decide whether a tool is needed to continue answering the user.\n")
	sb.WriteString("Look at the tool results already in the conversation; do not repeat a call that already succeeded.\n\n")
	sb.WriteString("Available tools:\n")
	for _, t := range catalog {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
		if t.Instruction != "" {
			fmt.Fprintf(&sb, "  When to use: %s\n", t.Instruction)
		}
	}
	sb.WriteString("\nRespond with only a JSON object, no prose:\n")
	sb.WriteString(`{"action_type": "tool_choice", "tool_name": "<one of the tools above, or null if no tool is needed>"}`)
	return sb.String()
}

func argumentsPrompt(def core.ToolDefinition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are calling the tool %q.\n", def.Name)
	fmt.Fprintf(&sb, "Description: %s\n", def.Description)
	if def.Instruction != "" {
		fmt.Fprintf(&sb, "Instructions: %s\n", def.Instruction)
	}
	schema := string(def.Schema)
	if schema == "" {
		schema = "{}"
	}
	fmt.Fprintf(&sb, "Argument JSON schema: %s\n\n", schema)
	sb.WriteString("Respond with only the JSON object of arguments that satisfies the schema, no prose.")
	return sb.String()
}
