package agent

import (
	"fmt"
	"strings"

	"github.com/sandevgo/lilybot/internal/core"
)

const apology = "Sorry, I couldn't put together a reply just now. Please try again in a moment."

// factContext renders prefetched facts as a single instruction block, or ""
// when there are none.
func factContext(facts []core.Fact) string {
	if len(facts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("The following information was retrieved from memory. ")
	sb.WriteString("Use it when it is relevant and do not ask the user for anything it already answers:\n")
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s (memory_id: %s)\n", f.Content, f.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func retryContext(facts string, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RETRY CONTEXT: the previous update_memory call failed (%v). ", err)
	sb.WriteString("The memory_id must be copied exactly from the retrieved memories.\n")
	if facts != "" {
		sb.WriteString(facts)
	} else {
		sb.WriteString("No memories were retrieved for this message.")
	}
	return sb.String()
}

func reconcileDirective(facts string) string {
	var sb strings.Builder
	sb.WriteString("The reply to the user is about to be written. First decide what long-term memory needs.\n")
	sb.WriteString("Choose exactly one:\n")
	sb.WriteString("- save_memory: the user shared a lasting fact or preference that is not stored yet\n")
	sb.WriteString("- update_memory: the user corrected or changed a fact that is already stored\n")
	sb.WriteString("- null: nothing worth remembering\n")
	sb.WriteString("Store short, self-contained facts like \"favorite color: blue\".")
	if facts != "" {
		sb.WriteString("\n\n")
		sb.WriteString(facts)
	}
	return sb.String()
}

func attemptsContext(failures []string) string {
	return "Previous attempts failed, fix the arguments:\n" + strings.Join(failures, "\n")
}

func errorResult(err error) string {
	return "Error: " + err.Error()
}
