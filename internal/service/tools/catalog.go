package tools

import (
	"encoding/json"

	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/providers/builtin"
)

const (
	GetCurrentTime = "get_current_time"
	ReadFile       = "read_file"
	WriteFile      = "write_file"
	SearchWeb      = "search_web"
	FetchMemory    = "fetch_memory"
	SaveMemory     = "save_memory"
	UpdateMemory   = "update_memory"
)

// MemoryTools are the tools that read or write long-term memory.
var MemoryTools = []string{FetchMemory, SaveMemory, UpdateMemory}

// LoopHiddenTools stay out of the tool loop: prefetch already supplies
// retrieved facts and new facts are only saved by reconcile. update_memory
// remains available so a stated correction can be applied right away.
var LoopHiddenTools = []string{FetchMemory, SaveMemory}

const fetchMemorySchema = `
{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "What to look for in long-term memory" }
  },
  "required": ["query"]
}
`

const saveMemorySchema = `
{
  "type": "object",
  "properties": {
    "content": { "type": "string", "description": "One short, self-contained fact, e.g. \"favorite color: blue\"" }
  },
  "required": ["content"]
}
`

const updateMemorySchema = `
{
  "type": "object",
  "properties": {
    "memory_id": { "type": "string", "description": "ID of the memory to replace, exactly as shown in the retrieved memories" },
    "content": { "type": "string", "description": "The corrected fact" }
  },
  "required": ["memory_id", "content"]
}
`

// BuiltinCatalog is the catalog every deployment starts from.
func BuiltinCatalog() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			Name:        GetCurrentTime,
			Description: "Get the current date and time.",
			Instruction: "Use when the user asks about the time, the date or the day of the week.",
			Schema:      json.RawMessage(builtin.ClockSchema),
			Kind:        core.KindClock,
		},
		{
			Name:        ReadFile,
			Description: "Read a text file from the workspace.",
			Instruction: "Use when the user refers to a file by name and wants to know what it contains.",
			Schema:      json.RawMessage(builtin.ReadFileSchema),
			Kind:        core.KindFileRead,
		},
		{
			Name:        WriteFile,
			Description: "Create or overwrite a text file in the workspace.",
			Instruction: "Use only when the user explicitly asks to save or write something to a file.",
			Schema:      json.RawMessage(builtin.WriteFileSchema),
			Kind:        core.KindFileWrite,
		},
		{
			Name:        SearchWeb,
			Description: "Search the web and get a summary of the top results.",
			Instruction: "Use for current events, facts you are unsure about, or anything after your training data.",
			Schema:      json.RawMessage(builtin.SearchWebSchema),
			Kind:        core.KindWebSearch,
		},
		{
			Name:        FetchMemory,
			Description: "Search long-term memory for facts about the user or past conversations.",
			Instruction: "Use when the user refers to something they told you before and it is not already in context.",
			Schema:      json.RawMessage(fetchMemorySchema),
			Kind:        core.KindMemoryFetch,
		},
		{
			Name:        SaveMemory,
			Description: "Save a new fact to long-term memory.",
			Instruction: "Use when the user shares a lasting personal fact or preference that is not stored yet.",
			Schema:      json.RawMessage(saveMemorySchema),
			Kind:        core.KindMemorySave,
		},
		{
			Name:        UpdateMemory,
			Description: "Replace an existing memory with corrected content.",
			Instruction: "Use when the user corrects or changes a fact that already exists in memory; pass its ID.",
			Schema:      json.RawMessage(updateMemorySchema),
			Kind:        core.KindMemoryUpdate,
		},
	}
}
