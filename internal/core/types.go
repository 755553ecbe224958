package core

import (
	"encoding/json"
	"time"
)

const (
	AppName      = "Lily"
	AppUserAgent = "Lily-Agent/0.2"
	AppVersion   = "0.2.0"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one immutable entry of a conversation transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a prompt element sent to a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// TurnsToMessages drops timestamps so a transcript can be used as a prompt.
func TurnsToMessages(turns []Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, Message{Role: t.Role, Content: t.Content})
	}
	return out
}

// ToolKind is the closed set of capability handlers a tool can dispatch to.
type ToolKind string

const (
	KindClock        ToolKind = "clock"
	KindFileRead     ToolKind = "file_read"
	KindFileWrite    ToolKind = "file_write"
	KindWebSearch    ToolKind = "web_search"
	KindMemoryFetch  ToolKind = "memory_fetch"
	KindMemorySave   ToolKind = "memory_save"
	KindMemoryUpdate ToolKind = "memory_update"
	KindMCP          ToolKind = "mcp"
)

func (k ToolKind) Valid() bool {
	switch k {
	case KindClock, KindFileRead, KindFileWrite, KindWebSearch,
		KindMemoryFetch, KindMemorySave, KindMemoryUpdate, KindMCP:
		return true
	}
	return false
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Instruction string          `json:"instruction,omitempty"`
	Schema      json.RawMessage `json:"parameters"`
	Kind        ToolKind        `json:"-"`
}

// ToolCallRecord is serialized into the system turn that records a tool call.
type ToolCallRecord struct {
	ToolName  string          `json:"tool_used"`
	Arguments json.RawMessage `json:"arguments"`
	Result    string          `json:"result"`
}

func (r ToolCallRecord) String() string {
	args := r.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	r.Arguments = args
	data, err := json.Marshal(r)
	if err != nil {
		return r.ToolName + ": " + r.Result
	}
	return string(data)
}

// Fact is a long-term memory record as seen by callers of the fact store.
type Fact struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Score     float32   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Requester identifies who sent a message on a channel.
type Requester struct {
	ID       string
	Name     string
	IsMaster bool
}
