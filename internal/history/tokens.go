package history

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/lilybot/internal/core"
)

// Per-message overhead of the chat format (role markers, separators).
const turnOverhead = 4

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

type TokenCounter func(text string) int

// CountTokens uses cl100k_base and falls back to a chars/4 estimate when the
// encoding cannot be loaded.
func CountTokens(text string) int {
	tkOnce.Do(func() {
		tk, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if tk == nil {
		return utf8.RuneCountInString(text)/4 + 1
	}
	return len(tk.Encode(text, nil, nil))
}

// Window returns the newest suffix of turns that fits in maxTokens. The most
// recent turn is always kept. maxTokens <= 0 disables windowing.
func Window(turns []core.Turn, maxTokens int, count TokenCounter) []core.Turn {
	if maxTokens <= 0 || len(turns) == 0 {
		return turns
	}
	if count == nil {
		count = CountTokens
	}

	used := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := count(turns[i].Content) + turnOverhead
		if used+cost > maxTokens && start < len(turns) {
			break
		}
		used += cost
		start = i
	}
	return turns[start:]
}
