package llm

import (
	"fmt"
	"time"
)

// Response is the final answer of a chat turn
type Response struct {
	Text         string
	FinishReason string
	TokensUsed   int64
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

type Config struct {
	Model       string
	MaxTokens   int32
	Temperature float32
	System      string
	// MaxToolRounds caps model requests in one tool calling turn
	MaxToolRounds int
}

// DefaultConfig returns generation settings for model
func DefaultConfig(model string) *Config {
	return &Config{
		Model:         model,
		MaxTokens:     8192,
		Temperature:   0.7,
		MaxToolRounds: 10,
	}
}

// Message is one provider-neutral entry of the conversation history.
// Role is "user", "assistant", "tool", or "system".
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	// Name is the tool name on role "tool" messages
	Name string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Tool describes a function the model may call
type Tool struct {
	Name        string
	Description string
	Parameters  *ToolParameters
}

type ToolParameters struct {
	Type       string
	Properties map[string]*ToolProperty
	Required   []string
}

type ToolProperty struct {
	Type        string
	Description string
}

// toolSystemPrompt explains the task list tools to the model
func toolSystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a helpful assistant for a personal task list.

TODAY'S DATE: %s (%s)

IMPORTANT RULES:
1. When a user refers to a task by its TEXT, FIRST call "list" to find the task's numeric ID.
2. NEVER ask the user for an ID. Always look it up using available tools.
3. Task IDs are integers such as 3 or 1718035200123.
4. "list" shows only tasks visible under the current filter and search. Call "filter all" and "search" with no term to see everything.
5. Priorities are assigned automatically and cannot be changed.

EXAMPLES:
- "mark the groceries task done" -> call list, find its ID, call toggle with that ID
- "rename call mom to call dad" -> call list, find its ID, call edit
- "how many tasks are left?" -> call stats`, now.Format("2006-01-02"), now.Weekday())
}
