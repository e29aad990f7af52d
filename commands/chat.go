package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tasklist/llm"
)

// chatHistory stores the conversation history for the /chat command
var chatHistory []*llm.Message

// Session usage tracking
var (
	sessionInputTokens  int64
	sessionOutputTokens int64
	sessionCost         float64
	sessionPromptCount  int
)

// maxCommandContextEntries limits how many command context entries to keep
const maxCommandContextEntries = 10

const commandContextPrefix = "User ran:"

// AddCommandContext adds a direct command and its output to the chat history
// so the assistant knows about recent user actions.
func AddCommandContext(command string, output string) {
	chatHistory = append(chatHistory, &llm.Message{
		Role:    "system",
		Content: fmt.Sprintf("%s %s\nOutput: %s", commandContextPrefix, command, output),
	})
	trimCommandContext()
}

// trimCommandContext drops the oldest command context entries over the limit
func trimCommandContext() {
	var contextCount int
	for _, msg := range chatHistory {
		if isCommandContext(msg) {
			contextCount++
		}
	}

	toRemove := contextCount - maxCommandContextEntries
	if toRemove <= 0 {
		return
	}

	kept := chatHistory[:0]
	for _, msg := range chatHistory {
		if toRemove > 0 && isCommandContext(msg) {
			toRemove--
			continue
		}
		kept = append(kept, msg)
	}
	chatHistory = kept
}

func isCommandContext(msg *llm.Message) bool {
	return msg.Role == "system" && strings.HasPrefix(msg.Content, commandContextPrefix)
}

func init() {
	Register(&Command{
		Name:        "/clearchat",
		Description: "Clear the chat conversation history",
		Hidden:      true,
		Handler: func(args []string) bool {
			chatHistory = nil
			fmt.Println("Chat history cleared.")
			return false
		},
	})

	Register(&Command{
		Name:        "/usage",
		Description: "Show session token usage and cost statistics",
		Hidden:      true,
		Handler: func(args []string) bool {
			if sessionPromptCount == 0 {
				fmt.Println("No chat usage in this session yet.")
				return false
			}

			fmt.Println("Session Usage Statistics:")
			fmt.Printf("  Prompts:       %d\n", sessionPromptCount)
			fmt.Printf("  Input tokens:  %d\n", sessionInputTokens)
			fmt.Printf("  Output tokens: %d\n", sessionOutputTokens)
			fmt.Printf("  Total tokens:  %d\n", sessionInputTokens+sessionOutputTokens)
			if sessionCost > 0 {
				fmt.Printf("  Total cost:    %s\n", formatCost(sessionCost))
			}
			return false
		},
	})

	Register(&Command{
		Name:        "/chat",
		Description: "Ask the assistant to manage your tasks",
		Hidden:      true, // Exclude from tool generation
		Params: []Param{
			{Name: "message", Type: ParamTypeString, Description: "The message to send to the assistant", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /chat <message>")
				return false
			}

			client := GetLLMClient()
			if client == nil {
				fmt.Println("Error: assistant not available. Set GEMINI_API_KEY or OPENROUTER_API_KEY and llm.provider.")
				return false
			}

			message := args[0]
			response, newHistory, err := client.ChatWithTools(context.Background(), message, chatHistory, GenerateToolDefinitions(), runTool)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return false
			}

			chatHistory = newHistory
			fmt.Println(response.Text)
			printUsageStats(response)
			return false
		},
	})
}

// runTool executes a tool call as a command and returns what it printed
func runTool(name string, fnArgs map[string]any) string {
	cmd := GetByName(name)
	if cmd == nil || cmd.Hidden {
		return fmt.Sprintf("Error: unknown tool %q", name)
	}

	cmdStr := cmd.Name
	if cmdArgs := convertArgsToSlice(cmd, fnArgs); len(cmdArgs) > 0 {
		cmdStr += " " + strings.Join(cmdArgs, " ")
	}

	if debugMode {
		fmt.Printf("[tool] %s\n", cmdStr)
	}

	if cmd.Destructive && (confirm == nil || !confirm(fmt.Sprintf("Assistant wants to run %q. Allow?", cmdStr))) {
		return "The user declined this action."
	}

	_, output, err := ExecuteWithOutput(cmdStr)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if output == "" {
		return "OK"
	}
	return output
}

// convertArgsToSlice orders function call arguments the way the command's
// Params declare them
func convertArgsToSlice(cmd *Command, args map[string]any) []string {
	var result []string
	for _, p := range cmd.Params {
		val, ok := args[p.Name]
		if !ok {
			continue
		}
		var s string
		switch v := val.(type) {
		case float64:
			// JSON numbers arrive as float64; ids must not turn into 1.7e+12
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			s = strings.TrimSpace(fmt.Sprintf("%v", v))
		}
		if s == "" {
			continue
		}
		result = append(result, s)
	}
	return result
}

// printUsageStats displays token usage and cost information and updates session totals
func printUsageStats(response *llm.Response) {
	sessionInputTokens += response.InputTokens
	sessionOutputTokens += response.OutputTokens
	sessionCost += response.Cost
	sessionPromptCount++

	// Only display if we have token data
	if response.TokensUsed == 0 && response.InputTokens == 0 && response.OutputTokens == 0 {
		return
	}

	fmt.Printf("\n[Tokens: %d in / %d out", response.InputTokens, response.OutputTokens)
	if response.Cost > 0 {
		fmt.Printf(" | Cost: %s", formatCost(response.Cost))
	}
	fmt.Println("]")
}

func formatCost(cost float64) string {
	if cost < 0.01 {
		return fmt.Sprintf("$%.6f", cost)
	}
	return fmt.Sprintf("$%.4f", cost)
}
