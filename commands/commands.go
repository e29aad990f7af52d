package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"tasklist/llm"
	"tasklist/tasklist"
)

// ParamType defines the type of a command parameter
type ParamType string

const (
	ParamTypeString ParamType = "string"
)

// Param defines a parameter for a command
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Handler     func(args []string) bool // returns true to quit
	Params      []Param                  // parameter definitions for tool generation
	Hidden      bool                     // if true, exclude from tool generation
	Destructive bool                     // if true, requires confirmation when called via tool
}

var (
	registry  = make(map[string]*Command)
	store     *tasklist.Store
	llmClient llm.Client
	confirm   func(prompt string) bool
)

// Register adds a command to the registry
func Register(cmd *Command) {
	registry[strings.ToLower(cmd.Name)] = cmd
}

// SetStore sets the task list the commands operate on
func SetStore(s *tasklist.Store) {
	store = s
}

// GetStore returns the task list
func GetStore() *tasklist.Store {
	return store
}

// SetLLMClient sets the LLM client used by /chat
func SetLLMClient(c llm.Client) {
	llmClient = c
}

// GetLLMClient returns the LLM client, or nil when chat is unavailable
func GetLLMClient() llm.Client {
	return llmClient
}

// SetConfirm installs the prompt used before the assistant runs a
// destructive command. Without one, destructive tool calls are refused.
func SetConfirm(fn func(prompt string) bool) {
	confirm = fn
}

// Execute runs a command by name with arguments
func Execute(input string) (bool, error) {
	name, rest := cutField(strings.TrimLeftFunc(input, unicode.IsSpace))
	if name == "" {
		return false, fmt.Errorf("empty command")
	}

	cmdName := strings.ToLower(name)
	if !strings.HasPrefix(cmdName, "/") {
		cmdName = "/" + cmdName
	}

	cmd, exists := registry[cmdName]
	if !exists {
		return false, fmt.Errorf("unknown command: %s", cmdName)
	}

	return cmd.Handler(splitArgs(rest, len(cmd.Params))), nil
}

// cutField splits s at its first run of whitespace
func cutField(s string) (field, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// splitArgs splits the argument text into at most n arguments. The last one
// is the rest of the line verbatim, so free text keeps its inner spacing.
// Commands without declared params get every field.
func splitArgs(rest string, n int) []string {
	if n == 0 {
		return strings.Fields(rest)
	}

	var args []string
	for rest != "" && len(args) < n-1 {
		var field string
		field, rest = cutField(rest)
		args = append(args, field)
	}
	if rest != "" {
		args = append(args, rest)
	}
	return args
}

// ExecuteWithOutput runs a command and returns its captured stdout output
func ExecuteWithOutput(input string) (quit bool, output string, err error) {
	output = captureOutput(func() {
		quit, err = Execute(input)
	})
	return quit, output, err
}

// List returns all registered commands sorted by name
func List() []*Command {
	cmds := make([]*Command, 0, len(registry))
	for _, cmd := range registry {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Name < cmds[j].Name
	})
	return cmds
}

// GetByName returns a command by name (with or without leading /)
func GetByName(name string) *Command {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return registry[strings.ToLower(name)]
}

// GenerateToolDefinitions creates Tool definitions from registered commands
func GenerateToolDefinitions() []*llm.Tool {
	var tools []*llm.Tool

	for _, cmd := range List() {
		if cmd.Hidden {
			continue
		}

		tool := &llm.Tool{
			Name:        strings.TrimPrefix(cmd.Name, "/"),
			Description: cmd.Description,
		}

		// Only add Parameters if there are any
		if len(cmd.Params) > 0 {
			params := &llm.ToolParameters{
				Type:       "object",
				Properties: make(map[string]*llm.ToolProperty, len(cmd.Params)),
			}
			for _, p := range cmd.Params {
				params.Properties[p.Name] = &llm.ToolProperty{
					Type:        string(p.Type),
					Description: p.Description,
				}
				if p.Required {
					params.Required = append(params.Required, p.Name)
				}
			}
			tool.Parameters = params
		}

		tools = append(tools, tool)
	}

	return tools
}

// captureOutput captures stdout during execution of a function
func captureOutput(fn func()) string {
	oldStdout := os.Stdout

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Sprintf("Error capturing output: %v", err)
	}

	os.Stdout = w
	defer func() { os.Stdout = oldStdout }()

	// Read in a goroutine to prevent pipe buffer deadlock
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&buf, r)
		close(done)
	}()

	fn()

	w.Close()
	<-done
	r.Close()

	return strings.TrimSpace(buf.String())
}
