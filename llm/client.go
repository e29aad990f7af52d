package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingAPIKey   = errors.New("API key environment variable not set")
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
	ErrNoResponse      = errors.New("no response from model")
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrToolRoundLimit  = errors.New("model kept calling tools past the round limit")
)

// ToolExecutor is called when the model wants to run a tool.
// It receives the function name and arguments and returns the result text.
type ToolExecutor func(name string, args map[string]any) string

// Client is a chat model that can call tools
type Client interface {
	Chat(ctx context.Context, prompt string) (*Response, error)
	ChatWithTools(ctx context.Context, message string, history []*Message, tools []*Tool, executor ToolExecutor) (*Response, []*Message, error)
	Close() error
}

// New builds the client for provider ("gemini" or "openrouter"). An empty
// model keeps the provider default.
func New(ctx context.Context, provider, model string) (Client, error) {
	var (
		client Client
		err    error
	)
	switch strings.ToLower(provider) {
	case "gemini":
		client, err = NewGeminiClient(ctx, model)
	case "openrouter":
		client, err = NewOpenRouterClient(ctx, model)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
