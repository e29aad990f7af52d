package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	openRouterURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel = "google/gemini-2.5-flash"
)

type OpenRouterClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenRouterClient reads OPENROUTER_API_KEY. OPENROUTER_MODEL overrides
// the default model when model is empty.
func NewOpenRouterClient(ctx context.Context, model string) (*OpenRouterClient, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY: %w", ErrMissingAPIKey)
	}

	if model == "" {
		model = os.Getenv("OPENROUTER_MODEL")
	}
	if model == "" {
		model = defaultOpenRouterModel
	}

	return &OpenRouterClient{
		apiKey:     apiKey,
		model:      model,
		url:        openRouterURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     slog.Default(),
	}, nil
}

func (c *OpenRouterClient) Chat(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	result, err := c.send(ctx, DefaultConfig(c.model), []openRouterMessage{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, ErrNoResponse
	}

	resp := &Response{
		Text:         result.Choices[0].Message.Content,
		FinishReason: result.Choices[0].FinishReason,
	}
	result.Usage.addTo(resp)
	return resp, nil
}

// ChatWithTools runs the tool calling loop until the model answers in text
func (c *OpenRouterClient) ChatWithTools(ctx context.Context, message string, history []*Message, tools []*Tool, executor ToolExecutor) (*Response, []*Message, error) {
	if strings.TrimSpace(message) == "" {
		return nil, history, ErrEmptyPrompt
	}

	config := DefaultConfig(c.model)
	orTools := openRouterTools(tools)

	messages := []openRouterMessage{{Role: "system", Content: toolSystemPrompt(time.Now())}}
	for _, msg := range history {
		messages = append(messages, openRouterFromMessage(msg))
	}
	messages = append(messages, openRouterMessage{Role: "user", Content: message})
	newHistory := append(history, &Message{Role: "user", Content: message})

	resp := &Response{}

	for round := 0; ; round++ {
		if round == config.MaxToolRounds {
			return nil, newHistory, fmt.Errorf("%w (%d rounds)", ErrToolRoundLimit, round)
		}

		result, err := c.send(ctx, config, messages, orTools)
		if err != nil {
			return nil, newHistory, err
		}
		result.Usage.addTo(resp)

		if len(result.Choices) == 0 {
			return nil, newHistory, ErrNoResponse
		}
		choice := result.Choices[0]
		messages = append(messages, choice.Message)

		assistant := &Message{Role: "assistant", Content: choice.Message.Content}
		for _, tc := range choice.Message.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: c.decodeArguments(tc.Function.Name, tc.Function.Arguments),
			})
		}
		newHistory = append(newHistory, assistant)

		if len(assistant.ToolCalls) == 0 {
			resp.Text = choice.Message.Content
			resp.FinishReason = choice.FinishReason
			return resp, newHistory, nil
		}

		for _, tc := range assistant.ToolCalls {
			output := executor(tc.Name, tc.Arguments)
			messages = append(messages, openRouterMessage{
				Role:       "tool",
				Content:    output,
				ToolCallID: tc.ID,
			})
			newHistory = append(newHistory, &Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}
	}
}

func (c *OpenRouterClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Wire types for the OpenRouter chat completions API

type openRouterMessage struct {
	Role       string               `json:"role"`
	Content    string               `json:"content"`
	ToolCalls  []openRouterToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
}

type openRouterToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openRouterTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	MaxTokens   int32               `json:"max_tokens,omitempty"`
	Temperature float32             `json:"temperature,omitempty"`
	Tools       []openRouterTool    `json:"tools,omitempty"`
}

type openRouterUsage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

func (u openRouterUsage) addTo(resp *Response) {
	resp.TokensUsed += u.TotalTokens
	resp.InputTokens += u.PromptTokens
	resp.OutputTokens += u.CompletionTokens
	resp.Cost += u.Cost
}

type openRouterResponse struct {
	Choices []struct {
		Message      openRouterMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage openRouterUsage `json:"usage"`
}

func (c *OpenRouterClient) send(ctx context.Context, config *Config, messages []openRouterMessage, tools []openRouterTool) (*openRouterResponse, error) {
	reqBody := openRouterRequest{
		Model:       config.Model,
		Messages:    messages,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
		Tools:       tools,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "tasklist")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result openRouterResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// decodeArguments parses a tool call's JSON arguments. Malformed arguments
// reach the executor as an empty map, whose usage message tells the model
// what went wrong.
func (c *OpenRouterClient) decodeArguments(tool, raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logger := c.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Debug("invalid tool arguments", "tool", tool, "arguments", raw, "error", err)
		return map[string]any{}
	}
	return args
}

func openRouterTools(tools []*Tool) []openRouterTool {
	var result []openRouterTool
	for _, t := range tools {
		orTool := openRouterTool{Type: "function"}
		orTool.Function.Name = t.Name
		orTool.Function.Description = t.Description

		if t.Parameters != nil {
			props := make(map[string]any, len(t.Parameters.Properties))
			for name, prop := range t.Parameters.Properties {
				props[name] = map[string]string{
					"type":        prop.Type,
					"description": prop.Description,
				}
			}
			params := map[string]any{
				"type":       t.Parameters.Type,
				"properties": props,
			}
			if len(t.Parameters.Required) > 0 {
				params["required"] = t.Parameters.Required
			}
			orTool.Function.Parameters = params
		}
		result = append(result, orTool)
	}
	return result
}

func openRouterFromMessage(msg *Message) openRouterMessage {
	orMsg := openRouterMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	for _, tc := range msg.ToolCalls {
		args, _ := json.Marshal(tc.Arguments)
		call := openRouterToolCall{ID: tc.ID, Type: "function"}
		call.Function.Name = tc.Name
		call.Function.Arguments = string(args)
		orMsg.ToolCalls = append(orMsg.ToolCalls, call)
	}
	return orMsg
}
