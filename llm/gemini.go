package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY: %w", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Chat(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	config := DefaultConfig(g.model)
	result, err := g.client.Models.GenerateContent(ctx, config.Model, genai.Text(prompt), g.generateConfig(config, nil))
	if err != nil {
		return nil, err
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, ErrNoResponse
	}

	resp := &Response{FinishReason: string(result.Candidates[0].FinishReason)}
	for _, part := range result.Candidates[0].Content.Parts {
		resp.Text += part.Text
	}
	addGeminiUsage(resp, result.UsageMetadata)
	return resp, nil
}

// ChatWithTools runs the function-calling loop until the model answers in text
func (g *GeminiClient) ChatWithTools(ctx context.Context, message string, history []*Message, tools []*Tool, executor ToolExecutor) (*Response, []*Message, error) {
	if strings.TrimSpace(message) == "" {
		return nil, history, ErrEmptyPrompt
	}

	config := DefaultConfig(g.model)
	config.System = toolSystemPrompt(time.Now())
	genConfig := g.generateConfig(config, geminiTools(tools))

	contents := geminiContents(history)
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))
	newHistory := append(history, &Message{Role: "user", Content: message})

	resp := &Response{}

	// Tool calling loop
	for round := 0; ; round++ {
		if round == config.MaxToolRounds {
			return nil, newHistory, fmt.Errorf("%w (%d rounds)", ErrToolRoundLimit, round)
		}

		result, err := g.client.Models.GenerateContent(ctx, config.Model, contents, genConfig)
		if err != nil {
			return nil, newHistory, err
		}
		addGeminiUsage(resp, result.UsageMetadata)

		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
			return nil, newHistory, ErrNoResponse
		}

		candidate := result.Candidates[0]
		contents = append(contents, candidate.Content)

		assistant := &Message{Role: "assistant"}
		var calls []*genai.FunctionCall
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				calls = append(calls, part.FunctionCall)
				assistant.ToolCalls = append(assistant.ToolCalls, ToolCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
			}
			assistant.Content += part.Text
		}
		newHistory = append(newHistory, assistant)

		if len(calls) == 0 {
			resp.Text = assistant.Content
			resp.FinishReason = string(candidate.FinishReason)
			return resp, newHistory, nil
		}

		// Execute function calls and answer them in one user turn
		var responses []*genai.Part
		for _, fc := range calls {
			output := executor(fc.Name, fc.Args)
			responses = append(responses, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       fc.ID,
					Name:     fc.Name,
					Response: map[string]any{"result": output},
				},
			})
			newHistory = append(newHistory, &Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: fc.ID,
				Name:       fc.Name,
			})
		}
		contents = append(contents, &genai.Content{
			Role:  string(genai.RoleUser),
			Parts: responses,
		})
	}
}

func (g *GeminiClient) Close() error {
	// genai.Client holds no resources that need releasing
	return nil
}

func (g *GeminiClient) generateConfig(config *Config, tools []*genai.Tool) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: config.MaxTokens,
		Temperature:     genai.Ptr(config.Temperature),
		Tools:           tools,
	}
	if config.System != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: config.System}},
		}
	}
	return genConfig
}

func addGeminiUsage(resp *Response, usage *genai.GenerateContentResponseUsageMetadata) {
	if usage == nil {
		return
	}
	resp.TokensUsed += int64(usage.TotalTokenCount)
	resp.InputTokens += int64(usage.PromptTokenCount)
	resp.OutputTokens += int64(usage.CandidatesTokenCount)
}

// geminiTools converts tool definitions to function declarations
func geminiTools(tools []*Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if t.Parameters != nil {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(t.Parameters.Properties)),
				Required:   t.Parameters.Required,
			}
			for name, prop := range t.Parameters.Properties {
				schema.Properties[name] = &genai.Schema{
					Type:        genai.TypeString,
					Description: prop.Description,
				}
			}
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// geminiContents converts history to Gemini contents. Gemini has no system
// role inside a conversation, so system notes are sent as user text.
func geminiContents(history []*Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			content := &genai.Content{Role: string(genai.RoleModel)}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case "tool":
			part := &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: map[string]any{"result": msg.Content},
				},
			}
			// Answers to one model turn travel together
			if n := len(contents); n > 0 && len(contents[n-1].Parts) > 0 && contents[n-1].Parts[0].FunctionResponse != nil {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{part},
			})
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents
}
