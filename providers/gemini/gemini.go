// Package gemini implements llm.Provider on the Gemini API via the
// google.golang.org/genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/oneagenthq/oneagent/llm"
)

// DefaultModel is used when the request does not name one.
const DefaultModel = "gemini-2.0-flash"

// Client adapts the genai SDK to the provider contract.
type Client struct {
	client *genai.Client
	model  string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithDefaultModel sets the model used when the request leaves it blank.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// NewClient builds a Gemini provider against the public Gemini API backend.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	inner, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c := &Client{client: inner, model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return "gemini" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	contents, err := toContents(req.Messages)
	if err != nil {
		return llm.Response{}, err
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}
	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.ResponseSchema
	}

	result, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini: generate content: %w", err)
	}
	return fromResult(result)
}

func toDeclarations(tools []llm.ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		out = append(out, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Schema,
		})
	}
	return out
}

// toContents converts conversation history to genai contents. Gemini has
// two roles, user and model; tool results travel as function response
// parts inside a user turn.
func toContents(messages []llm.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleAssistant:
			parts := []*genai.Part{}
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &args); err != nil {
						return nil, fmt.Errorf("gemini: tool call %q arguments: %w", call.Name, err)
					}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: args,
				}})
			}
			if len(parts) == 0 {
				parts = append(parts, genai.NewPartFromText(""))
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))
		case llm.RoleTool:
			out = append(out, genai.NewContentFromParts([]*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: toResponseMap(msg.Content),
				},
			}}, genai.RoleUser))
		default:
			out = append(out, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return out, nil
}

// toResponseMap wraps a tool result for the function response part.
// JSON object payloads pass through; everything else nests under "output".
func toResponseMap(content string) map[string]any {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		parsed := map[string]any{}
		if json.Unmarshal([]byte(trimmed), &parsed) == nil {
			return parsed
		}
	}
	return map[string]any{"output": content}
}

func fromResult(result *genai.GenerateContentResponse) (llm.Response, error) {
	out := llm.Response{Message: llm.Message{Role: llm.RoleAssistant}}
	if result == nil || len(result.Candidates) == 0 {
		return out, fmt.Errorf("gemini: empty response")
	}

	if result.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
	}

	candidate := result.Candidates[0]
	out.FinishReason = string(candidate.FinishReason)
	if candidate.Content == nil {
		return out, nil
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return out, fmt.Errorf("gemini: encode call arguments: %w", err)
			}
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}
	out.Message.Content = text.String()
	return out, nil
}
