package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLLM implements the LLM interface for Google's Gemini
type GeminiLLM struct {
	client *genai.Client
}

// NewGeminiLLM creates a new Gemini LLM client
func NewGeminiLLM(apiKey string) (*GeminiLLM, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}

	return &GeminiLLM{client: client}, nil
}

// convertToGeminiParts flattens the conversation into text parts. Gemini has
// no separate system or tool roles in this API shape, so role markers are
// encoded into the text the way the model was prompted to expect them.
func convertToGeminiParts(messages []Message) []genai.Part {
	var parts []genai.Part

	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" && len(msg.ToolCalls) == 0 {
			continue
		}

		switch msg.Role {
		case RoleSystem:
			parts = append(parts, genai.Text(fmt.Sprintf("[System]\n%s", content)))
		case RoleTool:
			parts = append(parts, genai.Text(fmt.Sprintf("[Tool: %s]\n%s", msg.Name, content)))
		case RoleAssistant:
			text := content
			for _, call := range msg.ToolCalls {
				text += fmt.Sprintf("\n[Called: %s %s]", call.Function.Name, call.Function.Arguments)
			}
			parts = append(parts, genai.Text(fmt.Sprintf("[Assistant]\n%s", strings.TrimSpace(text))))
		case RoleUser:
			parts = append(parts, genai.Text(fmt.Sprintf("[User]\n%s", content)))
		}
	}

	return parts
}

// convertToGeminiTools converts our generic Tool type to Gemini's tool type
func convertToGeminiTools(tools []Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	geminiTools := make([]*genai.Tool, len(tools))
	for i, tool := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema),
		}

		if properties, ok := tool.Function.Parameters["properties"].(map[string]interface{}); ok {
			for name, prop := range properties {
				if propMap, ok := prop.(map[string]interface{}); ok {
					propSchema := &genai.Schema{}
					if typ, ok := propMap["type"].(string); ok {
						propSchema.Type = convertSchemaType(typ)
					}
					if desc, ok := propMap["description"].(string); ok {
						propSchema.Description = desc
					}
					schema.Properties[name] = propSchema
				}
			}
		}

		if required, ok := tool.Function.Parameters["required"].([]interface{}); ok {
			reqFields := make([]string, 0, len(required))
			for _, r := range required {
				if str, ok := r.(string); ok {
					reqFields = append(reqFields, str)
				}
			}
			schema.Required = reqFields
		}

		geminiTools[i] = &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  schema,
				},
			},
		}
	}
	return geminiTools
}

// convertSchemaType converts a JSON Schema type to Gemini schema type
func convertSchemaType(typ string) genai.Type {
	switch typ {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

// CreateChatCompletion implements the LLM interface for Gemini
func (g *GeminiLLM) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	model := g.client.GenerativeModel(req.Model)

	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		model.Tools = convertToGeminiTools(req.Tools)
	}

	parts := convertToGeminiParts(req.Messages)

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return ChatCompletionResponse{}, fmt.Errorf("failed to generate content: %v", err)
	}

	choices := make([]Choice, 0, len(resp.Candidates))
	for i, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}

		msg := Message{Role: RoleAssistant}
		var textParts []string
		for j, part := range c.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text := strings.TrimPrefix(string(p), "[Assistant]\n")
				if text = strings.TrimSpace(text); text != "" {
					textParts = append(textParts, text)
				}
			case genai.FunctionCall:
				args, err := json.Marshal(p.Args)
				if err != nil {
					continue
				}
				// Gemini does not assign call ids; synthesize stable ones so
				// tool responses can still be correlated.
				msg.ToolCalls = append(msg.ToolCalls, ToolCall{
					ID:   fmt.Sprintf("call-%d-%d", i, j),
					Type: "function",
					Function: ToolCallFunction{
						Name:      p.Name,
						Arguments: string(args),
					},
				})
			}
		}
		msg.Content = strings.Join(textParts, "\n")

		choices = append(choices, Choice{
			Index:        i,
			Message:      msg,
			FinishReason: c.FinishReason.String(),
		})
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return ChatCompletionResponse{
		ID:      "",
		Choices: choices,
		Usage:   usage,
	}, nil
}
