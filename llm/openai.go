package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAILLM implements the LLM interface for OpenAI
type OpenAILLM struct {
	client *openai.Client
}

// NewOpenAILLM creates a new OpenAI LLM client
func NewOpenAILLM(apiKey string) *OpenAILLM {
	client := openai.NewClient(apiKey)
	return &OpenAILLM{client: client}
}

// NewOpenAILLMWithHost creates a client against a compatible custom endpoint
func NewOpenAILLMWithHost(apiKey string, host string) *OpenAILLM {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = host
	return &OpenAILLM{client: openai.NewClientWithConfig(config)}
}

// convertToOpenAIMessages converts our generic Message type to OpenAI's message type
func convertToOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	openAIMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openAIMessages[i] = openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
			ToolCalls:  convertToOpenAIToolCalls(msg.ToolCalls),
		}
	}
	return openAIMessages
}

// convertToOpenAIToolCalls converts assistant tool calls back to OpenAI's type.
// Required so a conversation containing prior assistant turns round-trips.
func convertToOpenAIToolCalls(calls []ToolCall) []openai.ToolCall {
	if len(calls) == 0 {
		return nil
	}

	openAICalls := make([]openai.ToolCall, len(calls))
	for i, call := range calls {
		openAICalls[i] = openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolType(call.Type),
			Function: openai.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		}
	}
	return openAICalls
}

// convertToOpenAITools converts our generic Tool type to OpenAI's tool type
func convertToOpenAITools(tools []Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}

	openAITools := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		def := openai.FunctionDefinition{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		}
		openAITools[i] = openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &def,
		}
	}
	return openAITools
}

// convertFromOpenAIToolCalls converts OpenAI's tool calls to our generic type
func convertFromOpenAIToolCalls(toolCalls []openai.ToolCall) []ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}

	calls := make([]ToolCall, len(toolCalls))
	for i, call := range toolCalls {
		calls[i] = ToolCall{
			ID:   call.ID,
			Type: string(call.Type),
		}
		calls[i].Function.Name = call.Function.Name
		calls[i].Function.Arguments = call.Function.Arguments
	}
	return calls
}

// CreateChatCompletion implements the LLM interface for OpenAI
func (o *OpenAILLM) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	openAIReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    convertToOpenAIMessages(req.Messages),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Tools:       convertToOpenAITools(req.Tools),
	}

	resp, err := o.client.CreateChatCompletion(ctx, openAIReq)
	if err != nil {
		var openAIErr *openai.APIError
		if errors.As(err, &openAIErr) {
			return ChatCompletionResponse{}, fmt.Errorf("OpenAI API error: %v - %s", openAIErr.Code, openAIErr.Message)
		}
		return ChatCompletionResponse{}, err
	}

	choices := make([]Choice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = Choice{
			Index: c.Index,
			Message: Message{
				Role:      Role(c.Message.Role),
				Content:   c.Message.Content,
				Name:      c.Message.Name,
				ToolCalls: convertFromOpenAIToolCalls(c.Message.ToolCalls),
			},
			FinishReason: string(c.FinishReason),
		}
	}

	return ChatCompletionResponse{
		ID:      resp.ID,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
