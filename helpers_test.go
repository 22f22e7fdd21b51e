package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danhoughton/fanout/llm"
)

// scriptLLM answers each completion call through a script function keyed by
// call number (1-based). Safe for concurrent use.
type scriptLLM struct {
	mu     sync.Mutex
	calls  int
	script func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error)
}

func (s *scriptLLM) CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.script(call, req)
}

func (s *scriptLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func assistantText(text string) llm.ChatCompletionResponse {
	return llm.ChatCompletionResponse{
		Choices: []llm.Choice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: text},
		}},
	}
}

func assistantToolCalls(text string, calls ...llm.ToolCall) llm.ChatCompletionResponse {
	return llm.ChatCompletionResponse{
		Choices: []llm.Choice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: calls},
		}},
	}
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      name,
			Arguments: args,
		},
	}
}

// testConfig keeps retries fast enough for tests
func testConfig() *Config {
	config := DefaultConfig()
	config.RetryBackoff = time.Millisecond
	config.BackoffCap = 5 * time.Millisecond
	config.TaskTimeout = 10 * time.Second
	return config
}

func newTestCoordinator(t *testing.T, client llm.LLM, config *Config, sinks ...ProgressSink) *Coordinator {
	t.Helper()
	if config == nil {
		config = testConfig()
	}

	registry := NewRegistry()
	err := registry.Register("echo", "Echo the input back.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
		},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			text, _ := args["text"].(string)
			return text, nil
		})
	require.NoError(t, err)
	err = registry.Register(config.CompletionTool, "Signal completion.", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "Task marked as complete.", nil
		})
	require.NoError(t, err)

	coordinator, err := NewCoordinator(client, registry, config, sinks...)
	require.NoError(t, err)
	return coordinator
}
