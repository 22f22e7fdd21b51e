package fanout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhoughton/fanout/llm"
)

func TestDecomposeParsesJSONArray(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		// The decomposition prompt embeds the query and the agent count.
		assert.Contains(t, req.Messages[0].Content, "quantum computing")
		assert.Contains(t, req.Messages[0].Content, "3")
		return assistantText(`["subtask one", "subtask two", "subtask three"]`), nil
	}}

	d := NewDecomposer(NewGateway(client, testConfig()), testConfig())
	subtasks := d.Decompose(context.Background(), "quantum computing", 3)

	assert.Equal(t, []string{"subtask one", "subtask two", "subtask three"}, subtasks)
}

func TestDecomposeStripsCodeFence(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		return assistantText("Here you go:\n```json\n[\"a\", \"b\"]\n```"), nil
	}}

	d := NewDecomposer(NewGateway(client, testConfig()), testConfig())
	subtasks := d.Decompose(context.Background(), "anything", 2)

	assert.Equal(t, []string{"a", "b"}, subtasks)
}

func TestDecomposeWrongCountFallsBack(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		return assistantText(`["only one"]`), nil
	}}

	d := NewDecomposer(NewGateway(client, testConfig()), testConfig())
	subtasks := d.Decompose(context.Background(), "rust async", 4)

	require.Len(t, subtasks, 4)
	for _, subtask := range subtasks {
		assert.NotEmpty(t, subtask)
		assert.Contains(t, subtask, "rust async")
	}
}

func TestDecomposeGatewayFailureFallsBack(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		return llm.ChatCompletionResponse{}, errors.New("network down")
	}}

	config := testConfig()
	config.MaxRetries = 1
	d := NewDecomposer(NewGateway(client, config), config)
	subtasks := d.Decompose(context.Background(), "graph databases", 4)

	require.Len(t, subtasks, 4)
	for _, subtask := range subtasks {
		assert.Contains(t, subtask, "graph databases")
	}
}

func TestDecomposeMalformedJSONFallsBack(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		return assistantText(`here are your subtasks: [1, 2, 3`), nil
	}}

	d := NewDecomposer(NewGateway(client, testConfig()), testConfig())
	subtasks := d.Decompose(context.Background(), "LLM agents", 3)

	require.Len(t, subtasks, 3)
	for _, subtask := range subtasks {
		assert.Contains(t, subtask, "LLM agents")
	}
}

func TestFallbackSubtasksPadsBeyondTemplates(t *testing.T) {
	subtasks := fallbackSubtasks("topic", 6)

	require.Len(t, subtasks, 6)
	seen := make(map[string]bool)
	for i, subtask := range subtasks {
		assert.Contains(t, subtask, "topic", fmt.Sprintf("entry %d", i))
		assert.False(t, seen[subtask], "entries must be distinct")
		seen[subtask] = true
	}
}
