package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danhoughton/fanout/llm"
)

func TestAggregateZeroSuccesses(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		t.Fatal("no gateway call expected")
		return llm.ChatCompletionResponse{}, nil
	}}

	a := NewAggregator(NewGateway(client, testConfig()), testConfig())
	answer := a.Aggregate(context.Background(), []AgentResult{
		{AgentIndex: 0, Err: "boom"},
		{AgentIndex: 1, Err: "maximum iterations reached"},
	})

	assert.Equal(t, AllFailedMessage, answer)
	assert.Equal(t, 0, client.callCount())
}

func TestAggregateSingleSuccessVerbatim(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		t.Fatal("no gateway call expected")
		return llm.ChatCompletionResponse{}, nil
	}}

	a := NewAggregator(NewGateway(client, testConfig()), testConfig())
	answer := a.Aggregate(context.Background(), []AgentResult{
		{AgentIndex: 0, Err: "failed"},
		{AgentIndex: 1, Text: "X"},
	})

	assert.Equal(t, "X", answer)
	assert.Equal(t, 0, client.callCount())
}

func TestAggregateSynthesizesMultipleSuccesses(t *testing.T) {
	var prompt string
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		prompt = req.Messages[0].Content
		return assistantText("merged answer"), nil
	}}

	a := NewAggregator(NewGateway(client, testConfig()), testConfig())
	answer := a.Aggregate(context.Background(), []AgentResult{
		{AgentIndex: 0, Text: "A"},
		{AgentIndex: 1, Text: "B"},
	})

	assert.Equal(t, "merged answer", answer)
	assert.Equal(t, 1, client.callCount())
	assert.Contains(t, prompt, "A")
	assert.Contains(t, prompt, "B")
	assert.Contains(t, prompt, "=== AGENT 1 RESPONSE ===")
	assert.Contains(t, prompt, "=== AGENT 2 RESPONSE ===")
}

func TestAggregateExcludesFailedResults(t *testing.T) {
	var prompt string
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		prompt = req.Messages[0].Content
		return assistantText("merged"), nil
	}}

	a := NewAggregator(NewGateway(client, testConfig()), testConfig())
	a.Aggregate(context.Background(), []AgentResult{
		{AgentIndex: 0, Text: "good zero"},
		{AgentIndex: 1, Text: "partial from a dead agent", Err: "maximum iterations reached"},
		{AgentIndex: 2, Text: "good two"},
	})

	assert.Contains(t, prompt, "good zero")
	assert.Contains(t, prompt, "good two")
	assert.NotContains(t, prompt, "partial from a dead agent")
}

func TestAggregateSynthesisFailureFallsBack(t *testing.T) {
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		return llm.ChatCompletionResponse{}, errors.New("synthesis down")
	}}

	config := testConfig()
	config.MaxRetries = 1
	a := NewAggregator(NewGateway(client, config), config)
	answer := a.Aggregate(context.Background(), []AgentResult{
		{AgentIndex: 0, Text: "alpha findings"},
		{AgentIndex: 1, Text: "beta findings"},
	})

	// Raw labeled concatenation so the caller still gets something.
	assert.Contains(t, answer, "=== AGENT 1 RESPONSE ===")
	assert.Contains(t, answer, "alpha findings")
	assert.Contains(t, answer, "beta findings")
}
