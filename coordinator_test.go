package fanout

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhoughton/fanout/llm"
)

// orchestraScript answers decomposition, agent, and synthesis calls based on
// the request shape, so concurrent agents can hit it in any order.
func orchestraScript(subtasks []string, failSubtask string) func(int, llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
	return func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		first := req.Messages[0]

		if first.Role == llm.RoleUser && strings.Contains(first.Content, "Break the following request") {
			return assistantText(jsonArray(subtasks)), nil
		}
		if first.Role == llm.RoleUser && strings.Contains(first.Content, "consolidated") {
			return assistantText("synthesized answer"), nil
		}

		// Agent turn: messages[1] is the subtask prompt.
		subtask := req.Messages[1].Content
		if subtask == failSubtask {
			// Keep calling tools so the iteration budget runs out.
			return assistantToolCalls("", toolCall("c1", "echo", `{"text": "spin"}`)), nil
		}
		return assistantText("answer for " + subtask), nil
	}
}

func jsonArray(items []string) string {
	var b strings.Builder
	b.WriteString("[")
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + item + `"`)
	}
	b.WriteString("]")
	return b.String()
}

func TestOrchestrateAllSucceed(t *testing.T) {
	subtasks := []string{"angle-a", "angle-b", "angle-c", "angle-d"}
	client := &scriptLLM{script: orchestraScript(subtasks, "")}

	c := newTestCoordinator(t, client, nil)
	answer := c.Orchestrate(context.Background(), "compare X and Y")

	// One decomposition + one call per agent + exactly one synthesis.
	assert.Equal(t, "synthesized answer", answer)
	assert.Equal(t, 6, client.callCount())

	snapshot := c.ProgressSnapshot()
	require.Len(t, snapshot, 4)
	for i, status := range snapshot {
		assert.Equal(t, StatusCompleted, status, "agent %d", i)
	}
}

func TestOrchestrateProducesResultPerAgent(t *testing.T) {
	subtasks := []string{"angle-a", "angle-b", "angle-c", "angle-d"}
	client := &scriptLLM{script: orchestraScript(subtasks, "angle-c")}

	config := testConfig()
	config.MaxIterations = 2
	c := newTestCoordinator(t, client, config)

	run := c.Run(context.Background(), "compare X and Y")

	require.Len(t, run.Results, 4)
	for i, result := range run.Results {
		assert.Equal(t, i, result.AgentIndex)
	}
	assert.True(t, run.Results[0].Success())
	assert.True(t, run.Results[1].Success())
	assert.False(t, run.Results[2].Success())
	assert.Contains(t, run.Results[2].Err, "maximum iterations reached")
	assert.True(t, run.Results[3].Success())

	assert.Equal(t, subtasks, run.Subtasks)
	assert.NotEmpty(t, run.SessionID)
	assert.Equal(t, StatusFailed, c.ProgressSnapshot()[2])
}

func TestOrchestrateFailedAgentExcludedFromSynthesis(t *testing.T) {
	subtasks := []string{"angle-a", "angle-b", "angle-c", "angle-d"}

	var mu sync.Mutex
	var synthesisPrompt string
	base := orchestraScript(subtasks, "angle-b")
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		if strings.Contains(req.Messages[0].Content, "consolidated") {
			mu.Lock()
			synthesisPrompt = req.Messages[0].Content
			mu.Unlock()
		}
		return base(call, req)
	}}

	config := testConfig()
	config.MaxIterations = 1
	c := newTestCoordinator(t, client, config)
	c.Orchestrate(context.Background(), "compare X and Y")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, synthesisPrompt)
	assert.Contains(t, synthesisPrompt, "answer for angle-a")
	assert.Contains(t, synthesisPrompt, "answer for angle-c")
	assert.Contains(t, synthesisPrompt, "answer for angle-d")
	assert.NotContains(t, synthesisPrompt, "angle-b")
}

func TestOrchestrateTotalFailureReturnsMessage(t *testing.T) {
	subtasks := []string{"angle-a", "angle-b"}
	client := &scriptLLM{script: func(call int, req llm.ChatCompletionRequest) (llm.ChatCompletionResponse, error) {
		if strings.Contains(req.Messages[0].Content, "Break the following request") {
			return assistantText(jsonArray(subtasks)), nil
		}
		return assistantToolCalls("", toolCall("c1", "echo", `{"text": "spin"}`)), nil
	}}

	config := testConfig()
	config.ParallelAgents = 2
	config.MaxIterations = 1
	c := newTestCoordinator(t, client, config)

	answer := c.Orchestrate(context.Background(), "doomed query")
	assert.Equal(t, AllFailedMessage, answer)
}

// recordingSink captures every transition per agent index
type recordingSink struct {
	mu     sync.Mutex
	events map[int][]AgentStatus
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(map[int][]AgentStatus)}
}

func (s *recordingSink) OnUpdate(agentIndex int, status AgentStatus) {
	s.mu.Lock()
	s.events[agentIndex] = append(s.events[agentIndex], status)
	s.mu.Unlock()
}

func TestOrchestrateStatusesNeverRegress(t *testing.T) {
	subtasks := []string{"angle-a", "angle-b", "angle-c", "angle-d"}
	client := &scriptLLM{script: orchestraScript(subtasks, "angle-d")}

	sink := newRecordingSink()
	config := testConfig()
	config.MaxIterations = 2
	c := newTestCoordinator(t, client, config, sink)
	c.Orchestrate(context.Background(), "compare X and Y")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 4)
	for index, sequence := range sink.events {
		for i := 1; i < len(sequence); i++ {
			assert.Greater(t, sequence[i], sequence[i-1],
				"agent %d transitioned backwards: %v", index, sequence)
		}
		last := sequence[len(sequence)-1]
		assert.True(t, last.Terminal(), "agent %d ended in %s", index, last)
	}
}

func TestNewCoordinatorValidatesConfig(t *testing.T) {
	config := testConfig()
	config.ParallelAgents = 0

	_, err := NewCoordinator(&scriptLLM{}, NewRegistry(), config)
	assert.ErrorIs(t, err, ErrBadParallelism)
}

func TestProgressSnapshotBeforeRun(t *testing.T) {
	c := newTestCoordinator(t, &scriptLLM{}, nil)

	snapshot := c.ProgressSnapshot()
	require.Len(t, snapshot, 4)
	for _, status := range snapshot {
		assert.Equal(t, StatusQueued, status)
	}
}
