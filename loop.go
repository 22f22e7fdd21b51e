package fanout

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/danhoughton/fanout/llm"
)

const skippedAfterCompletion = `{"error": "skipped: agent already signaled completion"}`

// agentContext is the per-subtask execution state. It is created by the
// worker goroutine that runs the loop, never shared, and discarded once the
// result is collected.
type agentContext struct {
	index        int
	subtask      string
	conversation []llm.Message
	iterations   int
	accumulated  []string
}

func (a *agentContext) append(msg llm.Message) {
	a.conversation = append(a.conversation, msg)
}

func (a *agentContext) text() string {
	return strings.Join(a.accumulated, "\n\n")
}

// runAgent executes one bounded tool-calling loop: QUEUED → INITIALIZING →
// PROCESSING → COMPLETED or FAILED. It never returns an error and never
// panics into the coordinator; every failure becomes a failed AgentResult.
func (c *Coordinator) runAgent(ctx context.Context, index int, subtask string) AgentResult {
	started := time.Now()

	c.setStatus(index, StatusInitializing)
	agent := &agentContext{index: index, subtask: subtask}
	agent.append(llm.Message{Role: llm.RoleSystem, Content: c.config.AgentInstructions})
	agent.append(llm.Message{Role: llm.RoleUser, Content: subtask})

	c.setStatus(index, StatusProcessing)
	schemas := c.registry.Schemas()

	for iteration := 1; iteration <= c.config.MaxIterations; iteration++ {
		agent.iterations = iteration

		msg, err := c.gateway.Complete(ctx, agent.conversation, schemas)
		if err != nil {
			return c.failAgent(agent, started, err.Error())
		}

		// The assistant turn goes into the conversation verbatim, tool calls
		// included, so the next request is shaped the way the model expects.
		agent.append(msg)
		if strings.TrimSpace(msg.Content) != "" {
			agent.accumulated = append(agent.accumulated, msg.Content)
		}

		if len(msg.ToolCalls) == 0 {
			// Nothing left to do autonomously.
			return c.completeAgent(agent, started)
		}

		completed := false
		for _, call := range msg.ToolCalls {
			// Every emitted call gets a response before this loop exits, but
			// once completion is signaled no further handler runs.
			var payload string
			if completed {
				payload = skippedAfterCompletion
			} else {
				outcome := c.registry.Dispatch(ctx, call.Function.Name, call.Function.Arguments)
				if outcome.Failed() && c.config.Debug {
					log.Printf("[agent %d] tool %s failed: %s", index, call.Function.Name, truncateString(outcome.Err, 120))
				}
				payload = outcome.Payload()
			}
			agent.append(llm.Message{
				Role:       llm.RoleTool,
				Content:    payload,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
			if !completed && call.Function.Name == c.config.CompletionTool {
				completed = true
			}
		}
		if completed {
			return c.completeAgent(agent, started)
		}
	}

	return c.failAgent(agent, started, "maximum iterations reached")
}

func (c *Coordinator) completeAgent(agent *agentContext, started time.Time) AgentResult {
	c.setStatus(agent.index, StatusCompleted)
	if c.config.Debug {
		log.Printf("[agent %d] completed after %d iteration(s)", agent.index, agent.iterations)
	}
	return AgentResult{
		AgentIndex: agent.index,
		Text:       agent.text(),
		Iterations: agent.iterations,
		Duration:   time.Since(started),
	}
}

func (c *Coordinator) failAgent(agent *agentContext, started time.Time, reason string) AgentResult {
	c.setStatus(agent.index, StatusFailed)
	if c.config.Debug {
		log.Printf("[agent %d] failed after %d iteration(s): %s", agent.index, agent.iterations, reason)
	}
	return AgentResult{
		AgentIndex: agent.index,
		Text:       agent.text(),
		Err:        reason,
		Iterations: agent.iterations,
		Duration:   time.Since(started),
	}
}
