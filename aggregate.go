package fanout

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/danhoughton/fanout/llm"
)

// AllFailedMessage is returned when no agent produced a usable result
const AllFailedMessage = "All agents failed to complete their subtasks. No answer could be produced."

// Aggregator merges successful agent results into one final answer
type Aggregator struct {
	gateway *Gateway
	config  *Config
}

// NewAggregator creates an aggregator on top of a gateway
func NewAggregator(gateway *Gateway, config *Config) *Aggregator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Aggregator{gateway: gateway, config: config}
}

// Aggregate combines results ordered by agent index. Zero successes yield
// the fixed all-failed message; a single success is returned verbatim with
// no LLM call; multiple successes go through one synthesis call, falling
// back to the labeled raw concatenation if that call fails.
func (a *Aggregator) Aggregate(ctx context.Context, results []AgentResult) string {
	var successes []AgentResult
	for _, result := range results {
		if result.Success() {
			successes = append(successes, result)
		}
	}

	switch len(successes) {
	case 0:
		return AllFailedMessage
	case 1:
		return successes[0].Text
	}

	labeled := labelResponses(successes)
	prompt := renderPrompt(a.config.SynthesisPrompt, map[string]string{
		"num_responses":   strconv.Itoa(len(successes)),
		"agent_responses": labeled,
	})

	msg, err := a.gateway.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, nil)
	if err != nil || strings.TrimSpace(msg.Content) == "" {
		if a.config.Debug {
			log.Printf("[aggregate] synthesis failed (%v), returning raw concatenation", err)
		}
		return labeled
	}
	return msg.Content
}

// labelResponses renders each successful result under its agent heading
func labelResponses(successes []AgentResult) string {
	var b strings.Builder
	for _, result := range successes {
		fmt.Fprintf(&b, "=== AGENT %d RESPONSE ===\n%s\n\n", result.AgentIndex+1, result.Text)
	}
	return strings.TrimSpace(b.String())
}
