package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/danhoughton/fanout/llm"
)

var errBadSubtaskList = errors.New("response is not a usable subtask list")

// Decomposer turns the original query into exactly n subtask prompts via a
// single LLM call, with a deterministic local fallback.
type Decomposer struct {
	gateway *Gateway
	config  *Config
}

// NewDecomposer creates a decomposer on top of a gateway
func NewDecomposer(gateway *Gateway, config *Config) *Decomposer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Decomposer{gateway: gateway, config: config}
}

// Decompose returns exactly n subtask strings covering distinct angles of
// the query. Any failure — gateway error, malformed JSON, wrong count —
// falls back to fixed template phrasings, so decomposition works even with
// the gateway fully unavailable.
func (d *Decomposer) Decompose(ctx context.Context, query string, n int) []string {
	if n < 1 {
		n = 1
	}

	prompt := renderPrompt(d.config.DecompositionPrompt, map[string]string{
		"user_input": query,
		"num_agents": strconv.Itoa(n),
	})

	msg, err := d.gateway.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, nil)
	if err != nil {
		if d.config.Debug {
			log.Printf("[decompose] gateway failed, using fallback subtasks: %v", err)
		}
		return fallbackSubtasks(query, n)
	}

	subtasks, err := parseSubtasks(msg.Content, n)
	if err != nil {
		if d.config.Debug {
			log.Printf("[decompose] %v, using fallback subtasks", err)
		}
		return fallbackSubtasks(query, n)
	}
	return subtasks
}

// parseSubtasks extracts a JSON array of exactly n non-empty strings.
// Models wrap arrays in prose or code fences often enough that we cut from
// the first '[' to the last ']' before unmarshaling.
func parseSubtasks(content string, n int) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON array found", errBadSubtaskList)
	}

	var subtasks []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &subtasks); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadSubtaskList, err)
	}
	if len(subtasks) != n {
		return nil, fmt.Errorf("%w: got %d entries, want %d", errBadSubtaskList, len(subtasks), n)
	}
	for i, subtask := range subtasks {
		subtasks[i] = strings.TrimSpace(subtask)
		if subtasks[i] == "" {
			return nil, fmt.Errorf("%w: entry %d is empty", errBadSubtaskList, i)
		}
	}
	return subtasks, nil
}

// fallbackSubtasks is the pure, deterministic decomposition used when the
// LLM path fails: fixed variant phrasings of the original query, cycled and
// suffixed to exactly n distinct entries.
func fallbackSubtasks(query string, n int) []string {
	templates := []string{
		"Research comprehensive background information about: %s",
		"Analyze current trends and recent developments around: %s",
		"Explore practical applications and real-world examples of: %s",
		"Assess risks, limitations, and open problems related to: %s",
	}

	subtasks := make([]string, n)
	for i := 0; i < n; i++ {
		subtask := fmt.Sprintf(templates[i%len(templates)], query)
		if i >= len(templates) {
			subtask = fmt.Sprintf("%s (part %d)", subtask, i/len(templates)+1)
		}
		subtasks[i] = subtask
	}
	return subtasks
}
