package fanout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danhoughton/fanout/llm"
)

// Coordinator fans one query out to N concurrent agent loops and merges
// whatever they produce. One coordinator serves one run at a time; the
// progress table is sized at construction and reset per run.
type Coordinator struct {
	gateway    *Gateway
	registry   *Registry
	decomposer *Decomposer
	aggregator *Aggregator
	config     *Config
	progress   *progressTable
	sinks      []ProgressSink

	runMu sync.Mutex
}

// NewCoordinator builds a coordinator over an LLM client and tool registry.
// A nil config gets defaults; a nil registry gets an empty one (agents then
// run pure-text loops until the model stops calling tools).
func NewCoordinator(client llm.LLM, registry *Registry, config *Config, sinks ...ProgressSink) (*Coordinator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}

	gateway := NewGateway(client, config)
	return &Coordinator{
		gateway:    gateway,
		registry:   registry,
		decomposer: NewDecomposer(gateway, config),
		aggregator: NewAggregator(gateway, config),
		config:     config,
		progress:   newProgressTable(config.ParallelAgents),
		sinks:      sinks,
	}, nil
}

// Orchestrate runs the whole pipeline and returns the final answer. It
// always returns a string; total failure comes back as the fixed all-failed
// message, never as an error or a panic.
func (c *Coordinator) Orchestrate(ctx context.Context, query string) string {
	return c.Run(ctx, query).FinalAnswer
}

// Run is Orchestrate with the full TaskRun exposed, for callers that
// persist or display per-agent results.
func (c *Coordinator) Run(ctx context.Context, query string) *TaskRun {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	run := &TaskRun{
		SessionID: uuid.New().String(),
		Query:     query,
		StartedAt: time.Now(),
	}

	if c.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.TaskTimeout)
		defer cancel()
	}

	n := c.config.ParallelAgents
	c.progress.reset()
	run.Subtasks = c.decomposer.Decompose(ctx, query, n)

	if c.config.Debug {
		log.Printf("[coordinator] session %s: %d subtasks for %q", run.SessionID, n, query)
	}

	// Fork-join: every agent runs to its own terminal state; one failure
	// never cancels the others. Each goroutine writes only its own slot.
	results := make([]AgentResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			results[index] = c.runAgent(ctx, index, run.Subtasks[index])
		}(i)
	}
	wg.Wait()

	run.Results = results
	run.FinalAnswer = c.aggregator.Aggregate(ctx, results)
	run.Duration = time.Since(run.StartedAt)
	return run
}

// ProgressSnapshot returns the current status of every agent slot. Safe to
// call at any time, including while a run is in flight.
func (c *Coordinator) ProgressSnapshot() []AgentStatus {
	return c.progress.snapshot()
}

// setStatus advances one slot and notifies sinks on an effective transition
func (c *Coordinator) setStatus(index int, status AgentStatus) {
	if !c.progress.set(index, status) {
		return
	}
	for _, sink := range c.sinks {
		sink.OnUpdate(index, status)
	}
}
