package fanout

import (
	"errors"
	"time"
)

var (
	ErrBadParallelism = errors.New("parallel agents must be at least 1")
	ErrBadIterations  = errors.New("max iterations must be at least 1")
)

// Config holds orchestration settings
type Config struct {
	ParallelAgents int           // number of agents spawned per run
	MaxIterations  int           // LLM turns an agent may take before it is failed
	MaxRetries     int           // attempts per gateway call
	RetryBackoff   time.Duration // first backoff, doubled per attempt
	BackoffCap     time.Duration
	RequestTimeout time.Duration // per gateway call, when the caller set no deadline
	TaskTimeout    time.Duration // whole run; 0 disables
	Model          string
	Temperature    float32
	MaxTokens      int
	CompletionTool string // tool name that signals an agent is done

	AgentInstructions   string
	DecompositionPrompt string
	SynthesisPrompt     string

	Debug bool
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		ParallelAgents:      4,
		MaxIterations:       10,
		MaxRetries:          3,
		RetryBackoff:        time.Second,
		BackoffCap:          30 * time.Second,
		RequestTimeout:      60 * time.Second,
		TaskTimeout:         5 * time.Minute,
		Model:               "gpt-4o-mini",
		Temperature:         0.7,
		CompletionTool:      DefaultCompletionTool,
		AgentInstructions:   DefaultAgentInstructions,
		DecompositionPrompt: DefaultDecompositionPrompt,
		SynthesisPrompt:     DefaultSynthesisPrompt,
	}
}

// Validate checks the settings that would silently break a run
func (c *Config) Validate() error {
	if c.ParallelAgents < 1 {
		return ErrBadParallelism
	}
	if c.MaxIterations < 1 {
		return ErrBadIterations
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}
	if c.CompletionTool == "" {
		c.CompletionTool = DefaultCompletionTool
	}
	if c.AgentInstructions == "" {
		c.AgentInstructions = DefaultAgentInstructions
	}
	if c.DecompositionPrompt == "" {
		c.DecompositionPrompt = DefaultDecompositionPrompt
	}
	if c.SynthesisPrompt == "" {
		c.SynthesisPrompt = DefaultSynthesisPrompt
	}
	return nil
}
