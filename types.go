package fanout

import (
	"time"
)

// AgentStatus represents the lifecycle state of one agent slot
type AgentStatus int32

const (
	StatusQueued AgentStatus = iota
	StatusInitializing
	StatusProcessing
	StatusCompleted
	StatusFailed
)

// String returns a human-readable representation of the status
func (s AgentStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusInitializing:
		return "initializing"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave this status
func (s AgentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AgentResult is the immutable outcome of one agent's loop.
// Err is empty on success. Text may carry partial output even on failure;
// whether to use it is the aggregator's call.
type AgentResult struct {
	AgentIndex int           `json:"agent_index"`
	Text       string        `json:"text"`
	Err        string        `json:"error,omitempty"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}

// Success reports whether the agent completed without error
func (r AgentResult) Success() bool {
	return r.Err == ""
}

// TaskRun captures one whole orchestration: the query, how it was split,
// what each agent produced, and the merged answer.
type TaskRun struct {
	SessionID   string        `json:"session_id"`
	Query       string        `json:"query"`
	Subtasks    []string      `json:"subtasks"`
	Results     []AgentResult `json:"results"`
	FinalAnswer string        `json:"final_answer"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}
