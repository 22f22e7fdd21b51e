package visualization

import (
	"time"
)

// EventType represents different types of progress events
type EventType string

const (
	EventRunStarted  EventType = "run_started"
	EventAgentStatus EventType = "agent_status"
	EventRunEnded    EventType = "run_ended"
)

// Event represents one progress event pushed to connected clients
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// AgentStatusData carries one agent's status transition
type AgentStatusData struct {
	AgentIndex int    `json:"agent_index"`
	Status     string `json:"status"`
}

// RunStartedData carries the shape of a new run
type RunStartedData struct {
	Query  string `json:"query"`
	Agents int    `json:"agents"`
}

// RunEndedData carries the outcome of a finished run
type RunEndedData struct {
	SessionID   string        `json:"session_id"`
	FinalAnswer string        `json:"final_answer"`
	Duration    time.Duration `json:"duration"`
}
