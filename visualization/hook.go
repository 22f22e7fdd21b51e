package visualization

import (
	"time"

	"github.com/danhoughton/fanout"
)

// Hook is a fanout.ProgressSink that mirrors agent status transitions to
// the progress server. Attach it to a coordinator via NewCoordinator's
// sink arguments.
type Hook struct {
	server *Server
}

var _ fanout.ProgressSink = (*Hook)(nil)

// NewHook starts a progress server on the given port and returns the sink
func NewHook(port int) *Hook {
	server := NewServer()
	go server.Start(port)
	return &Hook{server: server}
}

// OnUpdate implements fanout.ProgressSink
func (h *Hook) OnUpdate(agentIndex int, status fanout.AgentStatus) {
	h.server.updateSnapshot(agentIndex, status.String())
	h.server.BroadcastEvent(Event{
		Type: EventAgentStatus,
		Data: AgentStatusData{
			AgentIndex: agentIndex,
			Status:     status.String(),
		},
		Timestamp: time.Now(),
	})
}

// OnRunStart announces a new run and resets the snapshot to n queued slots
func (h *Hook) OnRunStart(query string, agents int) {
	statuses := make([]string, agents)
	for i := range statuses {
		statuses[i] = fanout.StatusQueued.String()
	}
	h.server.setSnapshot(statuses)
	h.server.BroadcastEvent(Event{
		Type: EventRunStarted,
		Data: RunStartedData{
			Query:  query,
			Agents: agents,
		},
		Timestamp: time.Now(),
	})
}

// OnRunEnd announces a finished run
func (h *Hook) OnRunEnd(run *fanout.TaskRun) {
	h.server.BroadcastEvent(Event{
		Type: EventRunEnded,
		Data: RunEndedData{
			SessionID:   run.SessionID,
			FinalAnswer: run.FinalAnswer,
			Duration:    run.Duration,
		},
		Timestamp: time.Now(),
	})
}
