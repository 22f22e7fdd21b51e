package fanout

import (
	"sync/atomic"
)

// ProgressSink observes per-agent status transitions. Implementations must
// be fast or hand off to their own goroutine; they are invoked from the
// agent that made the transition. The coordinator works with no sinks.
type ProgressSink interface {
	OnUpdate(agentIndex int, status AgentStatus)
}

// progressTable is the only state shared between agents. Each slot is an
// atomically written status; an agent only ever writes its own index, and
// writes only move forward, so readers need no lock and can never observe
// a regression within a run.
type progressTable struct {
	slots []atomic.Int32
}

func newProgressTable(n int) *progressTable {
	return &progressTable{slots: make([]atomic.Int32, n)}
}

// set advances a slot. It refuses transitions that would move backwards or
// leave a terminal state, and reports whether the write took effect.
func (t *progressTable) set(index int, status AgentStatus) bool {
	if index < 0 || index >= len(t.slots) {
		return false
	}
	for {
		current := t.slots[index].Load()
		if AgentStatus(current).Terminal() || current >= int32(status) {
			return false
		}
		if t.slots[index].CompareAndSwap(current, int32(status)) {
			return true
		}
	}
}

func (t *progressTable) get(index int) AgentStatus {
	if index < 0 || index >= len(t.slots) {
		return StatusQueued
	}
	return AgentStatus(t.slots[index].Load())
}

// snapshot copies the table. Each slot read is atomic; a snapshot taken
// while agents run is per-slot consistent, which is all callers need.
func (t *progressTable) snapshot() []AgentStatus {
	out := make([]AgentStatus, len(t.slots))
	for i := range t.slots {
		out[i] = AgentStatus(t.slots[i].Load())
	}
	return out
}

// reset returns every slot to QUEUED at the start of a run
func (t *progressTable) reset() {
	for i := range t.slots {
		t.slots[i].Store(int32(StatusQueued))
	}
}
