package tardy

import (
	"github.com/Torbatti/tardy/aio"
	"github.com/Torbatti/tardy/slot"
)

// State is one of the three positions a Task occupies in its lifecycle.
type State int

const (
	// StateRunnable tasks are eligible for dispatch on the next tick.
	StateRunnable State = iota
	// StateWaiting tasks are occupied but not runnable; they resume when
	// their owning Job completes.
	StateWaiting
	// StateDead marks a released slot; its Task record is stale.
	StateDead
)

func (s State) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateWaiting:
		return "waiting"
	case StateDead:
		return "dead"
	default:
		return "invalid"
	}
}

// entry is the type-erased trampoline every Task carries. Spawn/SpawnDelay
// build one per call via a generic closure, so the opaque-context-pointer
// pattern called for by the design notes is expressed here as ordinary Go
// closures capturing a typed value instead of an unsafe cast.
type entry func(rt *Runtime, meta TaskMeta, result aio.Result) error

// Task is a single cooperative unit of work. Its zero value is never
// observed by user code; the scheduler always hands out fully-populated
// tasks via Spawn/SpawnDelay.
type Task struct {
	index slot.Index
	state State
	fn    entry

	// result is the tagged value written by the backend when a completion
	// targets this task while it is waiting. It is parked here rather than
	// dispatched immediately, and is only handed to fn on the following
	// tick's dispatch pass.
	result aio.Result
}

// TaskMeta is the read-only view of a Task handed to its own entry point,
// matching the "&TaskMetadata" parameter named by the runtime's external
// interface.
type TaskMeta struct {
	Index slot.Index
}
