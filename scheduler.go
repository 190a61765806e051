package tardy

import (
	"github.com/Torbatti/tardy/internal/bitset"
	"github.com/Torbatti/tardy/pool"
	"github.com/Torbatti/tardy/slot"
)

// scheduler owns task slot allocation and the runnable/occupied bitmaps. It
// has no knowledge of AsyncIO or the drive loop; Runtime composes it with a
// backend to implement the full contract.
type scheduler struct {
	tasks    *pool.Pool[Task]
	runnable *bitset.Set
}

func newScheduler(capacity int) *scheduler {
	return &scheduler{
		tasks:    pool.New[Task](capacity, nil),
		runnable: bitset.New(capacity),
	}
}

// spawn borrows a task slot, installs fn as its entry point, and marks it
// with initial. Fails with ErrOutOfSlots when the pool is full.
func (s *scheduler) spawn(fn entry, initial State) (slot.Index, error) {
	idx, task, err := s.tasks.Borrow()
	if err != nil {
		return 0, ErrOutOfSlots
	}
	task.index = idx
	task.fn = fn
	task.state = initial
	if initial == StateRunnable {
		s.runnable.Set(int(idx))
	}
	return idx, nil
}

// setRunnable transitions a waiting task to runnable. Precondition: the
// task at i is currently waiting.
func (s *scheduler) setRunnable(i slot.Index) {
	task := s.tasks.Get(i)
	if task.state != StateWaiting {
		panic("tardy: setRunnable on a task that is not waiting")
	}
	task.state = StateRunnable
	s.runnable.Set(int(i))
}

// release clears the occupancy and runnable bits for slot i. The caller is responsible
// for having already marked the task dead.
func (s *scheduler) release(i slot.Index) {
	s.tasks.Release(i)
	s.runnable.Clear(int(i))
}

// occupiedCount reports the number of live task slots.
func (s *scheduler) occupiedCount() int {
	return s.tasks.Len()
}

// runnableCount reports how many tasks are currently eligible for dispatch.
func (s *scheduler) runnableCount() int {
	return s.runnable.Count()
}

// snapshotRunnable returns the currently-runnable indices in ascending
// order, matching the dispatch-order guarantee in the concurrency model.
func (s *scheduler) snapshotRunnable() []slot.Index {
	raw := s.runnable.Snapshot()
	out := make([]slot.Index, len(raw))
	for i, v := range raw {
		out[i] = slot.Index(v)
	}
	return out
}
