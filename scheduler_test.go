package tardy

import (
	"testing"

	"github.com/Torbatti/tardy/aio"
)

func noopEntry(rt *Runtime, meta TaskMeta, result aio.Result) error { return nil }

func TestSchedulerSpawnMarksRunnable(t *testing.T) {
	s := newScheduler(4)
	idx, err := s.spawn(noopEntry, StateRunnable)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if s.occupiedCount() != 1 {
		t.Fatalf("occupiedCount = %d, want 1", s.occupiedCount())
	}
	if s.runnableCount() != 1 {
		t.Fatalf("runnableCount = %d, want 1", s.runnableCount())
	}
	snap := s.snapshotRunnable()
	if len(snap) != 1 || snap[0] != idx {
		t.Fatalf("snapshotRunnable = %v, want [%v]", snap, idx)
	}
}

func TestSchedulerSpawnWaitingIsNotRunnable(t *testing.T) {
	s := newScheduler(4)
	if _, err := s.spawn(noopEntry, StateWaiting); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if s.runnableCount() != 0 {
		t.Fatalf("runnableCount = %d, want 0", s.runnableCount())
	}
	if s.occupiedCount() != 1 {
		t.Fatalf("occupiedCount = %d, want 1", s.occupiedCount())
	}
}

func TestSchedulerOutOfSlots(t *testing.T) {
	s := newScheduler(1)
	if _, err := s.spawn(noopEntry, StateRunnable); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	if _, err := s.spawn(noopEntry, StateRunnable); err != ErrOutOfSlots {
		t.Fatalf("second spawn err = %v, want ErrOutOfSlots", err)
	}
}

func TestSchedulerSetRunnablePanicsWhenNotWaiting(t *testing.T) {
	s := newScheduler(2)
	idx, _ := s.spawn(noopEntry, StateRunnable)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when resuming an already-runnable task")
		}
	}()
	s.setRunnable(idx)
}

func TestSchedulerReleaseClearsBothBitmaps(t *testing.T) {
	s := newScheduler(2)
	idx, _ := s.spawn(noopEntry, StateRunnable)
	s.release(idx)
	if s.occupiedCount() != 0 {
		t.Fatalf("occupiedCount = %d, want 0", s.occupiedCount())
	}
	if s.runnableCount() != 0 {
		t.Fatalf("runnableCount = %d, want 0", s.runnableCount())
	}
}

func TestSchedulerSnapshotOrderIsAscending(t *testing.T) {
	s := newScheduler(8)
	var last = -1
	for i := 0; i < 5; i++ {
		idx, _ := s.spawn(noopEntry, StateRunnable)
		if int(idx) <= last {
			t.Fatalf("expected ascending indices from a fresh pool, got %d after %d", idx, last)
		}
		last = int(idx)
	}
	snap := s.snapshotRunnable()
	for i := 1; i < len(snap); i++ {
		if snap[i] <= snap[i-1] {
			t.Fatalf("snapshotRunnable not ascending: %v", snap)
		}
	}
}
