package pool_test

import (
	"testing"

	"github.com/Torbatti/tardy/pool"
	"github.com/Torbatti/tardy/slot"
)

func TestBorrowReleaseAccounting(t *testing.T) {
	p := pool.New[int](4, nil)
	var indices []slot.Index
	for i := 0; i < 4; i++ {
		idx, item, err := p.Borrow()
		if err != nil {
			t.Fatalf("Borrow() #%d: %v", i, err)
		}
		*item = i * 10
		indices = append(indices, idx)
	}
	if _, _, err := p.Borrow(); err != pool.ErrOutOfSlots {
		t.Fatalf("Borrow() on full pool = %v, want ErrOutOfSlots", err)
	}
	if p.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", p.Len())
	}

	p.Release(indices[1])
	if p.Len() != 3 {
		t.Fatalf("Len() after release = %d, want 3", p.Len())
	}

	idx, item, err := p.Borrow()
	if err != nil {
		t.Fatalf("Borrow() after release: %v", err)
	}
	if idx != indices[1] {
		t.Fatalf("Borrow() reused slot %d, want %d", idx, indices[1])
	}
	*item = 99
	if got := *p.Get(idx); got != 99 {
		t.Fatalf("Get(%d) = %d, want 99", idx, got)
	}
}

func TestBorrowHintPrefersRequestedSlot(t *testing.T) {
	p := pool.New[string](4, nil)
	idx, _, err := p.BorrowHint(2)
	if err != nil {
		t.Fatalf("BorrowHint: %v", err)
	}
	if idx != 2 {
		t.Fatalf("BorrowHint returned %d, want 2", idx)
	}

	// Slot 2 is now taken; hinting it again must fall back elsewhere.
	idx2, _, err := p.BorrowHint(2)
	if err != nil {
		t.Fatalf("BorrowHint fallback: %v", err)
	}
	if idx2 == 2 {
		t.Fatal("BorrowHint should not double-borrow an occupied slot")
	}
}

func TestBorrowAssumeUnsetPanicsOnConflict(t *testing.T) {
	p := pool.New[int](2, nil)
	p.BorrowAssumeUnset(0)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on re-borrow of assumed-unset slot")
		}
	}()
	p.BorrowAssumeUnset(0)
}

func TestDeinitCallsFinalizer(t *testing.T) {
	p := pool.New[int](3, nil)
	idxA, a, _ := p.Borrow()
	*a = 1
	idxB, b, _ := p.Borrow()
	*b = 2

	seen := map[slot.Index]int{}
	p.Deinit(func(i slot.Index, item *int) {
		seen[i] = *item
	})

	if len(seen) != 2 || seen[idxA] != 1 || seen[idxB] != 2 {
		t.Fatalf("Deinit finalizer saw %v, want {%d:1 %d:2}", seen, idxA, idxB)
	}
}

func TestIndicesStableAcrossGrowthOfOtherSlots(t *testing.T) {
	p := pool.New[int](8, nil)
	idx, item, err := p.Borrow()
	if err != nil {
		t.Fatal(err)
	}
	*item = 42
	for i := 0; i < 6; i++ {
		p.Borrow()
	}
	if got := *p.Get(idx); got != 42 {
		t.Fatalf("stable index contents = %d, want 42", got)
	}
}
