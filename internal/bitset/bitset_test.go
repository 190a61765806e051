package bitset

import "testing"

func TestSetClearTest(t *testing.T) {
	s := New(70)
	s.Set(0)
	s.Set(63)
	s.Set(64)
	s.Set(69)
	if !s.Test(0) || !s.Test(63) || !s.Test(64) || !s.Test(69) {
		t.Fatal("expected bits to be set")
	}
	if s.Count() != 4 {
		t.Fatalf("count = %d, want 4", s.Count())
	}
	s.Clear(63)
	if s.Test(63) {
		t.Fatal("expected bit 63 cleared")
	}
	if s.Count() != 3 {
		t.Fatalf("count = %d, want 3", s.Count())
	}
}

func TestFirstClear(t *testing.T) {
	s := New(4)
	if got := s.FirstClear(); got != 0 {
		t.Fatalf("FirstClear = %d, want 0", got)
	}
	s.Set(0)
	s.Set(1)
	if got := s.FirstClear(); got != 2 {
		t.Fatalf("FirstClear = %d, want 2", got)
	}
	s.Set(2)
	s.Set(3)
	if got := s.FirstClear(); got != -1 {
		t.Fatalf("FirstClear = %d, want -1 (full)", got)
	}
}

func TestEachAscending(t *testing.T) {
	s := New(128)
	for _, i := range []int{5, 1, 127, 64, 0} {
		s.Set(i)
	}
	got := s.Snapshot()
	want := []int{0, 1, 5, 64, 127}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestClearAll(t *testing.T) {
	s := New(10)
	s.Set(3)
	s.Set(7)
	s.ClearAll()
	if s.Count() != 0 {
		t.Fatal("expected empty set after ClearAll")
	}
}
