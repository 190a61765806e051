package aio_test

import (
	"os"
	"testing"

	"github.com/Torbatti/tardy/aio"
	"github.com/Torbatti/tardy/slot"
)

func mustSim(t *testing.T) *aio.Sim {
	t.Helper()
	s, err := aio.NewSim(aio.Options{JobsMax: 32, ReapMax: 8})
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSimTimerCompletesOnNextReap(t *testing.T) {
	s := mustSim(t)
	const task slot.Index = 5
	if err := s.QueueTimer(task, aio.Timespec{Nanos: 1}); err != nil {
		t.Fatal(err)
	}
	out := make([]aio.Completion, 4)
	n, err := s.Reap(false, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Reap returned %d completions, want 1", n)
	}
	if out[0].Task != task || out[0].Result.Kind != aio.KindNone {
		t.Fatalf("unexpected completion: %+v", out[0])
	}
	if s.Outstanding() != 0 {
		t.Fatalf("Outstanding() = %d, want 0", s.Outstanding())
	}
}

func TestSimReapNeverExceedsBuffer(t *testing.T) {
	s := mustSim(t)
	for i := slot.Index(0); i < 10; i++ {
		if err := s.QueueTimer(i, aio.Timespec{}); err != nil {
			t.Fatal(err)
		}
	}
	out := make([]aio.Completion, 3)
	n, err := s.Reap(false, out)
	if err != nil {
		t.Fatal(err)
	}
	if n > len(out) {
		t.Fatalf("Reap returned %d completions, buffer only holds %d", n, len(out))
	}
}

func TestSimWakeCompletion(t *testing.T) {
	s := mustSim(t)
	if err := s.Wake(); err != nil {
		t.Fatal(err)
	}
	out := make([]aio.Completion, 4)
	n, err := s.Reap(false, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || out[0].Result.Kind != aio.KindWake {
		t.Fatalf("expected one wake completion, got %+v (n=%d)", out, n)
	}
	// wake never releases its job, so outstanding accounting must not
	// count it and a second wake still works.
	if err := s.Wake(); err != nil {
		t.Fatal(err)
	}
	n, err = s.Reap(false, out)
	if err != nil || n != 1 {
		t.Fatalf("second wake: n=%d err=%v", n, err)
	}
}

func TestSimOpenStatReadClose(t *testing.T) {
	s := mustSim(t)
	f, err := os.CreateTemp(t.TempDir(), "sim-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("abcdef"); err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	f.Close()

	const task slot.Index = 1
	if err := s.QueueOpen(task, path); err != nil {
		t.Fatal(err)
	}
	out := make([]aio.Completion, 4)
	n, err := s.Reap(false, out)
	if err != nil || n != 1 || out[0].Result.Kind != aio.KindFD || out[0].Result.FD < 0 {
		t.Fatalf("open completion: n=%d err=%v out=%+v", n, err, out)
	}
	fd := out[0].Result.FD

	if err := s.QueueStat(task, fd); err != nil {
		t.Fatal(err)
	}
	n, err = s.Reap(false, out)
	if err != nil || n != 1 || out[0].Result.Kind != aio.KindStat || out[0].Result.Stat.Size != 6 {
		t.Fatalf("stat completion: n=%d err=%v out=%+v", n, err, out)
	}

	buf := make([]byte, 6)
	if err := s.QueueRead(task, fd, buf, 0); err != nil {
		t.Fatal(err)
	}
	n, err = s.Reap(false, out)
	if err != nil || n != 1 || out[0].Result.Value != 6 || string(buf) != "abcdef" {
		t.Fatalf("read completion: n=%d err=%v out=%+v buf=%q", n, err, out, buf)
	}

	if err := s.QueueClose(task, fd); err != nil {
		t.Fatal(err)
	}
	n, err = s.Reap(false, out)
	if err != nil || n != 1 || out[0].Result.Kind != aio.KindNone {
		t.Fatalf("close completion: n=%d err=%v out=%+v", n, err, out)
	}
}

func TestSimAcceptRecvSendRoundTrip(t *testing.T) {
	s := mustSim(t)
	listener := s.Listen()
	s.RegisterDialTarget("peer", listener)

	const acceptor slot.Index = 1
	if err := s.QueueAccept(acceptor, listener); err != nil {
		t.Fatal(err)
	}

	clientFD, err := s.Dial(listener)
	if err != nil {
		t.Fatal(err)
	}

	out := make([]aio.Completion, 4)
	n, err := s.Reap(false, out)
	if err != nil || n != 1 || out[0].Result.Kind != aio.KindSocket {
		t.Fatalf("accept completion: n=%d err=%v out=%+v", n, err, out)
	}
	serverFD := out[0].Result.Socket

	if err := s.InjectBytes(clientFD, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	const reader slot.Index = 2
	if err := s.QueueRecv(reader, serverFD, buf); err != nil {
		t.Fatal(err)
	}
	n, err = s.Reap(false, out)
	if err != nil || n != 1 || out[0].Result.Value != 5 || string(buf[:5]) != "hello" {
		t.Fatalf("recv completion: n=%d err=%v out=%+v buf=%q", n, err, out, buf[:5])
	}

	const sender slot.Index = 3
	if err := s.QueueSend(sender, serverFD, []byte("world")); err != nil {
		t.Fatal(err)
	}
	n, err = s.Reap(false, out)
	if err != nil || n != 1 || out[0].Result.Value != 5 {
		t.Fatalf("send completion: n=%d err=%v out=%+v", n, err, out)
	}
}
