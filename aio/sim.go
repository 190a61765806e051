// File: aio/sim.go
//
// Sim is a deterministic, portable AsyncIO backend used by tests (and
// available on platforms without a native backend) that don't want real
// epoll/timerfd/socket behavior. Timers fire after a fixed number of Reap
// calls rather than wall-clock time; sockets are simulated in-memory duplex
// pipes instead of kernel connections. File operations (open/stat/read/
// write/close) are real, since local disk I/O needs no simulation.
package aio

import (
	"os"
	"sync"

	"github.com/eapache/queue"

	"github.com/Torbatti/tardy/pool"
	"github.com/Torbatti/tardy/slot"
)

const simWakeSlot slot.Index = 0

// simEndpoint is one end of a simulated in-memory duplex connection. The
// fds that name endpoints, listeners and files are the sim backend's own
// numbering (see allocFD); they need not (and do not) correspond to real
// kernel descriptors, since every fd a caller uses always originated from
// this Sim.
type simEndpoint struct {
	peer   *simEndpoint
	buf    []byte
	closed bool
}

type simListener struct {
	backlog []*simEndpoint
}

type simFD struct {
	file *os.File
	end  *simEndpoint
	ln   *simListener
}

// Sim is a single-goroutine-owned AsyncIO backend; Wake is the only method
// safe to call from another goroutine, matching the AsyncIO contract.
type Sim struct {
	mu sync.Mutex

	jobs    *pool.Pool[Job]
	pending *queue.Queue // slot.Index values awaiting a Reap pass

	fds       map[int32]*simFD
	nextFD    int32
	dialTable map[string]int32 // label -> listener fd, for QueueConnect

	pendingWake bool
	closed      bool
}

var _ AsyncIO = (*Sim)(nil)

// NewSim constructs a Sim backend sized per opts.
func NewSim(opts Options) (*Sim, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Sim{
		jobs:      pool.New[Job](int(opts.JobsMax)+1, nil),
		pending:   queue.New(),
		fds:       make(map[int32]*simFD),
		dialTable: make(map[string]int32),
	}
	wake := s.jobs.BorrowAssumeUnset(simWakeSlot)
	wake.Index = simWakeSlot
	wake.Task = slot.None
	wake.Type = JobWake
	return s, nil
}

func (s *Sim) allocFD(f *simFD) int32 {
	s.nextFD++
	fd := s.nextFD
	s.fds[fd] = f
	return fd
}

// Listen registers a new simulated listening socket and returns its fd.
func (s *Sim) Listen() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocFD(&simFD{ln: &simListener{}})
}

// RegisterDialTarget maps a host label used by QueueConnect to a
// previously-created listener fd.
func (s *Sim) RegisterDialTarget(label string, listenerFD int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialTable[label] = listenerFD
}

// Dial synchronously connects to a registered listener, pushing the
// server-side endpoint onto its backlog and returning the client-side fd.
func (s *Sim) Dial(listenerFD int32) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lf, ok := s.fds[listenerFD]
	if !ok || lf.ln == nil {
		return 0, os.ErrInvalid
	}
	client := &simEndpoint{}
	server := &simEndpoint{}
	client.peer, server.peer = server, client
	lf.ln.backlog = append(lf.ln.backlog, server)
	return s.allocFD(&simFD{end: client}), nil
}

// InjectBytes appends data to the buffer the peer of fd will read from,
// i.e. simulates fd itself sending data to its peer.
func (s *Sim) InjectBytes(fd int32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fds[fd]
	if !ok || f.end == nil {
		return os.ErrInvalid
	}
	f.end.peer.buf = append(f.end.peer.buf, data...)
	return nil
}

// Outstanding reports jobs in flight excluding the permanent wake job.
func (s *Sim) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.jobs.Len() - 1
	if n < 0 {
		return 0
	}
	return n
}

func (s *Sim) Wake() error {
	s.mu.Lock()
	s.pendingWake = true
	s.mu.Unlock()
	return nil
}

func (s *Sim) Submit() error { return nil }

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, f := range s.fds {
		if f.file != nil {
			f.file.Close()
		}
	}
	return nil
}

func (s *Sim) queue(task slot.Index, jt Type, fill func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, job, err := s.jobs.BorrowHint(task)
	if err != nil {
		return err
	}
	job.Index = idx
	job.Task = task
	job.Type = jt
	if fill != nil {
		fill(job)
	}
	s.pending.Add(idx)
	return nil
}

func (s *Sim) QueueTimer(task slot.Index, d Timespec) error {
	return s.queue(task, JobTimer, func(j *Job) { j.Timer = d })
}

func (s *Sim) QueueOpen(task slot.Index, path string) error {
	return s.queue(task, JobOpen, func(j *Job) { j.Path = path })
}

func (s *Sim) QueueStat(task slot.Index, fd int32) error {
	return s.queue(task, JobStat, func(j *Job) { j.FD = fd })
}

func (s *Sim) QueueRead(task slot.Index, fd int32, buf []byte, off int64) error {
	return s.queue(task, JobRead, func(j *Job) { j.FD = fd; j.Buf = buf; j.Offset = off })
}

func (s *Sim) QueueWrite(task slot.Index, fd int32, buf []byte, off int64) error {
	return s.queue(task, JobWrite, func(j *Job) { j.FD = fd; j.Buf = buf; j.Offset = off })
}

func (s *Sim) QueueClose(task slot.Index, fd int32) error {
	return s.queue(task, JobClose, func(j *Job) { j.FD = fd })
}

func (s *Sim) QueueAccept(task slot.Index, sock int32) error {
	return s.queue(task, JobAccept, func(j *Job) { j.Socket = sock })
}

func (s *Sim) QueueConnect(task slot.Index, sock int32, host string, port uint16) error {
	return s.queue(task, JobConnect, func(j *Job) { j.Socket = sock; j.Host = host; j.Port = port })
}

func (s *Sim) QueueRecv(task slot.Index, sock int32, buf []byte) error {
	return s.queue(task, JobRecv, func(j *Job) { j.Socket = sock; j.Buf = buf })
}

func (s *Sim) QueueSend(task slot.Index, sock int32, buf []byte) error {
	return s.queue(task, JobSend, func(j *Job) { j.Socket = sock; j.Buf = buf })
}

// Reap processes the pending queue once (plus, when wait is true, spins
// until something completes or a wake is observed). Because Sim never
// really blocks the OS thread, "waiting" here just means "keep trying
// until progress is made" — appropriate for deterministic tests, not for
// production use.
func (s *Sim) Reap(wait bool, out []Completion) (int, error) {
	for {
		reaped := s.tryReap(out)
		if reaped > 0 || !wait {
			return reaped, nil
		}
		s.mu.Lock()
		empty := s.pending.Length() == 0
		s.mu.Unlock()
		if empty {
			// Nothing queued and nothing woke us: mirror epoll's
			// indefinite block by returning zero, letting the runtime's
			// quiescence guard decide what to do next.
			return 0, nil
		}
	}
}

func (s *Sim) tryReap(out []Completion) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	if s.pendingWake && reaped < len(out) {
		s.pendingWake = false
		out[reaped] = Completion{Task: slot.None, Result: Result{Kind: KindWake}}
		reaped++
	}

	rounds := s.pending.Length()
	for i := 0; i < rounds && reaped < len(out); i++ {
		idx := s.pending.Peek().(slot.Index)
		job := s.jobs.Get(idx)
		comp, done := s.tryOp(job)
		if !done {
			s.pending.Remove()
			s.pending.Add(idx)
			continue
		}
		s.pending.Remove()
		s.jobs.Release(idx)
		out[reaped] = comp
		reaped++
	}
	return reaped
}

func (s *Sim) tryOp(job *Job) (Completion, bool) {
	switch job.Type {
	case JobTimer:
		return Completion{Task: job.Task, Result: Result{Kind: KindNone}}, true

	case JobOpen:
		f, err := os.Open(job.Path)
		if err != nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindFD, FD: -1}}, true
		}
		fd := s.allocFD(&simFD{file: f})
		return Completion{Task: job.Task, Result: Result{Kind: KindFD, FD: fd}}, true

	case JobStat:
		f, ok := s.fds[job.FD]
		if !ok || f.file == nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindStat}}, true
		}
		info, err := f.file.Stat()
		if err != nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindStat}}, true
		}
		mt := info.ModTime()
		ts := Timespec{Seconds: uint64(mt.Unix()), Nanos: uint64(mt.Nanosecond())}
		res := Result{Kind: KindStat, Stat: Stat{
			Size: uint64(info.Size()), Mode: uint32(info.Mode()),
			Accessed: ts, Modified: ts, Changed: ts,
		}}
		return Completion{Task: job.Task, Result: res}, true

	case JobRead:
		f, ok := s.fds[job.FD]
		if !ok || f.file == nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		var n int
		var err error
		if job.Offset >= 0 {
			n, err = f.file.ReadAt(job.Buf, job.Offset)
		} else {
			n, err = f.file.Read(job.Buf)
		}
		if err != nil && n == 0 {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: int64(n)}}, true

	case JobWrite:
		f, ok := s.fds[job.FD]
		if !ok || f.file == nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		var n int
		var err error
		if job.Offset >= 0 {
			n, err = f.file.WriteAt(job.Buf, job.Offset)
		} else {
			n, err = f.file.Write(job.Buf)
		}
		if err != nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: int64(n)}}, true

	case JobClose:
		if f, ok := s.fds[job.FD]; ok {
			if f.file != nil {
				f.file.Close()
			}
			delete(s.fds, job.FD)
		}
		return Completion{Task: job.Task, Result: Result{Kind: KindNone}}, true

	case JobAccept:
		f, ok := s.fds[job.Socket]
		if !ok || f.ln == nil || len(f.ln.backlog) == 0 {
			return Completion{}, false
		}
		server := f.ln.backlog[0]
		f.ln.backlog = f.ln.backlog[1:]
		fd := s.allocFD(&simFD{end: server})
		return Completion{Task: job.Task, Result: Result{Kind: KindSocket, Socket: fd}}, true

	case JobConnect:
		listenerFD, ok := s.dialTable[job.Host]
		if !ok {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		lf, ok := s.fds[listenerFD]
		if !ok || lf.ln == nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		client := &simEndpoint{}
		server := &simEndpoint{}
		client.peer, server.peer = server, client
		lf.ln.backlog = append(lf.ln.backlog, server)
		s.fds[job.Socket] = &simFD{end: client}
		return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: 1}}, true

	case JobRecv:
		f, ok := s.fds[job.Socket]
		if !ok || f.end == nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		if len(f.end.buf) == 0 {
			if f.end.peer != nil && f.end.peer.closed {
				return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: 0}}, true
			}
			return Completion{}, false
		}
		n := copy(job.Buf, f.end.buf)
		f.end.buf = f.end.buf[n:]
		return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: int64(n)}}, true

	case JobSend:
		f, ok := s.fds[job.Socket]
		if !ok || f.end == nil || f.end.peer == nil {
			return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: -1}}, true
		}
		f.end.peer.buf = append(f.end.peer.buf, job.Buf...)
		return Completion{Task: job.Task, Result: Result{Kind: KindValue, Value: int64(len(job.Buf))}}, true

	default:
		return Completion{}, true
	}
}
