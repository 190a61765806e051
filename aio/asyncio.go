package aio

import "github.com/Torbatti/tardy/slot"

// AsyncIO is the polymorphic contract every OS backend honors. The runtime
// loop drives it: task bodies call the Queue* methods to suspend on an
// operation, the loop calls Submit once per tick, and Reap harvests
// completions to hand back to the scheduler.
//
// Every Queue* call registers task as the owner of the resulting
// completion; task must already be marked waiting by the caller (a task
// does this itself with Runtime.MarkWaiting). Neither the backend nor the
// runtime checks this.
type AsyncIO interface {
	// QueueTimer arms a one-shot relative timer.
	QueueTimer(task slot.Index, d Timespec) error
	// QueueOpen opens path for reading, non-blocking under the hood.
	QueueOpen(task slot.Index, path string) error
	// QueueStat stats an already-open file descriptor.
	QueueStat(task slot.Index, fd int32) error
	// QueueRead reads into buf at off (off < 0 means "wherever the fd
	// currently is", used for non-seekable descriptors).
	QueueRead(task slot.Index, fd int32, buf []byte, off int64) error
	// QueueWrite writes buf at off, with the same off < 0 convention as
	// QueueRead.
	QueueWrite(task slot.Index, fd int32, buf []byte, off int64) error
	// QueueClose closes fd.
	QueueClose(task slot.Index, fd int32) error
	// QueueAccept accepts one connection on the listening socket sock.
	QueueAccept(task slot.Index, sock int32) error
	// QueueConnect connects sock to host:port.
	QueueConnect(task slot.Index, sock int32, host string, port uint16) error
	// QueueRecv receives into buf on sock.
	QueueRecv(task slot.Index, sock int32, buf []byte) error
	// QueueSend sends buf on sock.
	QueueSend(task slot.Index, sock int32, buf []byte) error

	// Wake is safe to call from any goroutine that shares this backend; it
	// interrupts a blocked Reap with a synthetic wake Completion.
	Wake() error
	// Submit hands pending work to the kernel. A no-op for readiness-based
	// backends such as epoll.
	Submit() error
	// Reap harvests completions into out, returning how many were
	// written. If wait is true, it blocks until at least one is
	// available, unless fallback-blocking work is outstanding, in which
	// case it polls instead of blocking so that work keeps progressing.
	Reap(wait bool, out []Completion) (int, error)
	// Outstanding reports the number of jobs currently in flight,
	// excluding the permanent wake job. The runtime loop's quiescence
	// guard uses this to avoid exiting while a backend still has pending
	// work that hasn't produced a runnable task yet.
	Outstanding() int
	// Close releases all backend resources. Queued operations that never
	// completed are abandoned.
	Close() error
}
