//go:build !linux

// File: aio/epoll_other.go
//
// Non-Linux placeholder. The reference epoll backend is Linux-only; other
// platforms are expected to bring their own reactor (io_uring, kqueue, IOCP)
// behind the same AsyncIO contract, the way the wider ecosystem keeps a
// _windows.go/_linux.go split per backend. Until one exists here, every
// method except Outstanding (always 0) and Close (always nil) reports
// ErrNotSupported instead of silently degrading, and the type still
// satisfies AsyncIO so cross-platform callers keep compiling.
package aio

import (
	"fmt"

	"github.com/Torbatti/tardy/slot"
)

// ErrNotSupported is returned by NewEpoll and by every Epoll method other
// than Outstanding and Close on platforms without an epoll backend in this
// build.
var ErrNotSupported = fmt.Errorf("aio: epoll backend not supported on this platform")

// Epoll is an unusable placeholder so callers can still reference the type
// name and satisfy the AsyncIO interface across platforms.
type Epoll struct{}

// NewEpoll always fails on non-Linux builds. Use the Sim backend for tests,
// or bring your own AsyncIO implementation for io_uring/kqueue/IOCP.
func NewEpoll(opts Options) (*Epoll, error) {
	return nil, ErrNotSupported
}

var _ AsyncIO = (*Epoll)(nil)

func (e *Epoll) QueueTimer(task slot.Index, d Timespec) error { return ErrNotSupported }
func (e *Epoll) QueueOpen(task slot.Index, path string) error { return ErrNotSupported }
func (e *Epoll) QueueStat(task slot.Index, fd int32) error    { return ErrNotSupported }
func (e *Epoll) QueueRead(task slot.Index, fd int32, buf []byte, off int64) error {
	return ErrNotSupported
}
func (e *Epoll) QueueWrite(task slot.Index, fd int32, buf []byte, off int64) error {
	return ErrNotSupported
}
func (e *Epoll) QueueClose(task slot.Index, fd int32) error  { return ErrNotSupported }
func (e *Epoll) QueueAccept(task slot.Index, sock int32) error { return ErrNotSupported }
func (e *Epoll) QueueConnect(task slot.Index, sock int32, host string, port uint16) error {
	return ErrNotSupported
}
func (e *Epoll) QueueRecv(task slot.Index, sock int32, buf []byte) error { return ErrNotSupported }
func (e *Epoll) QueueSend(task slot.Index, sock int32, buf []byte) error { return ErrNotSupported }
func (e *Epoll) Wake() error                                            { return ErrNotSupported }
func (e *Epoll) Submit() error                                          { return ErrNotSupported }
func (e *Epoll) Reap(wait bool, out []Completion) (int, error)          { return 0, ErrNotSupported }
func (e *Epoll) Outstanding() int                                       { return 0 }
func (e *Epoll) Close() error                                           { return nil }
