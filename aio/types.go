// Package aio defines the backend-independent asynchronous I/O contract
// (queueing operations, waking, submitting, reaping) plus the concrete
// backends that implement it: epoll on Linux, a portable simulation backend
// used by tests and non-Linux builds, and a stub for other real OSes.
package aio

import (
	"fmt"

	"github.com/Torbatti/tardy/slot"
)

// Timespec is a relative duration used only by QueueTimer.
type Timespec struct {
	Seconds uint64
	Nanos   uint64
}

// Stat mirrors the subset of file metadata the runtime exposes to tasks.
type Stat struct {
	Size     uint64
	Mode     uint32
	Accessed Timespec
	Modified Timespec
	Changed  Timespec
}

// Kind discriminates the tagged union carried by Result.
type Kind uint8

const (
	KindNone Kind = iota
	KindWake
	KindValue
	KindFD
	KindSocket
	KindStat
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWake:
		return "wake"
	case KindValue:
		return "value"
	case KindFD:
		return "fd"
	case KindSocket:
		return "socket"
	case KindStat:
		return "stat"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Result is the tagged outcome of a queued operation. Only the field named
// by Kind is meaningful.
type Result struct {
	Kind   Kind
	Value  int64
	FD     int32
	Socket int32
	Stat   Stat
}

// Completion pairs a Result with the TaskIndex it must be delivered to.
type Completion struct {
	Task   slot.Index
	Result Result
}

// Options configures a backend's job table and reap batching.
type Options struct {
	// JobsMax bounds the number of concurrently in-flight jobs.
	JobsMax uint16
	// ReapMax bounds how many completions a single Reap call may return.
	ReapMax uint16
}

// DefaultOptions mirrors the reference runtime's modest defaults, sized for
// a single-threaded reactor handling a few hundred concurrent operations.
func DefaultOptions() Options {
	return Options{JobsMax: 1024, ReapMax: 256}
}

// Validate enforces the ReapMax <= JobsMax invariant.
func (o Options) Validate() error {
	if o.ReapMax > o.JobsMax {
		return fmt.Errorf("aio: ReapMax (%d) exceeds JobsMax (%d)", o.ReapMax, o.JobsMax)
	}
	if o.JobsMax == 0 {
		return fmt.Errorf("aio: JobsMax must be positive")
	}
	if o.ReapMax == 0 {
		return fmt.Errorf("aio: ReapMax must be positive")
	}
	return nil
}
