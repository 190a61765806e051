package aio

import "github.com/Torbatti/tardy/slot"

// Type discriminates the kind of operation a Job represents.
type Type uint8

const (
	JobWake Type = iota
	JobTimer
	JobOpen
	JobStat
	JobRead
	JobWrite
	JobClose
	JobAccept
	JobConnect
	JobRecv
	JobSend
)

func (t Type) String() string {
	switch t {
	case JobWake:
		return "wake"
	case JobTimer:
		return "timer"
	case JobOpen:
		return "open"
	case JobStat:
		return "stat"
	case JobRead:
		return "read"
	case JobWrite:
		return "write"
	case JobClose:
		return "close"
	case JobAccept:
		return "accept"
	case JobConnect:
		return "connect"
	case JobRecv:
		return "recv"
	case JobSend:
		return "send"
	default:
		return "unknown"
	}
}

// Job is the backend-private record of one in-flight operation. It is
// shared verbatim between the epoll backend and the sim backend so tests
// written against one translate directly to the other.
type Job struct {
	Index slot.Index // this job's own slot in the owning Pool[Job]
	Task  slot.Index // the task to resume when this job completes

	Type Type

	FD     int32
	Socket int32
	Path   string
	Buf    []byte
	Offset int64
	Host   string
	Port   uint16
	Timer  Timespec
}
