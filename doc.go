// Package tardy implements a per-thread asynchronous I/O runtime: a
// cooperative task scheduler paired with a pluggable AsyncIO backend (see
// the aio package). Tasks are plain Go closures that suspend by queueing an
// operation on the backend and returning; the runtime loop dispatches
// runnable tasks, submits queued I/O, reaps completions, and decides when
// to block the OS thread.
//
// A Runtime is not safe for concurrent use except for Runtime.Wake, which
// may be called from any goroutine to interrupt a blocked Run.
package tardy
