// Package netfacade wraps the AsyncIO socket operations (Accept, Connect,
// Recv, Send) in single-call, spawn-and-continue helpers, the way the
// reference codebase's highlevel package sits on top of its lowlevel
// counterpart: netfacade never talks to a kernel socket itself, it only
// arranges for a task to queue the right AsyncIO job and hands the
// eventual completion to a caller-supplied continuation.
package netfacade

import (
	"github.com/Torbatti/tardy"
	"github.com/Torbatti/tardy/aio"
	"github.com/Torbatti/tardy/slot"
)

type stage int

const (
	stageQueue stage = iota
	stageDone
)

// Accept spawns a task that queues an accept on sock and invokes done once
// a client connects (or the operation fails).
func Accept[T any](rt *tardy.Runtime, ctx T, sock int32, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueAccept(meta.Index, sock)
	})
}

// Connect spawns a task that queues a connect to host:port over sock and
// invokes done once the connection resolves.
func Connect[T any](rt *tardy.Runtime, ctx T, sock int32, host string, port uint16, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueConnect(meta.Index, sock, host, port)
	})
}

// Recv spawns a task that queues a receive into buf on sock and invokes
// done with the number of bytes read.
func Recv[T any](rt *tardy.Runtime, ctx T, sock int32, buf []byte, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueRecv(meta.Index, sock, buf)
	})
}

// Send spawns a task that queues a send of buf on sock and invokes done
// with the number of bytes written.
func Send[T any](rt *tardy.Runtime, ctx T, sock int32, buf []byte, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueSend(meta.Index, sock, buf)
	})
}

// await is the two-stage task shared by every facade helper: queue on the
// first dispatch, hand the completion to done on the resume.
func await[T any](rt *tardy.Runtime, ctx T, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error, queue func(rt *tardy.Runtime, meta tardy.TaskMeta) error) (slot.Index, error) {
	st := stageQueue
	return tardy.Spawn(rt, ctx, func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error {
		if st == stageQueue {
			st = stageDone
			rt.MarkWaiting(meta)
			return queue(rt, meta)
		}
		rt.Finish(meta)
		return done(rt, meta, ctx, res)
	})
}
