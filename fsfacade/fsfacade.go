// Package fsfacade wraps the AsyncIO filesystem operations (Open, Stat,
// Read, Write, Close) in single-call, spawn-and-continue helpers, mirroring
// netfacade's treatment of the socket operations.
package fsfacade

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

// Open spawns a task that queues an open of path and invokes done with the
// resulting file descriptor.
func Open[T any](rt *tardy.Runtime, ctx T, path string, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueOpen(meta.Index, path)
	})
}

// Stat spawns a task that queues a stat of fd and invokes done with the
// resulting metadata.
func Stat[T any](rt *tardy.Runtime, ctx T, fd int32, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueStat(meta.Index, fd)
	})
}

// Read spawns a task that queues a read of fd into buf at off and invokes
// done with the number of bytes read.
func Read[T any](rt *tardy.Runtime, ctx T, fd int32, buf []byte, off int64, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueRead(meta.Index, fd, buf, off)
	})
}

// Write spawns a task that queues a write of buf to fd at off and invokes
// done with the number of bytes written.
func Write[T any](rt *tardy.Runtime, ctx T, fd int32, buf []byte, off int64, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueWrite(meta.Index, fd, buf, off)
	})
}

// Close spawns a task that queues a close of fd and invokes done once it
// completes.
func Close[T any](rt *tardy.Runtime, ctx T, fd int32, done func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx T, res aio.Result) error) (slot.Index, error) {
	return await(rt, ctx, done, func(rt *tardy.Runtime, meta tardy.TaskMeta) error {
		return rt.AIO().QueueClose(meta.Index, fd)
	})
}

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
