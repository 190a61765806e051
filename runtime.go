package tardy

import (
	"log"
	"os"
	"sync"

	"github.com/Torbatti/tardy/aio"
	"github.com/Torbatti/tardy/internal/control"
	"github.com/Torbatti/tardy/slot"
	"github.com/Torbatti/tardy/taskctx"
)

// probes is the runtime's own introspection registry: named zero-argument
// hooks a CLI or test can dump without this package depending on any
// presentation format. Small enough that it lives directly on Runtime
// instead of behind its own package.
type probes struct {
	mu    sync.RWMutex
	hooks map[string]func() any
}

func newProbes() *probes {
	return &probes{hooks: make(map[string]func() any)}
}

func (p *probes) register(name string, fn func() any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[name] = fn
}

func (p *probes) dump() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.hooks))
	for k, fn := range p.hooks {
		out[k] = fn()
	}
	return out
}

// Runtime drives a single OS thread's cooperative scheduler against one
// AsyncIO backend. It is not safe for concurrent use except for Wake.
type Runtime struct {
	opts   Options
	sched  *scheduler
	aio    aio.AsyncIO
	log    *log.Logger
	config *control.ConfigStore
	stats  *control.MetricsRegistry
	probes *probes
	ctx    *taskctx.Store

	running bool
	stop    bool

	completions []aio.Completion
}

// New builds a Runtime around the given AsyncIO backend. The backend's own
// capacities should already reflect opts.AIOJobsMax/AIOReapMax; New does not
// construct the backend itself since backend construction is
// platform/transport specific (see aio.NewEpoll, aio.NewSim).
func New(backend aio.AsyncIO, opts Options) (*Runtime, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{
		opts:        opts,
		sched:       newScheduler(int(opts.TasksMax)),
		aio:         backend,
		log:         log.New(os.Stderr, "tardy: ", log.LstdFlags|log.Lmicroseconds),
		config:      control.NewConfigStore(),
		stats:       control.NewMetricsRegistry(),
		probes:      newProbes(),
		ctx:         taskctx.New(),
		completions: make([]aio.Completion, opts.AIOReapMax),
	}
	rt.config.SetDefault("aio_reap_max", int64(opts.AIOReapMax))
	rt.config.SetDefault("tasks_max", int64(opts.TasksMax))
	rt.RegisterProbe("scheduler.occupied", func() any { return rt.sched.occupiedCount() })
	rt.RegisterProbe("scheduler.runnable", func() any { return rt.sched.runnableCount() })
	rt.RegisterProbe("aio.outstanding", func() any { return rt.aio.Outstanding() })
	return rt, nil
}

// SetLogger overrides the runtime's default stderr logger.
func (rt *Runtime) SetLogger(l *log.Logger) { rt.log = l }

// Metrics exposes the runtime's counters (tasks spawned, reaped, dispatch
// ticks) for callers that want to export them.
func (rt *Runtime) Metrics() *control.MetricsRegistry { return rt.stats }

// RegisterProbe installs or replaces a named zero-argument introspection
// hook, for exposing scheduler/backend internals to a CLI or test.
func (rt *Runtime) RegisterProbe(name string, fn func() any) { rt.probes.register(name, fn) }

// DumpState invokes every registered probe and returns their results keyed
// by name.
func (rt *Runtime) DumpState() map[string]any { return rt.probes.dump() }

// Ctx exposes the per-task typed storage map, for tasks that prefer keyed
// state over threading a captured struct through their own resumes.
func (rt *Runtime) Ctx() *taskctx.Store { return rt.ctx }

// Wake interrupts a blocked Run from any goroutine or OS thread.
func (rt *Runtime) Wake() error { return rt.aio.Wake() }

// AIO exposes the underlying AsyncIO backend, for facade packages (see
// netfacade, fsfacade) that need to queue operations directly.
func (rt *Runtime) AIO() aio.AsyncIO { return rt.aio }

// Stop requests that Run return as soon as the dispatch pass in progress
// finishes, before it submits or reaps any I/O. Safe to
// call from within a task's entry point; has no effect from another thread
// (use Wake first to guarantee prompt observation).
func (rt *Runtime) Stop() { rt.stop = true }

// Outstanding reports the number of live task slots, matching the
// occupied-set accounting invariant.
func (rt *Runtime) Outstanding() int { return rt.sched.occupiedCount() }

// spawnRaw is the non-generic primitive both Spawn and SpawnDelay build on.
func spawnRaw(rt *Runtime, fn entry, initial State) (slot.Index, error) {
	idx, err := rt.sched.spawn(fn, initial)
	if err != nil {
		return 0, err
	}
	rt.stats.Inc("tasks_spawned")
	return idx, nil
}

// Spawn schedules fn to run on rt's next dispatch pass, capturing ctx by
// value. This is the generics-based replacement for the opaque
// context-pointer trampoline: the closure built here holds ctx typed and
// requires no unsafe cast to recover it.
func Spawn[T any](rt *Runtime, ctx T, fn func(rt *Runtime, meta TaskMeta, ctx T, result aio.Result) error) (slot.Index, error) {
	return spawnRaw(rt, func(rt *Runtime, meta TaskMeta, result aio.Result) error {
		return fn(rt, meta, ctx, result)
	}, StateRunnable)
}

// SpawnDelay schedules fn to run once, after the given timer duration
// elapses, by queuing a timer job on the AsyncIO backend and binding the new
// task's index to it. The task starts waiting rather than runnable.
func SpawnDelay[T any](rt *Runtime, ctx T, timer aio.Timespec, fn func(rt *Runtime, meta TaskMeta, ctx T, result aio.Result) error) (slot.Index, error) {
	idx, err := spawnRaw(rt, func(rt *Runtime, meta TaskMeta, result aio.Result) error {
		return fn(rt, meta, ctx, result)
	}, StateWaiting)
	if err != nil {
		return 0, err
	}
	if err := rt.aio.QueueTimer(idx, timer); err != nil {
		rt.sched.release(idx)
		return 0, err
	}
	return idx, nil
}

// Run drives tasks and I/O until the runnable set and the AsyncIO backend
// both quiesce, or Stop is called. Each tick: dispatch every runnable task
// as of the start of the tick (a snapshot, so tasks a callback marks
// runnable are not picked up until the following tick), submit any I/O
// queued during dispatch, then reap completions — blocking for at least one
// if the runnable set is empty but work is still outstanding.
func (rt *Runtime) Run() error {
	if rt.running {
		return newError(ErrCodeInvalidState, "tardy: Run called while already running")
	}
	rt.running = true
	rt.stop = false
	defer func() { rt.running = false }()

	for {
		if rt.stop {
			return nil
		}

		runnable := rt.sched.snapshotRunnable()
		for _, idx := range runnable {
			rt.dispatch(idx)
		}
		rt.stats.Add("dispatch_ticks", 1)

		if rt.stop {
			return nil
		}

		if err := rt.aio.Submit(); err != nil {
			return err
		}

		if rt.sched.runnableCount() == 0 && rt.aio.Outstanding() == 0 {
			rt.log.Printf("run quiesced: no runnable tasks and no outstanding jobs")
			return nil
		}

		wait := rt.sched.runnableCount() == 0
		n, err := rt.aio.Reap(wait, rt.completions)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			c := rt.completions[i]
			rt.stats.Add("completions_reaped", 1)
			if c.Result.Kind == aio.KindWake {
				// The wake completion carries no task; it exists only to
				// break Reap out of a blocking wait so Stop and freshly
				// runnable tasks are observed promptly.
				continue
			}
			rt.resume(c.Task, c.Result)
		}
	}
}

// dispatch runs a single task's entry point and applies the resulting
// lifecycle transition. The result parked on the task by a prior resume (or
// the zero Result for a freshly spawned task) is consumed and cleared here.
// A task that returns without erroring and without having called MarkWaiting
// is considered finished and is released, even if it queued I/O.
func (rt *Runtime) dispatch(idx slot.Index) {
	task := rt.sched.tasks.Get(idx)
	if task == nil || task.state == StateDead {
		return
	}
	fn := task.fn
	meta := TaskMeta{Index: idx}
	result := task.result
	task.result = aio.Result{}
	stateBefore := task.state
	err := fn(rt, meta, result)
	if err != nil {
		rt.log.Printf("task %s failed: %v", idx, err)
		task.state = StateDead
	}
	// An entry point that neither queued more work (MarkWaiting) nor
	// explicitly called Finish is done as soon as it returns.
	if task.state == stateBefore && task.state != StateWaiting {
		task.state = StateDead
	}
	rt.finishIfDead(idx)
}

// resume parks a completion's result on the waiting task it targets and
// marks it runnable. Per §4.4 step 5 / §5's ordering guarantee, it does not
// dispatch the task itself: a task made runnable during tick N's reap phase
// is only observed by tick N+1's dispatch phase, the same as a task made
// runnable by any other means.
func (rt *Runtime) resume(idx slot.Index, result aio.Result) {
	task := rt.sched.tasks.Get(idx)
	if task == nil || task.state == StateDead {
		return
	}
	if task.state == StateWaiting {
		task.result = result
		rt.sched.setRunnable(idx)
	}
}

// finishIfDead releases a task's slot once its entry point has marked it
// dead. Tasks that called MarkWaiting stay occupied.
func (rt *Runtime) finishIfDead(idx slot.Index) {
	task := rt.sched.tasks.Get(idx)
	if task == nil {
		return
	}
	if task.state == StateDead {
		rt.sched.release(idx)
		rt.ctx.Release(idx)
		rt.stats.Add("tasks_completed", 1)
	}
}

// MarkWaiting transitions the calling task out of the runnable set. A task
// must call this itself, from within its own entry point, whenever it
// queues I/O and expects to resume from that operation's completion rather
// than finishing outright.
func (rt *Runtime) MarkWaiting(meta TaskMeta) {
	task := rt.sched.tasks.Get(meta.Index)
	task.state = StateWaiting
	rt.sched.runnable.Clear(int(meta.Index))
}

// Finish transitions the calling task to dead, so it is released once its
// entry point returns. Entry points that fall off the end without calling
// either MarkWaiting or Finish are treated as finished automatically.
func (rt *Runtime) Finish(meta TaskMeta) {
	task := rt.sched.tasks.Get(meta.Index)
	task.state = StateDead
}
