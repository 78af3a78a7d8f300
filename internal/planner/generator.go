package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunState describes the lifecycle of a generation run.
type RunState int32

const (
	RunPending RunState = iota
	RunRunning
	RunCompleted
	RunCancelled
	RunSuperseded
	RunFailed
)

func (s RunState) String() string {
	switch s {
	case RunPending:
		return "PENDING"
	case RunRunning:
		return "RUNNING"
	case RunCompleted:
		return "COMPLETED"
	case RunCancelled:
		return "CANCELLED"
	case RunSuperseded:
		return "SUPERSEDED"
	case RunFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Dispatcher schedules task off the caller's goroutine.
type Dispatcher func(ctx context.Context, task func(context.Context)) error

// GoDispatcher runs every task on a fresh goroutine.
func GoDispatcher(ctx context.Context, task func(context.Context)) error {
	go task(ctx)
	return nil
}

// Hooks are optional callbacks for a run. OnComplete is invoked exactly once
// from the worker goroutine after the outcome is final; no generator lock is
// held at that point.
type Hooks struct {
	OnProgress ProgressFunc
	OnComplete func(run *Run, outcome Outcome)
}

// Run is a handle to one generation request.
type Run struct {
	id         string
	startedAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	state      atomic.Int32
	superseded atomic.Bool
	progress   atomic.Pointer[Progress]

	mu         sync.Mutex
	outcome    Outcome
	err        error
	finishedAt time.Time
}

func newRun(cancel context.CancelFunc) *Run {
	r := &Run{
		id:        uuid.NewString(),
		startedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.progress.Store(&Progress{})
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// StartedAt returns when the run was requested.
func (r *Run) StartedAt() time.Time { return r.startedAt }

// Done is closed once the outcome is final.
func (r *Run) Done() <-chan struct{} { return r.done }

// State returns the current lifecycle state.
func (r *Run) State() RunState { return RunState(r.state.Load()) }

// Superseded reports whether a newer request replaced this run.
func (r *Run) Superseded() bool { return r.superseded.Load() }

// Progress returns the latest progress snapshot.
func (r *Run) Progress() Progress { return *r.progress.Load() }

// Result returns the final outcome. ok is false while the run is in flight.
func (r *Run) Result() (Outcome, bool) {
	select {
	case <-r.done:
	default:
		return Outcome{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, true
}

// Err returns the dispatch failure of a finished run, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		outcome, _ := r.Result()
		return outcome, r.Err()
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Duration returns the elapsed time of a finished run.
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishedAt.IsZero() {
		return time.Since(r.startedAt)
	}
	return r.finishedAt.Sub(r.startedAt)
}

func (r *Run) finish(outcome Outcome, err error) {
	r.mu.Lock()
	r.outcome = outcome
	r.err = err
	r.finishedAt = time.Now().UTC()
	r.mu.Unlock()
	r.progress.Store(&outcome.Progress)

	switch {
	case err != nil:
		r.state.Store(int32(RunFailed))
	case r.Superseded():
		r.state.Store(int32(RunSuperseded))
	case outcome.Cancelled:
		r.state.Store(int32(RunCancelled))
	default:
		r.state.Store(int32(RunCompleted))
	}
	close(r.done)
}

// ErrDispatch wraps failures to hand a run to the dispatcher.
var ErrDispatch = errors.New("planner: dispatch generation run")

// Generator keeps at most one active run. A new request cancels the
// previous one before it is dispatched.
type Generator struct {
	enumerator *Enumerator
	dispatch   Dispatcher

	mu     sync.Mutex
	active *Run
}

// NewGenerator builds a generator. Nil arguments fall back to defaults.
func NewGenerator(e *Enumerator, dispatch Dispatcher) *Generator {
	if e == nil {
		e = NewEnumerator()
	}
	if dispatch == nil {
		dispatch = GoDispatcher
	}
	return &Generator{enumerator: e, dispatch: dispatch}
}

// Generate supersedes any in-flight run and starts a new one. ctx bounds
// the lifetime of the run, not just of the call.
func (g *Generator) Generate(ctx context.Context, req Request, hooks Hooks) (*Run, error) {
	runCtx, cancel := context.WithCancel(ctx)
	run := newRun(cancel)

	g.mu.Lock()
	if prev := g.active; prev != nil {
		prev.superseded.Store(true)
		prev.cancel()
	}
	g.active = run
	g.mu.Unlock()

	task := func(workerCtx context.Context) {
		if workerCtx.Err() != nil {
			cancel()
		}
		stop := context.AfterFunc(workerCtx, cancel)
		defer stop()
		defer cancel()

		run.state.Store(int32(RunRunning))
		outcome := g.enumerator.Enumerate(runCtx, req, func(p Progress) {
			snapshot := p
			run.progress.Store(&snapshot)
			if hooks.OnProgress != nil {
				hooks.OnProgress(p)
			}
		})
		run.finish(outcome, nil)
		if hooks.OnComplete != nil {
			hooks.OnComplete(run, outcome)
		}
	}

	if err := g.dispatch(runCtx, task); err != nil {
		cancel()
		g.mu.Lock()
		if g.active == run {
			g.active = nil
		}
		g.mu.Unlock()
		wrapped := errors.Join(ErrDispatch, err)
		run.finish(Outcome{Cancelled: true}, wrapped)
		return run, wrapped
	}
	return run, nil
}

// Cancel stops the active run, keeping whatever it has found so far.
func (g *Generator) Cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil {
		return false
	}
	select {
	case <-g.active.done:
		return false
	default:
	}
	g.active.cancel()
	return true
}

// Active returns the latest run, finished or not.
func (g *Generator) Active() *Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// IsCurrent reports whether run is still the latest request.
func (g *Generator) IsCurrent(run *Run) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return run != nil && g.active == run && !run.Superseded()
}
