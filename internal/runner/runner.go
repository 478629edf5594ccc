package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// State tracks the run lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateDone
)

// ErrDrainTimeout marks executions abandoned because they outlived the
// drain grace period.
var ErrDrainTimeout = errors.New("execution abandoned after drain timeout")

// Result captures the dispatch-side summary of a run. Completed plus
// Abandoned always equals Issued.
type Result struct {
	Issued    int64
	Completed int64
	Abandoned int64
	Duration  time.Duration
}

// Runner drives one load test run. It is single-use: create a new Runner
// for each run.
type Runner struct {
	opt   Options
	state atomic.Int32
}

// New validates the options and builds a Runner. Invalid rate, duration,
// or capacity is rejected here, before any request is dispatched.
func New(opt Options) (*Runner, error) {
	opt.normalize()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	return &Runner{opt: opt}, nil
}

// State reports the current lifecycle state; safe to call from any goroutine.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Run dispatches scheduled ticks until the duration elapses or ctx is
// cancelled, then drains in-flight work and returns. Every dispatched tick
// is recorded exactly once: either with the executor's outcome, or with a
// drain-timeout failure if it outlived the grace period.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	r.state.Store(int32(StateRunning))

	dispatchCtx, cancelDispatch := context.WithTimeout(ctx, r.opt.Duration)
	defer cancelDispatch()

	// In-flight work must survive dispatch cancellation through the drain
	// phase, so executions run under their own context.
	execCtx, cancelExec := context.WithCancel(context.Background())
	defer cancelExec()

	if r.opt.Progress != nil {
		r.opt.Progress.Start()
		defer r.opt.Progress.Stop()
	}

	sched := newSchedule(r.opt)
	g := newGate(r.opt.MaxInFlight)
	guard := &recordGuard{recorder: r.opt.Recorder}

	var wg sync.WaitGroup
	var issued int64

	for {
		gap, ok := sched.Next()
		if !ok {
			break
		}
		if gap > 0 && !sleep(dispatchCtx, gap) {
			break
		}
		// Acquiring a slot is the one suspension point that can push a
		// dispatch past its target instant; under saturation this is what
		// throttles effective throughput.
		if err := g.acquire(dispatchCtx); err != nil {
			break
		}
		issued++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer g.release()
			out := r.opt.Executor.Execute(execCtx)
			guard.record(out)
		}()
	}

	r.state.Store(int32(StateDraining))
	abandoned := r.drain(&wg, guard, issued)
	cancelExec()

	r.state.Store(int32(StateDone))
	return Result{
		Issued:    issued,
		Completed: issued - abandoned,
		Abandoned: abandoned,
		Duration:  time.Since(start),
	}
}

// drain waits for in-flight executions up to the drain timeout, then
// records a drain-timeout failure for each execution still pending.
func (r *Runner) drain(wg *sync.WaitGroup, guard *recordGuard, issued int64) int64 {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(r.opt.DrainTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}

	abandoned := guard.close(issued)
	for i := int64(0); i < abandoned; i++ {
		r.opt.Recorder.Record(Outcome{
			Class:   ClassDrainTimeout,
			Latency: r.opt.DrainTimeout,
			Err:     ErrDrainTimeout,
		})
	}
	return abandoned
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// recordGuard forwards outcomes to the recorder until the run closes, then
// drops late completions so drain-timeout accounting stays exact: each
// issued tick is recorded exactly once.
type recordGuard struct {
	mu       sync.Mutex
	recorder Recorder
	recorded int64
	closed   bool
}

func (gd *recordGuard) record(out Outcome) {
	gd.mu.Lock()
	if gd.closed {
		gd.mu.Unlock()
		return
	}
	gd.recorded++
	gd.mu.Unlock()
	gd.recorder.Record(out)
}

// close stops further recording and returns how many issued ticks never
// produced a recorded outcome.
func (gd *recordGuard) close(issued int64) int64 {
	gd.mu.Lock()
	defer gd.mu.Unlock()
	gd.closed = true
	return issued - gd.recorded
}
