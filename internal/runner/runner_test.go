package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edr-tools/edrload/internal/metrics"
	"github.com/edr-tools/edrload/internal/runner"
)

// fakeExecutor simulates a request with fixed latency.
type fakeExecutor struct {
	latency time.Duration
	fail    bool
	calls   int64

	// concurrency tracking
	inFlight    int64
	maxInFlight int64
}

func (f *fakeExecutor) Execute(ctx context.Context) runner.Outcome {
	atomic.AddInt64(&f.calls, 1)
	cur := atomic.AddInt64(&f.inFlight, 1)
	for {
		max := atomic.LoadInt64(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxInFlight, max, cur) {
			break
		}
	}
	defer atomic.AddInt64(&f.inFlight, -1)

	start := time.Now()
	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return runner.TransportOutcome(time.Since(start), ctx.Err())
	}
	if f.fail {
		return runner.TransportOutcome(time.Since(start), errors.New("connection refused"))
	}
	return runner.StatusOutcome(200, time.Since(start), nil)
}

// blockingExecutor never completes until its context is cancelled.
type blockingExecutor struct{}

func (blockingExecutor) Execute(ctx context.Context) runner.Outcome {
	<-ctx.Done()
	return runner.TransportOutcome(0, ctx.Err())
}

// memoryRecorder collects outcomes for assertions.
type memoryRecorder struct {
	mu       sync.Mutex
	outcomes []runner.Outcome
}

func (m *memoryRecorder) Record(out runner.Outcome) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, out)
	m.mu.Unlock()
}

func (m *memoryRecorder) counts() (total, successes, failures, drained int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, out := range m.outcomes {
		total++
		if out.Success {
			successes++
		} else {
			failures++
		}
		if out.Class == runner.ClassDrainTimeout {
			drained++
		}
	}
	return
}

func TestRunnerDispatchesNearTargetRate(t *testing.T) {
	exec := &fakeExecutor{latency: 2 * time.Millisecond}
	rec := &memoryRecorder{}
	r, err := runner.New(runner.Options{
		Rate:        200,
		Duration:    time.Second,
		MaxInFlight: 100,
		Seed:        42,
		Executor:    exec,
		Recorder:    rec,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := r.Run(context.Background())

	// Poisson arrivals over one second at 200/s; a wide band keeps the
	// test stable on loaded CI machines.
	if res.Completed < 100 || res.Completed > 320 {
		t.Fatalf("completed %d requests, expected roughly 200", res.Completed)
	}
	total, successes, failures, _ := rec.counts()
	if total != successes+failures {
		t.Fatalf("accounting broken: total=%d successes=%d failures=%d", total, successes, failures)
	}
	if total != res.Issued {
		t.Fatalf("recorded %d outcomes for %d issued ticks", total, res.Issued)
	}
	if res.Abandoned != 0 {
		t.Fatalf("expected no abandoned executions, got %d", res.Abandoned)
	}
}

func TestRunnerSaturationThrottlesDispatch(t *testing.T) {
	// One slot and a 50ms executor: roughly 10 completions fit in 500ms
	// regardless of the much higher nominal rate.
	exec := &fakeExecutor{latency: 50 * time.Millisecond}
	rec := &memoryRecorder{}
	r, err := runner.New(runner.Options{
		Rate:         500,
		Duration:     500 * time.Millisecond,
		MaxInFlight:  1,
		DrainTimeout: time.Second,
		Seed:         7,
		Executor:     exec,
		Recorder:     rec,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := r.Run(context.Background())

	if res.Completed < 5 || res.Completed > 20 {
		t.Fatalf("completed %d requests, expected roughly 10 under saturation", res.Completed)
	}
	if got := atomic.LoadInt64(&exec.maxInFlight); got > 1 {
		t.Fatalf("observed %d concurrent executions with capacity 1", got)
	}
}

func TestRunnerNeverExceedsCapacity(t *testing.T) {
	exec := &fakeExecutor{latency: 5 * time.Millisecond}
	rec := &memoryRecorder{}
	r, err := runner.New(runner.Options{
		Rate:        400,
		Duration:    500 * time.Millisecond,
		MaxInFlight: 8,
		Seed:        11,
		Executor:    exec,
		Recorder:    rec,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Run(context.Background())

	if got := atomic.LoadInt64(&exec.maxInFlight); got > 8 {
		t.Fatalf("observed %d concurrent executions with capacity 8", got)
	}
}

func TestRunnerCompletesWhenEveryRequestFails(t *testing.T) {
	exec := &fakeExecutor{latency: time.Millisecond, fail: true}
	rec := &memoryRecorder{}
	r, err := runner.New(runner.Options{
		Rate:        100,
		Duration:    300 * time.Millisecond,
		MaxInFlight: 10,
		Seed:        3,
		Executor:    exec,
		Recorder:    rec,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := r.Run(context.Background())

	total, successes, failures, _ := rec.counts()
	if total == 0 {
		t.Fatal("expected some requests to be dispatched")
	}
	if successes != 0 {
		t.Fatalf("expected zero successes, got %d", successes)
	}
	if failures != total {
		t.Fatalf("expected all %d outcomes to be failures, got %d", total, failures)
	}
	if res.Issued != total {
		t.Fatalf("recorded %d outcomes for %d issued ticks", total, res.Issued)
	}
}

func TestRunnerCancellationStopsDispatch(t *testing.T) {
	exec := &fakeExecutor{latency: 5 * time.Millisecond}
	rec := &memoryRecorder{}
	r, err := runner.New(runner.Options{
		Rate:         100,
		Duration:     10 * time.Second,
		MaxInFlight:  10,
		DrainTimeout: time.Second,
		Seed:         5,
		Executor:     exec,
		Recorder:     rec,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := r.Run(ctx)
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("run took %s after cancellation", elapsed)
	}
	if res.Issued != res.Completed+res.Abandoned {
		t.Fatalf("issued=%d completed=%d abandoned=%d", res.Issued, res.Completed, res.Abandoned)
	}
	total, _, _, _ := rec.counts()
	if total != res.Issued {
		t.Fatalf("recorded %d outcomes for %d issued ticks", total, res.Issued)
	}
	if r.State() != runner.StateDone {
		t.Fatalf("state after run = %d, want done", r.State())
	}
}

func TestRunnerDrainTimeoutAbandonsStuckWork(t *testing.T) {
	rec := &memoryRecorder{}
	r, err := runner.New(runner.Options{
		Rate:         50,
		Duration:     200 * time.Millisecond,
		MaxInFlight:  4,
		DrainTimeout: 100 * time.Millisecond,
		Seed:         9,
		Executor:     blockingExecutor{},
		Recorder:     rec,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := r.Run(context.Background())

	if res.Issued == 0 {
		t.Fatal("expected some requests to be dispatched")
	}
	if res.Abandoned != res.Issued {
		t.Fatalf("expected all %d issued to be abandoned, got %d", res.Issued, res.Abandoned)
	}
	total, _, failures, drained := rec.counts()
	if total != res.Issued {
		t.Fatalf("recorded %d outcomes for %d issued ticks", total, res.Issued)
	}
	if drained != res.Abandoned {
		t.Fatalf("recorded %d drain-timeout outcomes for %d abandoned", drained, res.Abandoned)
	}
	if failures != total {
		t.Fatalf("abandoned executions must count as failures, got %d of %d", failures, total)
	}
	for _, out := range rec.outcomes {
		if !errors.Is(out.Err, runner.ErrDrainTimeout) {
			t.Fatalf("abandoned outcome carries %v, want ErrDrainTimeout", out.Err)
		}
		if out.Latency != 100*time.Millisecond {
			t.Fatalf("abandoned latency = %s, want the drain timeout", out.Latency)
		}
	}
}

func TestRunnerWithCollectorEndToEnd(t *testing.T) {
	// Steady 10ms successes at a modest rate: the final summary must show
	// every request succeeding with p95 near the stub latency.
	exec := &fakeExecutor{latency: 10 * time.Millisecond}
	collector := metrics.NewCollector()
	r, err := runner.New(runner.Options{
		Rate:        50,
		Duration:    time.Second,
		MaxInFlight: 100,
		Seed:        17,
		Executor:    exec,
		Recorder:    collector,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collector.Start()
	res := r.Run(context.Background())
	summary := collector.Finalize(res.Duration)

	if summary.Total != res.Issued {
		t.Fatalf("collector saw %d outcomes for %d issued ticks", summary.Total, res.Issued)
	}
	if summary.Successes != summary.Total {
		t.Fatalf("successes=%d of %d, want all", summary.Successes, summary.Total)
	}
	if summary.Total < 20 || summary.Total > 90 {
		t.Fatalf("total = %d, expected roughly 50", summary.Total)
	}
	if summary.P95Latency < 9*time.Millisecond || summary.P95Latency > 40*time.Millisecond {
		t.Fatalf("p95 = %s, want near the 10ms stub latency", summary.P95Latency)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	cases := []struct {
		name string
		opts runner.Options
	}{
		{"zero rate", runner.Options{Duration: time.Second, MaxInFlight: 1, Executor: &fakeExecutor{}, Recorder: &memoryRecorder{}}},
		{"zero duration", runner.Options{Rate: 1, MaxInFlight: 1, Executor: &fakeExecutor{}, Recorder: &memoryRecorder{}}},
		{"zero capacity", runner.Options{Rate: 1, Duration: time.Second, Executor: &fakeExecutor{}, Recorder: &memoryRecorder{}}},
		{"negative fluctuation", runner.Options{Rate: 1, Duration: time.Second, MaxInFlight: 1, Fluctuation: -0.5, Executor: &fakeExecutor{}, Recorder: &memoryRecorder{}}},
		{"missing executor", runner.Options{Rate: 1, Duration: time.Second, MaxInFlight: 1, Recorder: &memoryRecorder{}}},
		{"missing recorder", runner.Options{Rate: 1, Duration: time.Second, MaxInFlight: 1, Executor: &fakeExecutor{}}},
		{"bad arrival model", runner.Options{Rate: 1, Duration: time.Second, MaxInFlight: 1, ArrivalModel: "burst", Executor: &fakeExecutor{}, Recorder: &memoryRecorder{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := runner.New(tc.opts); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestStatusOutcomeClassification(t *testing.T) {
	cases := []struct {
		code    int
		success bool
		class   string
	}{
		{200, true, "200"},
		{204, true, "204"},
		{302, true, "302"},
		{404, false, "404"},
		{429, false, "429"},
		{500, false, "500"},
	}
	for _, tc := range cases {
		out := runner.StatusOutcome(tc.code, time.Millisecond, nil)
		if out.Success != tc.success || out.Class != tc.class {
			t.Errorf("StatusOutcome(%d) = success=%v class=%q, want success=%v class=%q",
				tc.code, out.Success, out.Class, tc.success, tc.class)
		}
	}

	out := runner.TransportOutcome(time.Millisecond, errors.New("dial tcp: connection refused"))
	if out.Success || out.Class != runner.ClassTransportError || out.StatusCode != 0 {
		t.Errorf("TransportOutcome = %+v, want transport-error failure with no status", out)
	}
}
