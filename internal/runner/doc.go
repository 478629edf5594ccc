// Package runner provides the core load generation engine for edrload.
//
// The runner package owns the run lifecycle: it generates dispatch instants
// from a configurable arrival process, pushes each instant through a bounded
// concurrency gate to an Executor, and forwards every completed Outcome to a
// Recorder. When the run window closes it drains in-flight work under a
// drain timeout and accounts for anything still pending.
//
// # Basic Usage
//
// Create a runner with options, an executor, and a recorder:
//
//	opts := runner.Options{
//		Rate:        10,
//		Fluctuation: 0.5,
//		Duration:    time.Minute,
//		MaxInFlight: 10,
//		Executor:    myExecutor,
//		Recorder:    myRecorder,
//	}
//	r, err := runner.New(opts)
//	result := r.Run(ctx)
//
// # Arrival Models
//
// Two arrival models are supported:
//   - [ArrivalModelPoisson]: exponential inter-arrival gaps whose rate is
//     modulated per control window by a clamped random walk (a doubly
//     stochastic, or Cox, process). Fluctuation 0 degenerates to a
//     homogeneous Poisson process.
//   - [ArrivalModelUniform]: fixed-interval pacing.
//
// # Executor Interface
//
// The [Executor] interface defines what the runner dispatches:
//
//	type Executor interface {
//		Execute(ctx context.Context) Outcome
//	}
//
// Each dispatched tick produces exactly one Execute call and exactly one
// recorded Outcome. The runner never retries.
//
// # Lifecycle
//
// A run moves IDLE -> RUNNING -> DRAINING -> DONE. Cancelling the context
// passed to Run stops dispatch immediately and begins the drain phase;
// outcomes recorded before cancellation are preserved. Executions that do
// not finish within the drain timeout are recorded as failures with the
// [ClassDrainTimeout] class.
package runner
