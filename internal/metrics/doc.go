// Package metrics aggregates per-request outcomes into running statistics.
//
// The [Collector] is the single shared sink for all in-flight executions.
// It keys latency samples by outcome class (the numeric HTTP status, or a
// failure class such as "transport-error") and maintains an HdrHistogram
// per bucket plus one overall, so percentiles are deterministic and cheap
// to finalize. Snapshot returns a point-in-time copy for progress
// reporting; Finalize produces the full per-bucket summary.
package metrics
