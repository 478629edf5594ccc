package runner

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ArrivalModel selects how dispatch instants are spaced.
type ArrivalModel string

const (
	ArrivalModelPoisson ArrivalModel = "poisson"
	ArrivalModelUniform ArrivalModel = "uniform"
)

// Executor issues a single request attempt and classifies its outcome.
// Implementations must honor ctx cancellation so the drain phase can
// abandon stuck executions.
type Executor interface {
	Execute(ctx context.Context) Outcome
}

// Recorder aggregates completed outcomes. Implementations must be safe for
// concurrent use; outcomes arrive in completion order, not dispatch order.
type Recorder interface {
	Record(out Outcome)
}

// ProgressReporter is started when dispatch begins and stopped after the
// drain phase, before Run returns.
type ProgressReporter interface {
	Start()
	Stop()
}

// Options configure the Runner. Rate, Duration, and MaxInFlight are
// mandatory; the rest have working defaults.
type Options struct {
	Rate         float64       // base requests per second
	Fluctuation  float64       // rate noise amplitude; 0 disables fluctuation
	Duration     time.Duration // dispatch window length
	MaxInFlight  int           // max concurrently executing requests
	DrainTimeout time.Duration // grace period for in-flight work after the window closes
	ArrivalModel ArrivalModel
	Seed         int64            // arrival randomness seed; 0 picks one from the clock
	Executor     Executor         // required
	Recorder     Recorder         // required
	Progress     ProgressReporter // optional
}

const defaultDrainTimeout = 5 * time.Second

func (o *Options) normalize() {
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = defaultDrainTimeout
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelPoisson
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
}

func (o Options) validate() error {
	var issues []string
	if o.Rate <= 0 {
		issues = append(issues, "rate must be > 0")
	}
	if o.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if o.MaxInFlight < 1 {
		issues = append(issues, "max in-flight must be >= 1")
	}
	if o.Fluctuation < 0 {
		issues = append(issues, "fluctuation must be >= 0")
	}
	switch o.ArrivalModel {
	case ArrivalModelPoisson, ArrivalModelUniform:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", o.ArrivalModel))
	}
	if o.Executor == nil {
		issues = append(issues, "executor is required")
	}
	if o.Recorder == nil {
		issues = append(issues, "recorder is required")
	}
	if len(issues) == 0 {
		return nil
	}
	msg := issues[0]
	for _, issue := range issues[1:] {
		msg += "; " + issue
	}
	return errors.New(msg)
}
