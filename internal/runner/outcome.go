package runner

import (
	"strconv"
	"time"
)

// Failure classes for outcomes that carry no HTTP status.
const (
	ClassTransportError = "transport-error"
	ClassDrainTimeout   = "drain-timeout"
)

// Outcome is the result of one request attempt. StatusCode is zero when no
// HTTP status was obtained; Class then carries a failure class instead of
// the numeric status.
type Outcome struct {
	Success    bool
	StatusCode int
	Class      string
	Latency    time.Duration
	Err        error
}

// StatusOutcome classifies a completed HTTP exchange. 2xx and 3xx responses
// count as successes; everything else is a failure keyed by its status so
// rate-limit responses stay distinguishable from connection failures.
func StatusOutcome(code int, latency time.Duration, err error) Outcome {
	return Outcome{
		Success:    code >= 200 && code < 400,
		StatusCode: code,
		Class:      strconv.Itoa(code),
		Latency:    latency,
		Err:        err,
	}
}

// TransportOutcome classifies a request that never produced an HTTP status
// (connection refused, TLS failure, timeout).
func TransportOutcome(latency time.Duration, err error) Outcome {
	return Outcome{
		Class:   ClassTransportError,
		Latency: latency,
		Err:     err,
	}
}
