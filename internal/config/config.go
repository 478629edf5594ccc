// Package config provides configuration loading and validation for edrload.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// TimeMode mirrors the EDR temporal query modes exposed on the CLI.
const (
	TimeModeSingle = "single"
	TimeModeNone   = "none"
)

// Arrival model names accepted by the CLI.
const (
	ArrivalModelPoisson = "poisson"
	ArrivalModelUniform = "uniform"
)

// Config is the immutable configuration snapshot for one run. It is built
// once by the Loader and never mutated afterwards.
type Config struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Collection   string        `mapstructure:"collection"`
	Locations    []string      `mapstructure:"locations"`
	Rate         float64       `mapstructure:"rate"`
	Duration     time.Duration `mapstructure:"duration"`
	Fluctuation  float64       `mapstructure:"fluctuation"`
	MaxConns     int           `mapstructure:"max_connections"`
	LocsPerReq   int           `mapstructure:"locations_per_request"`
	TimeMode     string        `mapstructure:"time_mode"`
	Trivial      bool          `mapstructure:"trivial"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
	ArrivalModel string        `mapstructure:"arrival_model"`
	Seed         int64         `mapstructure:"seed"`
	MaxHoursBack int           `mapstructure:"max_hours_back"`
	Insecure     bool          `mapstructure:"insecure"`
	ForceClose   bool          `mapstructure:"force_close"`
	Verbose      bool          `mapstructure:"verbose"`
	JSONOutput   bool          `mapstructure:"json_output"`
	Single       string        `mapstructure:"single"`
	Thresholds   []string      `mapstructure:"thresholds"`
	Tracing      TracingConfig `mapstructure:"tracing"`
	ConfigFile   string        `mapstructure:"-"`
}

// TracingConfig configures the optional OpenTelemetry exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint was configured, directly or
// via the standard OTEL environment variable.
func (t TracingConfig) Enabled() bool {
	return t.Endpoint != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into
// outgoing requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

// ValidationError aggregates everything wrong with a configuration so the
// user can fix it in one pass.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration before any request is issued. Any issue
// here is fatal: no partial run is attempted.
func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Endpoint) == "" {
		issues = append(issues, "endpoint is required (use --help for usage information)")
	}
	if !c.Trivial && strings.TrimSpace(c.Collection) == "" {
		issues = append(issues, "collection is required unless --trivial is set")
	}
	if c.Single == "" {
		if c.Rate <= 0 {
			issues = append(issues, "rate must be > 0")
		}
		if c.Duration <= 0 {
			issues = append(issues, "duration must be > 0")
		}
	}
	if c.Fluctuation < 0 {
		issues = append(issues, "fluctuation must be >= 0")
	}
	if c.MaxConns < 1 {
		issues = append(issues, "max-connections must be >= 1")
	}
	if c.LocsPerReq < 1 {
		issues = append(issues, "locations-per-request must be >= 1")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.DrainTimeout < 0 {
		issues = append(issues, "drain-timeout must be >= 0")
	}
	switch c.TimeMode {
	case TimeModeSingle, TimeModeNone:
	default:
		issues = append(issues, fmt.Sprintf("time-mode %q is not supported (use %q or %q)", c.TimeMode, TimeModeSingle, TimeModeNone))
	}
	switch c.ArrivalModel {
	case ArrivalModelPoisson, ArrivalModelUniform:
	default:
		issues = append(issues, fmt.Sprintf("arrival-model %q is not supported (use %q or %q)", c.ArrivalModel, ArrivalModelPoisson, ArrivalModelUniform))
	}
	if c.MaxHoursBack < 1 {
		issues = append(issues, "max-hours-back must be >= 1")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing sample_rate must be between 0.0 and 1.0")
	}

	if c.Insecure {
		fmt.Fprintln(os.Stderr, "WARNING: TLS certificate verification is disabled (--insecure). Use only against test environments.")
	}
	if c.Rate > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High request rate configured (%.0f RPS). Ensure you are authorized to load test the target service.\n", c.Rate)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
