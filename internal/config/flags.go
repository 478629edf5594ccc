package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "edrload",
		Short:         "Load generator for OGC EDR data-retrieval services",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("endpoint", "", "EDR service endpoint URL (e.g. https://example.com:8444/edr)")
	flags.String("collection", "metar-all", "Collection name to query")
	flags.StringSlice("location", nil, "Location identifier to query (repeatable; discovered from the service when omitted)")
	flags.String("username", "", "Username for HTTP Basic authentication")
	flags.String("password", "", "Password for HTTP Basic authentication (or EDRLOAD_PASSWORD env)")

	// Load control flags
	flags.Float64P("rate", "r", 5.0, "Average requests per second")
	flags.DurationP("duration", "d", 60*time.Second, "How long to run the test (e.g. 30s, 2m)")
	flags.Float64P("fluctuation", "f", 0.5, "Rate fluctuation amplitude (0=steady, 1+=heavy bursts)")
	flags.IntP("max-connections", "c", 10, "Maximum concurrent in-flight requests")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.Duration("drain-timeout", 5*time.Second, "Max time to wait for in-flight requests after the run window closes")
	flags.String("arrival-model", ArrivalModelPoisson, "Arrival model to use when pacing requests (poisson or uniform)")
	flags.Int64("seed", 0, "Random seed for arrival schedule and datetime selection (0 picks one from the clock)")

	// Request shape flags
	flags.Int("locations-per-request", 1, "Number of distinct locations per query")
	flags.String("time-mode", TimeModeSingle, "Temporal query mode: 'single' adds a random datetime, 'none' omits it")
	flags.Int("max-hours-back", 48, "Randomized datetime window in whole hours")
	flags.Bool("trivial", false, "Query only the bare base endpoint (baseline measurement)")
	flags.String("single", "", "Issue one request for the given location and exit")

	// Transport flags
	flags.Bool("insecure", false, "Skip TLS certificate verification (self-signed certificates)")
	flags.Bool("force-close", false, "Close the connection after every request (disables keep-alive)")

	// Output flags
	flags.BoolP("verbose", "v", false, "Log every request outcome to stderr")
	flags.Bool("json-output", false, "Emit the final report as JSON")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance threshold (repeatable, e.g. 'req_duration:p95 < 500')")

	// Tracing flags
	flags.String("otlp-endpoint", "", "OTLP exporter endpoint for request tracing")
	flags.String("otlp-protocol", "grpc", "OTLP exporter protocol: 'grpc' or 'http'")
	flags.Bool("otlp-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("otlp-sample-rate", 1.0, "Trace sampling rate between 0.0 and 1.0")
	flags.Bool("trace-propagate", false, "Inject W3C trace context headers into EDR requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("endpoint") {
		val, err := fs.GetString("endpoint")
		if err != nil {
			return err
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("collection") {
		val, err := fs.GetString("collection")
		if err != nil {
			return err
		}
		cfg.Collection = strings.TrimSpace(val)
	}
	if fs.Changed("location") {
		val, err := fs.GetStringSlice("location")
		if err != nil {
			return err
		}
		cfg.Locations = val
	}
	if fs.Changed("username") {
		val, err := fs.GetString("username")
		if err != nil {
			return err
		}
		cfg.Username = strings.TrimSpace(val)
	}
	if fs.Changed("password") {
		val, err := fs.GetString("password")
		if err != nil {
			return err
		}
		cfg.Password = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetFloat64("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("fluctuation") {
		val, err := fs.GetFloat64("fluctuation")
		if err != nil {
			return err
		}
		cfg.Fluctuation = val
	}
	if fs.Changed("max-connections") {
		val, err := fs.GetInt("max-connections")
		if err != nil {
			return err
		}
		cfg.MaxConns = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("drain-timeout") {
		val, err := fs.GetDuration("drain-timeout")
		if err != nil {
			return err
		}
		cfg.DrainTimeout = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.ArrivalModel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("locations-per-request") {
		val, err := fs.GetInt("locations-per-request")
		if err != nil {
			return err
		}
		cfg.LocsPerReq = val
	}
	if fs.Changed("time-mode") {
		val, err := fs.GetString("time-mode")
		if err != nil {
			return err
		}
		cfg.TimeMode = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("max-hours-back") {
		val, err := fs.GetInt("max-hours-back")
		if err != nil {
			return err
		}
		cfg.MaxHoursBack = val
	}
	if fs.Changed("trivial") {
		val, err := fs.GetBool("trivial")
		if err != nil {
			return err
		}
		cfg.Trivial = val
	}
	if fs.Changed("single") {
		val, err := fs.GetString("single")
		if err != nil {
			return err
		}
		cfg.Single = strings.TrimSpace(val)
	}
	if fs.Changed("insecure") {
		val, err := fs.GetBool("insecure")
		if err != nil {
			return err
		}
		cfg.Insecure = val
	}
	if fs.Changed("force-close") {
		val, err := fs.GetBool("force-close")
		if err != nil {
			return err
		}
		cfg.ForceClose = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("otlp-endpoint") {
		val, err := fs.GetString("otlp-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otlp-protocol") {
		val, err := fs.GetString("otlp-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("otlp-insecure") {
		val, err := fs.GetBool("otlp-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("otlp-sample-rate") {
		val, err := fs.GetFloat64("otlp-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("trace-propagate") {
		val, err := fs.GetBool("trace-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = val
	}
	return nil
}
