package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/edr-tools/edrload/internal/config"
	"github.com/edr-tools/edrload/internal/edrclient"
	"github.com/edr-tools/edrload/internal/locations"
	"github.com/edr-tools/edrload/internal/metrics"
	"github.com/edr-tools/edrload/internal/output"
	"github.com/edr-tools/edrload/internal/runner"
	"github.com/edr-tools/edrload/internal/threshold"
	"github.com/edr-tools/edrload/internal/tracing"
)

const (
	progressInterval = time.Second
	discoveryTimeout = 30 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// edrExecutor issues one EDR query per dispatch tick and classifies the
// result. It implements runner.Executor.
type edrExecutor struct {
	client     *http.Client
	builder    *edrclient.RequestBuilder
	pool       *locations.Pool
	perRequest int
	collection string
	tracer     trace.Tracer
	propagate  bool
	verbose    bool

	logMu sync.Mutex
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "[edrload] tracing shutdown: %v\n", err)
		}
	}()

	client := edrclient.NewHTTPClient(edrclient.Options{
		Timeout:    cfg.Timeout,
		MaxConns:   cfg.MaxConns,
		Insecure:   cfg.Insecure,
		ForceClose: cfg.ForceClose,
	})

	builder, err := edrclient.NewRequestBuilder(edrclient.Options{
		BaseURL:      cfg.Endpoint,
		Collection:   cfg.Collection,
		Username:     cfg.Username,
		Password:     cfg.Password,
		TimeMode:     edrclient.TimeMode(cfg.TimeMode),
		Trivial:      cfg.Trivial,
		MaxHoursBack: cfg.MaxHoursBack,
	}, seed)
	if err != nil {
		return err
	}

	if cfg.Single != "" {
		return runSingle(ctx, client, builder, cfg.Single)
	}

	var pool *locations.Pool
	if !cfg.Trivial {
		ids := cfg.Locations
		if len(ids) == 0 {
			discoverCtx, discoverCancel := context.WithTimeout(ctx, discoveryTimeout)
			ids, err = edrclient.FetchLocations(discoverCtx, client, builder)
			discoverCancel()
			if err != nil {
				return err
			}
			if cfg.Verbose {
				fmt.Fprintf(os.Stderr, "[edrload] discovered %d locations for collection %q\n", len(ids), cfg.Collection)
			}
		}
		pool, err = locations.NewPool(ids, seed+1)
		if err != nil {
			return err
		}
		if cfg.LocsPerReq > pool.Len() {
			return fmt.Errorf("locations-per-request %d exceeds the %d available locations", cfg.LocsPerReq, pool.Len())
		}
	}

	collector := metrics.NewCollector()

	executor := &edrExecutor{
		client:     client,
		builder:    builder,
		pool:       pool,
		perRequest: cfg.LocsPerReq,
		collection: cfg.Collection,
		tracer:     provider.Tracer(),
		propagate:  provider.ShouldPropagate(),
		verbose:    cfg.Verbose,
	}

	opts := runner.Options{
		Rate:         cfg.Rate,
		Fluctuation:  cfg.Fluctuation,
		Duration:     cfg.Duration,
		MaxInFlight:  cfg.MaxConns,
		DrainTimeout: cfg.DrainTimeout,
		ArrivalModel: runner.ArrivalModel(cfg.ArrivalModel),
		Seed:         seed + 2,
		Executor:     executor,
		Recorder:     collector,
	}

	if !cfg.JSONOutput {
		fmt.Printf("Target: %s (collection %q)\n", cfg.Endpoint, cfg.Collection)
		fmt.Printf("Rate: %.1f req/s for %s, fluctuation %.2f, max in-flight %d, seed %d\n",
			cfg.Rate, cfg.Duration, cfg.Fluctuation, cfg.MaxConns, seed)
		opts.Progress = output.NewProgressReporter(collector, progressInterval, os.Stdout)
	}

	r, err := runner.New(opts)
	if err != nil {
		return err
	}

	collector.Start()
	result := r.Run(ctx)
	summary := collector.Finalize(result.Duration)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, summary); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, summary, cfg.Rate)
		if result.Abandoned > 0 {
			fmt.Printf("\nAbandoned after drain timeout: %d of %d issued\n", result.Abandoned, result.Issued)
		}
	}

	if len(thresholds) > 0 {
		evaluator := threshold.NewEvaluator(thresholds)
		results := evaluator.Evaluate(summary.Stats)

		fmt.Println("\nThresholds:")
		failed := 0
		for _, res := range results {
			fmt.Printf("  %s\n", res.Message)
			if !res.Pass {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d threshold(s) failed", failed)
		}
	}

	return nil
}

// runSingle issues one request for the given location and prints the result.
func runSingle(ctx context.Context, client *http.Client, builder *edrclient.RequestBuilder, location string) error {
	req, err := builder.Build(ctx, []string{location})
	if err != nil {
		return err
	}
	fmt.Printf("GET %s\n", req.URL)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return err
	}

	fmt.Printf("HTTP %d in %s (%d bytes)\n", resp.StatusCode, latency.Round(time.Millisecond), len(body))
	return nil
}

func (e *edrExecutor) Execute(ctx context.Context) runner.Outcome {
	var locs []string
	if e.pool != nil {
		var err error
		locs, err = e.pool.Choose(e.perRequest)
		if err != nil {
			return runner.TransportOutcome(0, err)
		}
	}

	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, e.collection)

	start := time.Now()
	req, err := e.builder.Build(ctx, locs)
	if err != nil {
		tracing.EndSpan(span, err)
		return runner.TransportOutcome(time.Since(start), err)
	}
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		latency := time.Since(start)
		tracing.EndSpan(span, err)
		e.logOutcome(req, 0, latency, err)
		return runner.TransportOutcome(latency, err)
	}

	// Latency covers the full exchange including the response body.
	_, copyErr := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	latency := time.Since(start)

	if copyErr != nil {
		tracing.EndSpan(span, copyErr)
		e.logOutcome(req, 0, latency, copyErr)
		return runner.TransportOutcome(latency, copyErr)
	}

	out := runner.StatusOutcome(resp.StatusCode, latency, nil)
	var spanErr error
	if !out.Success {
		spanErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	tracing.EndSpan(span, spanErr, attribute.Int("http.response.status_code", resp.StatusCode))
	e.logOutcome(req, resp.StatusCode, latency, spanErr)
	return out
}

func (e *edrExecutor) logOutcome(req *http.Request, status int, latency time.Duration, err error) {
	if !e.verbose {
		return
	}
	e.logMu.Lock()
	defer e.logMu.Unlock()
	if err != nil && status == 0 {
		fmt.Fprintf(os.Stderr, "[edrload] GET %s failed after %s: %v\n", req.URL.Path, latency.Round(time.Millisecond), err)
		return
	}
	fmt.Fprintf(os.Stderr, "[edrload] GET %s -> %d in %s\n", req.URL.Path, status, latency.Round(time.Millisecond))
}
