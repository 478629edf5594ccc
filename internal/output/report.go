package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/edr-tools/edrload/internal/metrics"
)

// p95MinSamples is the smallest bucket for which the p95 estimate is worth
// printing. Below this the quantile is dominated by a handful of samples.
const p95MinSamples = 20

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, summary metrics.Summary, targetRate float64) {
	stats := summary.Stats

	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(10*time.Millisecond))
	if targetRate > 0 {
		fmt.Fprintf(w, "Requests/sec:      %.2f (target %.2f)\n", stats.RequestsPerSec, targetRate)
	} else {
		fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	}

	if stats.Total > 0 {
		fmt.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  Min:             %.1fms\n", stats.MinLatencyMs)
		fmt.Fprintf(w, "  Max:             %.1fms\n", stats.MaxLatencyMs)
		fmt.Fprintf(w, "  Mean:            %.1fms\n", stats.MeanLatencyMs)
		fmt.Fprintf(w, "  P50:             %.1fms\n", stats.P50LatencyMs)
		fmt.Fprintf(w, "  P95:             %.1fms\n", stats.P95LatencyMs)
		fmt.Fprintf(w, "  P99:             %.1fms\n", stats.P99LatencyMs)
	}

	if len(summary.Buckets) > 0 {
		fmt.Fprintln(w, "\nOutcome Breakdown:")
		for _, b := range summary.Buckets {
			line := fmt.Sprintf("  - %s: count=%d, min=%.1fms, mean=%.1fms, median=%.1fms, max=%.1fms",
				b.Label, b.Count, b.MinLatencyMs, b.MeanLatencyMs, b.MedianLatencyMs, b.MaxLatencyMs)
			if b.Count >= p95MinSamples {
				line += fmt.Sprintf(", p95=%.1fms", b.P95LatencyMs)
			}
			fmt.Fprintln(w, line)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, summary metrics.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
