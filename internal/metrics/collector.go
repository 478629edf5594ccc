package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/edr-tools/edrload/internal/runner"
)

// Collector records request outcomes in a thread-safe manner. It implements
// runner.Recorder.
type Collector struct {
	mu        sync.Mutex
	overall   *bucket
	buckets   map[string]*bucket
	successes int64
	failures  int64
	start     time.Time
}

// Stats is a point-in-time aggregate snapshot across all buckets.
type Stats struct {
	Total       int64         `json:"total"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P95Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`
	Duration    time.Duration `json:"-"`

	RequestsPerSec float64 `json:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms"`
}

// BucketStats is the finalized aggregate for one status code or failure
// class.
type BucketStats struct {
	Class string `json:"class"`
	Label string `json:"label"`
	Count int64  `json:"count"`

	MinLatency    time.Duration `json:"-"`
	MaxLatency    time.Duration `json:"-"`
	MeanLatency   time.Duration `json:"-"`
	MedianLatency time.Duration `json:"-"`
	P95Latency    time.Duration `json:"-"`

	MinLatencyMs    float64 `json:"min_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms"`
	MeanLatencyMs   float64 `json:"mean_latency_ms"`
	MedianLatencyMs float64 `json:"median_latency_ms"`
	P95LatencyMs    float64 `json:"p95_latency_ms"`
}

// Summary is the finalized report: overall stats plus the per-class
// breakdown, sorted by descending count.
type Summary struct {
	Stats
	Buckets []BucketStats `json:"buckets,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		overall: newBucket(),
		buckets: make(map[string]*bucket),
		start:   time.Now(),
	}
}

// Start marks the actual start of the run for elapsed-time calculations,
// in case the collector was constructed earlier during wiring.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed reports time since the run started.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Record folds one outcome into the aggregates. Safe to call concurrently;
// the critical section is bounded to two histogram inserts and counter
// updates.
func (c *Collector) Record(out runner.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if out.Success {
		c.successes++
	} else {
		c.failures++
	}

	c.overall.record(out.Latency)
	b, ok := c.buckets[out.Class]
	if !ok {
		b = newBucket()
		c.buckets[out.Class] = b
	}
	b.record(out.Latency)
}

// Snapshot returns an immutable copy of the current overall aggregates for
// progress reporting.
func (c *Collector) Snapshot(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked(elapsed)
}

// Finalize computes the full summary: overall stats plus per-bucket count,
// min, max, mean, median, and p95. Percentiles come from HdrHistogram
// ValueAtQuantile, so repeated calls over the same samples yield identical
// values.
func (c *Collector) Finalize(elapsed time.Duration) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := Summary{Stats: c.statsLocked(elapsed)}
	for class, b := range c.buckets {
		summary.Buckets = append(summary.Buckets, b.stats(class))
	}
	SortBuckets(summary.Buckets)
	return summary
}

func (c *Collector) statsLocked(elapsed time.Duration) Stats {
	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.overall.min,
		MaxLatency: c.overall.max,
	}
	if total > 0 {
		stats.MeanLatency = c.overall.sum / time.Duration(total)
	}
	if c.overall.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.overall.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P95Latency = time.Duration(c.overall.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.overall.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.Duration = elapsed
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P95LatencyMs = toMs(stats.P95Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)
	stats.DurationMs = toMs(elapsed)
	return stats
}

// bucket holds the latency aggregate for one outcome class.
type bucket struct {
	hist *hdrhistogram.Histogram
	min  time.Duration
	max  time.Duration
	sum  time.Duration
}

func newBucket() *bucket {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &bucket{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

func (b *bucket) record(latency time.Duration) {
	us := latency.Microseconds()
	if us < b.hist.LowestTrackableValue() {
		us = b.hist.LowestTrackableValue()
	}
	if us > b.hist.HighestTrackableValue() {
		us = b.hist.HighestTrackableValue()
	}
	_ = b.hist.RecordValue(us)

	b.sum += latency
	if b.hist.TotalCount() == 1 || latency < b.min {
		b.min = latency
	}
	if latency > b.max {
		b.max = latency
	}
}

func (b *bucket) stats(class string) BucketStats {
	count := b.hist.TotalCount()
	stats := BucketStats{
		Class:      class,
		Label:      ClassLabel(class),
		Count:      count,
		MinLatency: b.min,
		MaxLatency: b.max,
	}
	if count > 0 {
		stats.MeanLatency = b.sum / time.Duration(count)
		stats.MedianLatency = time.Duration(b.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P95Latency = time.Duration(b.hist.ValueAtQuantile(95)) * time.Microsecond
	}
	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.MedianLatencyMs = toMs(stats.MedianLatency)
	stats.P95LatencyMs = toMs(stats.P95Latency)
	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
