package runner

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func collectGaps(s Schedule, limit int) []time.Duration {
	var gaps []time.Duration
	for len(gaps) < limit {
		gap, ok := s.Next()
		if !ok {
			break
		}
		gaps = append(gaps, gap)
	}
	return gaps
}

func TestCoxScheduleDeterministicForSeed(t *testing.T) {
	opt := Options{Rate: 50, Fluctuation: 0.8, Duration: 30 * time.Second, Seed: 1234}
	a := collectGaps(newSchedule(opt), 500)
	b := collectGaps(newSchedule(opt), 500)

	if len(a) == 0 {
		t.Fatal("expected a non-empty schedule")
	}
	if len(a) != len(b) {
		t.Fatalf("schedules differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("gap %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestCoxScheduleCoversDuration(t *testing.T) {
	duration := 10 * time.Second
	s := newCoxSchedule(100, 0.5, duration, rand.New(rand.NewSource(7)))

	var elapsed time.Duration
	for {
		gap, ok := s.Next()
		if !ok {
			break
		}
		elapsed += gap
		if elapsed >= duration {
			t.Fatalf("tick scheduled at %s, past the %s window", elapsed, duration)
		}
	}
}

// With zero fluctuation the schedule degenerates to a homogeneous Poisson
// process: exponential gaps whose mean is 1/rate and whose coefficient of
// variation is 1.
func TestCoxScheduleZeroFluctuationIsPoisson(t *testing.T) {
	const rate = 1000.0
	s := newCoxSchedule(rate, 0, time.Hour, rand.New(rand.NewSource(99)))
	gaps := collectGaps(s, 20000)
	if len(gaps) < 20000 {
		t.Fatalf("collected only %d gaps", len(gaps))
	}

	var sum float64
	for _, g := range gaps {
		sum += g.Seconds()
	}
	mean := sum / float64(len(gaps))

	var variance float64
	for _, g := range gaps {
		d := g.Seconds() - mean
		variance += d * d
	}
	variance /= float64(len(gaps))
	cv := math.Sqrt(variance) / mean

	expectedMean := 1.0 / rate
	if mean < expectedMean*0.95 || mean > expectedMean*1.05 {
		t.Errorf("mean gap %.6fs, want about %.6fs", mean, expectedMean)
	}
	if cv < 0.9 || cv > 1.1 {
		t.Errorf("coefficient of variation %.3f, want about 1.0", cv)
	}
}

func TestCoxScheduleNoiseStaysBounded(t *testing.T) {
	s := newCoxSchedule(10, 2.0, time.Hour, rand.New(rand.NewSource(5)))
	for i := 0; i < 10000; i++ {
		s.advanceWindow()
		if s.noise < -1 || s.noise > 1 {
			t.Fatalf("noise %f escaped [-1, 1] after %d windows", s.noise, i+1)
		}
		if s.rate < s.baseRate*rateFloor {
			t.Fatalf("rate %f fell below the floor after %d windows", s.rate, i+1)
		}
	}
}

func TestCoxScheduleFluctuationMovesRate(t *testing.T) {
	s := newCoxSchedule(100, 1.0, time.Hour, rand.New(rand.NewSource(21)))
	moved := false
	for i := 0; i < 50; i++ {
		before := s.rate
		s.advanceWindow()
		if s.rate != before {
			moved = true
			break
		}
	}
	if !moved {
		t.Fatal("rate never moved across 50 windows with fluctuation 1.0")
	}
}

func TestUniformScheduleSpacing(t *testing.T) {
	s := newUniformSchedule(100, time.Second)
	gaps := collectGaps(s, 1000)

	// 100/s over one second yields just under 100 ticks.
	if len(gaps) < 90 || len(gaps) > 100 {
		t.Fatalf("got %d ticks, want about 99", len(gaps))
	}
}

func TestEmptyScheduleForZeroRate(t *testing.T) {
	s := newSchedule(Options{Rate: 0, Duration: time.Second})
	if _, ok := s.Next(); ok {
		t.Fatal("zero rate must produce an empty schedule")
	}
}
