package runner

import (
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Schedule is a lazy, ordered, non-restartable sequence of dispatch
// instants covering [0, Duration). Next returns the gap to wait before the
// next tick, or false once the schedule is exhausted. Schedules are
// consumed by a single goroutine and are not safe for concurrent use.
type Schedule interface {
	Next() (time.Duration, bool)
}

func newSchedule(opt Options) Schedule {
	if opt.Rate <= 0 {
		return emptySchedule{}
	}
	if opt.ArrivalModel == ArrivalModelUniform {
		return newUniformSchedule(opt.Rate, opt.Duration)
	}
	rng := rand.New(rand.NewSource(opt.Seed))
	return newCoxSchedule(opt.Rate, opt.Fluctuation, opt.Duration, rng)
}

type emptySchedule struct{}

func (emptySchedule) Next() (time.Duration, bool) { return 0, false }

const (
	// controlWindow is how long one rate-noise value stays in effect.
	controlWindow = time.Second
	// noiseStep bounds how far the rate noise can move per window.
	noiseStep = 0.25
	// rateFloor keeps the effective rate multiplier strictly positive so
	// inter-arrival gaps stay finite.
	rateFloor = 0.01
)

// coxSchedule samples exponential inter-arrival gaps whose instantaneous
// rate is modulated by a random walk clamped to [-1, 1], redrawn once per
// control window. With fluctuation 0 the rate never moves and the schedule
// is a homogeneous Poisson process.
type coxSchedule struct {
	rng         *rand.Rand
	baseRate    float64
	fluctuation float64
	duration    time.Duration
	elapsed     time.Duration
	windowEnd   time.Duration
	noise       float64
	rate        float64
}

func newCoxSchedule(baseRate, fluctuation float64, duration time.Duration, rng *rand.Rand) *coxSchedule {
	return &coxSchedule{
		rng:         rng,
		baseRate:    baseRate,
		fluctuation: fluctuation,
		duration:    duration,
		rate:        baseRate,
	}
}

func (s *coxSchedule) Next() (time.Duration, bool) {
	if s.elapsed >= s.duration {
		return 0, false
	}
	if s.fluctuation > 0 {
		for s.elapsed >= s.windowEnd {
			s.advanceWindow()
		}
	}

	value := s.rng.ExpFloat64()
	gap := float64(time.Second) * value / s.rate
	if gap > math.MaxInt64 {
		gap = math.MaxInt64
	}

	s.elapsed += time.Duration(gap)
	if s.elapsed >= s.duration {
		// Final partial window is truncated, not padded.
		return 0, false
	}
	return time.Duration(gap), true
}

func (s *coxSchedule) advanceWindow() {
	s.windowEnd += controlWindow
	s.noise += (s.rng.Float64()*2 - 1) * noiseStep
	if s.noise > 1 {
		s.noise = 1
	} else if s.noise < -1 {
		s.noise = -1
	}
	s.rate = s.baseRate * math.Max(rateFloor, 1+s.fluctuation*s.noise)
}

// uniformSchedule paces ticks at fixed intervals via a rate.Limiter, so a
// dispatch loop that falls behind is granted shorter gaps until it catches
// up to the nominal spacing.
type uniformSchedule struct {
	limiter  *rate.Limiter
	duration time.Duration
	interval time.Duration
	elapsed  time.Duration
}

func newUniformSchedule(rps float64, duration time.Duration) *uniformSchedule {
	return &uniformSchedule{
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		duration: duration,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

func (s *uniformSchedule) Next() (time.Duration, bool) {
	if s.elapsed >= s.duration {
		return 0, false
	}
	gap := s.limiter.Reserve().Delay()
	s.elapsed += s.interval
	if s.elapsed >= s.duration {
		return 0, false
	}
	return gap, true
}
