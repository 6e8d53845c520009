package retry

import (
	"math/rand"
	"testing"
	"time"
)

func TestNextDelayBounds(t *testing.T) {
	p := Default().WithRand(rand.New(rand.NewSource(1)))
	for attempts := 0; attempts < 10; attempts++ {
		d := p.NextDelay(attempts)
		base := DefaultBaseDelay << attempts
		if base > DefaultCap {
			base = DefaultCap
		}
		lo := base
		hi := base + time.Duration(float64(base)*DefaultJitterFraction)
		if d < lo || d > hi {
			t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempts, d, lo, hi)
		}
	}
}

func TestNextDelayMonotonicUpToCap(t *testing.T) {
	// Jitter off so the raw curve is comparable.
	p := Default()
	p.JitterFraction = 0
	prev := time.Duration(0)
	for attempts := 0; attempts < 12; attempts++ {
		d := p.NextDelay(attempts)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempts, d, prev)
		}
		prev = d
	}
	if prev != DefaultCap {
		t.Fatalf("curve should end at cap, got %v", prev)
	}
}

func TestNextDelayCapWindow(t *testing.T) {
	p := Default().WithRand(rand.New(rand.NewSource(7)))
	for i := 0; i < 100; i++ {
		d := p.NextDelay(20)
		if d < 32000*time.Millisecond || d > 35200*time.Millisecond {
			t.Fatalf("capped delay %v outside [32s, 35.2s]", d)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	p := Default()
	for attempts := 0; attempts < p.MaxAttempts; attempts++ {
		if !p.ShouldRetry(attempts) {
			t.Fatalf("attempt %d should be retryable", attempts)
		}
	}
	if p.ShouldRetry(p.MaxAttempts) {
		t.Fatalf("attempt %d should not be retryable", p.MaxAttempts)
	}
}

func TestShouldRetryZeroMaxAttempts(t *testing.T) {
	p := Default()
	p.MaxAttempts = 0
	if p.ShouldRetry(0) {
		t.Fatalf("maxAttempts=0 must never retry")
	}
}

func TestReset(t *testing.T) {
	s := State{Attempts: 3, LastAttempt: time.Now()}
	Reset(&s)
	if s.Attempts != 0 || !s.LastAttempt.IsZero() {
		t.Fatalf("reset left %+v", s)
	}
}
