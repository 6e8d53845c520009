// Package retry computes delivery backoff for the sync queue.
//
// The policy is pure arithmetic: exponential delay doubling per attempt up
// to a cap, widened by a small random jitter so that many clients coming
// back online do not retry in lockstep.
package retry

import (
	"math/rand"
	"time"
)

// Defaults produce the sequence 1s, 2s, 4s, 8s, 16s before exhaustion, with
// 32s as the cap for policies configured with more attempts.
const (
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = 1000 * time.Millisecond
	DefaultCap            = 32000 * time.Millisecond
	DefaultJitterFraction = 0.10
)

// Policy holds the backoff parameters. The zero value is not usable; build
// one with Default and override fields as needed.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Cap            time.Duration
	JitterFraction float64

	// rnd is injectable for deterministic tests. Nil means global rand.
	rnd *rand.Rand
}

// Default returns the standard policy.
func Default() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		Cap:            DefaultCap,
		JitterFraction: DefaultJitterFraction,
	}
}

// WithRand returns a copy of the policy drawing jitter from r.
func (p Policy) WithRand(r *rand.Rand) Policy {
	p.rnd = r
	return p
}

// State is the per-operation backoff bookkeeping.
type State struct {
	Attempts    int
	LastAttempt time.Time
}

// NextDelay returns the delay before the given attempt (0-based count of
// attempts already made): min(base*2^attempts, cap) * (1 + U(0, jitter)).
func (p Policy) NextDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= p.Cap {
			d = p.Cap
			break
		}
	}
	if d > p.Cap {
		d = p.Cap
	}
	jitter := p.JitterFraction * p.float64()
	return d + time.Duration(float64(d)*jitter)
}

func (p Policy) float64() float64 {
	if p.rnd != nil {
		return p.rnd.Float64()
	}
	return rand.Float64()
}

// ShouldRetry reports whether another attempt is allowed after the given
// number of attempts already made.
func (p Policy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// Reset zeroes the bookkeeping after a fresh success or an operator reset.
func Reset(s *State) {
	s.Attempts = 0
	s.LastAttempt = time.Time{}
}
