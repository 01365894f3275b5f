package sampler

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff decides how long to wait before retry number attempt (0-indexed).
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

type ConstantBackoff struct {
	Delay time.Duration
}

func (b ConstantBackoff) NextDelay(int) time.Duration { return b.Delay }

type LinearBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (b LinearBackoff) NextDelay(attempt int) time.Duration {
	d := b.BaseDelay * time.Duration(attempt+1)
	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	m := b.Multiplier
	if m <= 0 {
		m = 2
	}
	d := float64(b.BaseDelay) * math.Pow(m, float64(attempt))
	if b.MaxDelay > 0 && d > float64(b.MaxDelay) {
		d = float64(b.MaxDelay)
	}
	if b.Jitter {
		// Between 0.5x and 1.5x.
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// BackoffFromName builds a strategy from its configuration name. Unknown
// names fall back to exponential with jitter.
func BackoffFromName(name string, base, maxDelay time.Duration) Backoff {
	switch name {
	case "constant":
		return ConstantBackoff{Delay: base}
	case "linear":
		return LinearBackoff{BaseDelay: base, MaxDelay: maxDelay}
	default:
		return ExponentialBackoff{BaseDelay: base, MaxDelay: maxDelay, Multiplier: 2, Jitter: true}
	}
}

// Retry bounds how often one grid point is measured before it is skipped.
type Retry struct {
	MaxAttempts int
	Backoff     Backoff
}

// Attempts is MaxAttempts, never less than one.
func (r Retry) Attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Delay is the pause after failed attempt number attempt (0-indexed).
func (r Retry) Delay(attempt int) time.Duration {
	if r.Backoff == nil {
		return 0
	}
	return r.Backoff.NextDelay(attempt)
}
