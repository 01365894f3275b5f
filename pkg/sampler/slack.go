package sampler

import (
	"context"
	"time"
)

// Slack measures sleep overshoot under a given per-thread timer slack. The
// candidate setting is the slack in milliseconds: the kernel may delay a
// timer expiry by up to that much, which is the Linux counterpart of a
// coarse system timer resolution.
type Slack struct {
	Samples int           // sleeps per Measure call
	Target  time.Duration // requested length of each sleep
	Settle  time.Duration // pause after applying the slack, before the first sleep
}

// NewSlack returns a Slack sampler with a 1ms sleep target.
func NewSlack(samples int, settle time.Duration) *Slack {
	return &Slack{Samples: samples, Target: time.Millisecond, Settle: settle}
}

func (s *Slack) target() time.Duration {
	if s.Target <= 0 {
		return time.Millisecond
	}
	return s.Target
}

// overshootMs converts one measured sleep into a sample.
func overshootMs(slept, target time.Duration) float64 {
	d := slept - target
	if d < 0 {
		d = 0
	}
	return float64(d) / float64(time.Millisecond)
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
