//go:build linux

package sampler

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// Measure pins the goroutine to its OS thread, sets that thread's timer
// slack, and times Samples raw nanosleep calls. Going through nanosleep on
// the locked thread matters: a Go time.Sleep is woken by whichever thread
// runs the timer, which would not carry the slack under test.
func (s *Slack) Measure(ctx context.Context, setting float64) ([]float64, error) {
	if setting < 0 || math.IsNaN(setting) {
		return nil, measurementErr(setting, "invalid slack", nil)
	}
	n := s.Samples
	if n < 1 {
		n = 1
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prev, err := unix.PrctlRetInt(unix.PR_GET_TIMERSLACK, 0, 0, 0, 0)
	if err != nil {
		return nil, measurementErr(setting, "reading timer slack", err)
	}
	slackNs := uintptr(math.Round(setting * 1e6))
	if slackNs == 0 {
		// Zero would reset to the thread default instead of "no slack".
		slackNs = 1
	}
	if err := unix.Prctl(unix.PR_SET_TIMERSLACK, slackNs, 0, 0, 0); err != nil {
		return nil, measurementErr(setting, "setting timer slack", err)
	}
	defer unix.Prctl(unix.PR_SET_TIMERSLACK, uintptr(prev), 0, 0, 0)

	if err := settle(ctx, s.Settle); err != nil {
		return nil, measurementErr(setting, "settling", err)
	}

	target := s.target()
	ts := unix.NsecToTimespec(target.Nanoseconds())
	samples := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		req := ts
		for {
			var rem unix.Timespec
			err := unix.Nanosleep(&req, &rem)
			if err == nil {
				break
			}
			if err != unix.EINTR {
				return nil, measurementErr(setting, fmt.Sprintf("sleep %d of %d", i+1, n), err)
			}
			req = rem
		}
		samples = append(samples, overshootMs(time.Since(start), target))
	}
	return samples, nil
}
