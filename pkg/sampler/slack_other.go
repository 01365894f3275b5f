//go:build !linux

package sampler

import (
	"context"
	"errors"
)

var errNoTimerSlack = errors.New("per-thread timer slack needs Linux; use the command sampler")

func (s *Slack) Measure(ctx context.Context, setting float64) ([]float64, error) {
	return nil, measurementErr(setting, "unsupported platform", errNoTimerSlack)
}
