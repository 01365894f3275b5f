// Package sampler takes raw timing samples for one candidate timer setting.
//
// A Sampler owns the machine's timer state while Measure runs. Callers must
// never run two measurements at once; the search controller guarantees that
// by measuring candidates strictly one after another.
package sampler

import (
	"context"
	"fmt"
)

// Sampler applies a timer setting (milliseconds) and returns the measured
// samples in milliseconds, in the order they were taken. A successful call
// returns at least one sample.
type Sampler interface {
	Measure(ctx context.Context, setting float64) ([]float64, error)
}

// Func adapts a plain function to the Sampler interface.
type Func func(ctx context.Context, setting float64) ([]float64, error)

func (f Func) Measure(ctx context.Context, setting float64) ([]float64, error) {
	return f(ctx, setting)
}

// MeasurementError reports why one measurement of a setting failed.
type MeasurementError struct {
	Setting float64
	Reason  string
	Err     error
}

func (e *MeasurementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("measuring %.4fms: %s: %v", e.Setting, e.Reason, e.Err)
	}
	return fmt.Sprintf("measuring %.4fms: %s", e.Setting, e.Reason)
}

func (e *MeasurementError) Unwrap() error { return e.Err }

func measurementErr(setting float64, reason string, err error) *MeasurementError {
	return &MeasurementError{Setting: setting, Reason: reason, Err: err}
}
