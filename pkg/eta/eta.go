// Package eta estimates how long a search has left to run.
//
// There are two estimators and they are never merged. Initial is a static
// figure computed before anything is measured; Live is derived from observed
// throughput. Callers display both, labelled, and prefer Live once it is
// known.
package eta

import "time"

// Unknown is the Value of an estimate that cannot be computed yet.
const Unknown time.Duration = -1

// Source says which estimator produced an Estimate.
type Source int

const (
	Static Source = iota
	Observed
)

func (s Source) String() string {
	if s == Observed {
		return "live"
	}
	return "static"
}

// Confidence is a coarse label shown next to an estimate.
type Confidence int

const (
	Low Confidence = iota
	High
)

func (c Confidence) String() string {
	if c == High {
		return "high"
	}
	return "low"
}

type Estimate struct {
	Value      time.Duration
	Source     Source
	Confidence Confidence
}

// Known reports whether Value holds a real duration.
func (e Estimate) Known() bool { return e.Value >= 0 }

// Initial is gridSize × assumedPerPoint. It is always low confidence because
// assumedPerPoint is configuration, not measurement.
func Initial(gridSize int, assumedPerPoint time.Duration) Estimate {
	if gridSize < 0 {
		gridSize = 0
	}
	if assumedPerPoint < 0 {
		assumedPerPoint = 0
	}
	return Estimate{
		Value:      time.Duration(gridSize) * assumedPerPoint,
		Source:     Static,
		Confidence: Low,
	}
}

// Live extrapolates the mean time per completed point over the points that
// remain. With nothing completed it returns an estimate whose Value is
// Unknown.
func Live(elapsed time.Duration, completed, total int) Estimate {
	e := Estimate{Value: Unknown, Source: Observed, Confidence: Low}
	if completed <= 0 {
		return e
	}
	remaining := total - completed
	if remaining < 0 {
		remaining = 0
	}
	// Float math keeps elapsed*remaining from overflowing on long runs.
	per := float64(elapsed) / float64(completed)
	e.Value = time.Duration(per * float64(remaining))
	e.Confidence = High
	return e
}

// Preferred is the estimate to give display priority: live once it is
// known, the static one before that.
func Preferred(initial, live Estimate) Estimate {
	if live.Known() {
		return live
	}
	return initial
}
