package main

import (
	"time"

	"github.com/runningwild/timerbench/pkg/search"
	"github.com/runningwild/timerbench/pkg/stats"
)

// observers fans one search notification out to several observers.
type observers []search.Observer

func (o observers) OnCandidate(c search.Candidate, took time.Duration, ev search.ProgressEvent) {
	for _, ob := range o {
		ob.OnCandidate(c, took, ev)
	}
}

func (o observers) OnSkip(s search.SkippedCandidate, ev search.ProgressEvent) {
	for _, ob := range o {
		ob.OnSkip(s, ev)
	}
}

// histogramObserver folds every measured sample into the run-wide
// histogram shown in the summary.
type histogramObserver struct {
	h *stats.Histogram
}

func (o histogramObserver) OnCandidate(c search.Candidate, _ time.Duration, _ search.ProgressEvent) {
	o.h.RecordAll(c.Samples)
}

func (histogramObserver) OnSkip(search.SkippedCandidate, search.ProgressEvent) {}
