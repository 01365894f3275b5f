package stats

import (
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Tracked range in microseconds: 1us to 60s.
	histMinUs   = 1
	histMaxUs   = 60 * 1000 * 1000
	histSigFigs = 3
)

// Histogram accumulates every raw sample of a run, across all candidates,
// so the final summary can describe the whole run without keeping the
// samples around. Values are recorded in microseconds.
type Histogram struct {
	h       *hdrhistogram.Histogram
	dropped int64
}

func NewHistogram() *Histogram {
	return &Histogram{h: hdrhistogram.New(histMinUs, histMaxUs, histSigFigs)}
}

// RecordMs records a sample given in milliseconds. Negative and
// out-of-range values are counted as dropped.
func (h *Histogram) RecordMs(ms float64) {
	if ms < 0 || math.IsNaN(ms) {
		h.dropped++
		return
	}
	us := int64(math.Round(ms * 1000))
	if us < histMinUs {
		us = histMinUs
	}
	if err := h.h.RecordValue(us); err != nil {
		h.dropped++
	}
}

// RecordAll records a batch of millisecond samples.
func (h *Histogram) RecordAll(ms []float64) {
	for _, v := range ms {
		h.RecordMs(v)
	}
}

func (h *Histogram) Count() int64 { return h.h.TotalCount() }

func (h *Histogram) Dropped() int64 { return h.dropped }

// QuantileMs returns the value at quantile q (0-100) in milliseconds.
func (h *Histogram) QuantileMs(q float64) float64 {
	if h.h.TotalCount() == 0 {
		return 0
	}
	return float64(h.h.ValueAtQuantile(q)) / 1000
}

func (h *Histogram) MeanMs() float64 { return h.h.Mean() / 1000 }

func (h *Histogram) MaxMs() float64 {
	if h.h.TotalCount() == 0 {
		return 0
	}
	return float64(h.h.Max()) / 1000
}
