package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptySampleSet is returned by Reduce when it is handed no samples.
// Samplers guarantee at least one sample per run, so seeing this is a bug
// in the caller.
var ErrEmptySampleSet = errors.New("empty sample set")

// z-score of the two-sided 95% interval.
const z95 = 1.96

// Weights combine mean, p95 and MAD into one performance score.
type Weights struct {
	Mean float64 `json:"mean"`
	P95  float64 `json:"p95"`
	MAD  float64 `json:"mad"`
}

// DefaultWeights favours the tail (p95) over dispersion (MAD) over the mean.
func DefaultWeights() Weights {
	return Weights{Mean: 0.10, P95: 0.60, MAD: 0.30}
}

// Score is a fixed linear combination. Lower is better.
func (w Weights) Score(mean, p95, mad float64) float64 {
	return w.Mean*mean + w.P95*p95 + w.MAD*mad
}

// Statistics is the reduction of one candidate's raw samples. Everything
// except Count, Median and MAD is computed on the retained subset.
type Statistics struct {
	Count           int     `json:"count"`
	Retained        int     `json:"retained"`
	OutliersRemoved int     `json:"outliers_removed"`
	Mean            float64 `json:"mean"`
	Median          float64 `json:"median"`
	StdDev          float64 `json:"stddev"`
	MAD             float64 `json:"mad"`
	P95             float64 `json:"p95"`
	P99             float64 `json:"p99"`
	CILow           float64 `json:"ci_low"`
	CIHigh          float64 `json:"ci_high"`
	Score           float64 `json:"score"`
}

// CIWidth is the width of the 95% confidence interval of the mean.
func (s Statistics) CIWidth() float64 {
	return s.CIHigh - s.CILow
}

// Engine reduces raw samples to Statistics. The zero value is not useful;
// build one with NewEngine.
type Engine struct {
	OutlierK float64
	Weights  Weights
}

func NewEngine(outlierK float64, w Weights) Engine {
	return Engine{OutlierK: outlierK, Weights: w}
}

// Reduce computes median and MAD over all samples, drops every sample whose
// distance from the median exceeds OutlierK*MAD, and computes the rest of
// the statistics on what remains. Work is done on a sorted copy, so the
// result depends only on the multiset of inputs and the engine settings.
func (e Engine) Reduce(samples []float64) (Statistics, error) {
	if len(samples) == 0 {
		return Statistics{}, ErrEmptySampleSet
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	median := percentile(sorted, 50)

	devs := make([]float64, len(sorted))
	for i, x := range sorted {
		devs[i] = math.Abs(x - median)
	}
	sort.Float64s(devs)
	mad := percentile(devs, 50)

	threshold := e.OutlierK * mad
	retained := make([]float64, 0, len(sorted))
	for _, x := range sorted {
		if math.Abs(x-median) <= threshold {
			retained = append(retained, x)
		}
	}
	if len(retained) == 0 {
		// Only reachable with OutlierK < 1.
		retained = sorted
	}

	mean, stddev := meanStdDev(retained)
	margin := z95 * stddev / math.Sqrt(float64(len(retained)))
	p95 := percentile(retained, 95)

	return Statistics{
		Count:           len(sorted),
		Retained:        len(retained),
		OutliersRemoved: len(sorted) - len(retained),
		Mean:            mean,
		Median:          median,
		StdDev:          stddev,
		MAD:             mad,
		P95:             p95,
		P99:             percentile(retained, 99),
		CILow:           mean - margin,
		CIHigh:          mean + margin,
		Score:           e.Weights.Score(mean, p95, mad),
	}, nil
}

// percentile interpolates linearly between the two closest ranks of an
// ascending slice. p is in [0, 100].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(xs []float64) (mean, stddev float64) {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	stddev = math.Sqrt(variance / float64(len(xs)))
	return
}
