// Package rank merges repeated measurements of a setting and orders the
// results with TOPSIS over four cost criteria: p95, MAD, p99 and the width
// of the 95% confidence interval of the mean.
package rank

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/runningwild/timerbench/pkg/search"
	"github.com/runningwild/timerbench/pkg/stats"
)

// keyScale groups settings that agree to 1e-4 ms.
const keyScale = 10000

// Weights of p95, MAD, p99 and CI width, in that order.
var Weights = [4]float64{0.40, 0.30, 0.20, 0.10}

// Entry is one distinct setting with the samples of every candidate that
// measured it.
type Entry struct {
	Setting float64
	Samples []float64
	Stats   stats.Statistics
	Sources int
}

// Aggregate groups candidates by setting and reduces the merged samples
// again. The result is ordered by setting.
func Aggregate(eng stats.Engine, cands []search.Candidate) ([]Entry, error) {
	groups := make(map[int64]*Entry)
	var keys []int64
	for _, c := range cands {
		k := int64(math.Round(c.Setting * keyScale))
		e, ok := groups[k]
		if !ok {
			e = &Entry{Setting: float64(k) / keyScale}
			groups[k] = e
			keys = append(keys, k)
		}
		e.Samples = append(e.Samples, c.Samples...)
		e.Sources++
	}
	slices.Sort(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e := groups[k]
		st, err := eng.Reduce(e.Samples)
		if err != nil {
			return nil, fmt.Errorf("aggregating %.4fms: %w", e.Setting, err)
		}
		e.Stats = st
		out = append(out, *e)
	}
	return out, nil
}

type Ranked struct {
	Entry
	Closeness float64
	Rank      int
}

func criteria(s stats.Statistics) [4]float64 {
	return [4]float64{s.P95, s.MAD, s.P99, s.CIWidth()}
}

// TOPSIS ranks entries by closeness to the ideal solution, best first.
// Ranks start at 1; equal closeness keeps the input order.
func TOPSIS(entries []Entry) []Ranked {
	n := len(entries)
	if n == 0 {
		return nil
	}

	weighted := make([][4]float64, n)
	for j := 0; j < 4; j++ {
		var sumSq float64
		for _, e := range entries {
			v := criteria(e.Stats)[j]
			sumSq += v * v
		}
		norm := math.Sqrt(sumSq)
		for i, e := range entries {
			// All-zero columns carry no information; spread them evenly.
			nv := 1 / math.Sqrt(float64(n))
			if norm >= 1e-10 {
				nv = criteria(e.Stats)[j] / norm
			}
			weighted[i][j] = nv * Weights[j]
		}
	}

	// Every criterion is a cost: ideal is the column minimum.
	ideal := [4]float64{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64, math.MaxFloat64}
	anti := [4]float64{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	for _, row := range weighted {
		for j, v := range row {
			ideal[j] = math.Min(ideal[j], v)
			anti[j] = math.Max(anti[j], v)
		}
	}

	out := make([]Ranked, n)
	for i, row := range weighted {
		var dIdeal, dAnti float64
		for j, v := range row {
			dIdeal += (v - ideal[j]) * (v - ideal[j])
			dAnti += (v - anti[j]) * (v - anti[j])
		}
		dIdeal, dAnti = math.Sqrt(dIdeal), math.Sqrt(dAnti)

		cc := 0.5
		if den := dIdeal + dAnti; math.Abs(den) >= 1e-10 {
			cc = dAnti / den
		}
		if math.IsNaN(cc) || math.IsInf(cc, 0) {
			cc = 0.5
		}
		out[i] = Ranked{Entry: entries[i], Closeness: cc}
	}

	slices.SortStableFunc(out, func(a, b Ranked) int {
		return cmp.Compare(b.Closeness, a.Closeness)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
