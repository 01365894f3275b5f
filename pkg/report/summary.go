package report

import (
	"bytes"
	"time"

	"github.com/runningwild/timerbench/pkg/eta"
	"github.com/runningwild/timerbench/pkg/search"
	"github.com/runningwild/timerbench/pkg/stats"
)

// Summary is printed to normal scrollback once the search is over.
type Summary struct {
	Total     int
	Measured  int
	Skipped   []search.SkippedCandidate
	Best      *search.Best
	Elapsed   time.Duration
	Initial   eta.Estimate
	Live      eta.Estimate
	Histogram *stats.Histogram
	Cancelled bool
}

// NewSummary collects a summary from the final search state. live is the
// last live estimate that was shown; h may be nil.
func NewSummary(st search.State, initial, live eta.Estimate, elapsed time.Duration, h *stats.Histogram) Summary {
	return Summary{
		Total:     st.Total,
		Measured:  len(st.Completed),
		Skipped:   st.Skipped,
		Best:      st.Best,
		Elapsed:   elapsed,
		Initial:   initial,
		Live:      live,
		Histogram: h,
		Cancelled: st.Cancelled,
	}
}

func writeSummary(b *bytes.Buffer, l lines, s Summary) {
	t, m := l.theme, l.msgs
	line := func(text string) {
		b.WriteString(text)
		b.WriteByte('\n')
	}

	line("")
	line(t.render(t.Title, m.SummaryTitle()))
	line(m.SummaryCounts(s.Measured, len(s.Skipped), s.Total))
	if s.Best != nil {
		line(t.render(t.Best, m.SummaryBest(s.Best.Setting, s.Best.Score)))
		line("  " + m.ApplyHint(s.Best.Setting))
	} else {
		line(t.render(t.Warn, m.SummaryNoBest()))
	}

	line(t.render(t.Muted, m.SummaryTiming(s.Elapsed, s.Initial.Value, s.Live.Value, s.Live.Known())))

	if h := s.Histogram; h != nil && h.Count() > 0 {
		line(t.render(t.Muted, m.SummaryDistribution(h.Count(), h.Dropped(), h.MeanMs(), h.QuantileMs(50), h.QuantileMs(99), h.MaxMs())))
	}

	if len(s.Skipped) > 0 {
		line(t.render(t.Warn, m.SummarySkippedHeader(len(s.Skipped))))
		for i := range s.Skipped {
			line("  " + l.skipped(&s.Skipped[i]))
		}
	}
	if s.Cancelled {
		line(t.render(t.Warn, m.SummaryCancelled()))
	}
}
