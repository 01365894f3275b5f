package locale

import (
	"fmt"
	"time"
)

type english struct{}

func English() Messages { return english{} }

func (english) Tag() string { return "en" }

func (english) Progress(done, total int) string { return fmt.Sprintf("%d/%d", done, total) }

func (english) Testing(setting float64) string {
	return fmt.Sprintf("testing %.4f ms", setting)
}

func (english) Measured(setting, mean float64) string {
	return fmt.Sprintf("%.4f ms: μ=%.4f ms", setting, mean)
}

func (e english) InitialEstimate(d time.Duration) string {
	return "initial est. " + e.duration(d) + " (low confidence)"
}

func (e english) LiveEstimate(d time.Duration, known bool) string {
	if !known {
		return "live ETA unknown"
	}
	return "live ETA " + e.duration(d)
}

func (english) Best(setting, score, mean, p95, mad float64) string {
	return fmt.Sprintf("Current best: %.4f ms (score=%.4f, μ=%.4f, p95=%.4f, MAD=%.4f)", setting, score, mean, p95, mad)
}

func (english) NoBest() string { return "Current best: no candidate measured yet" }

func (english) Skipped(setting float64, attempts int, reason string) string {
	return fmt.Sprintf("skipped %.4f ms after %d attempts, not measured: %s", setting, attempts, reason)
}

func (english) SummaryTitle() string { return "Search summary" }

func (english) SummaryCounts(measured, skipped, total int) string {
	return fmt.Sprintf("measured %d of %d points, skipped %d", measured, total, skipped)
}

func (english) SummaryBest(setting, score float64) string {
	return fmt.Sprintf("RECOMMENDED VALUE: %.4f ms (score=%.4f)", setting, score)
}

func (english) SummaryNoBest() string { return "no point could be measured" }

func (e english) SummaryTiming(elapsed, initial, live time.Duration, liveKnown bool) string {
	last := "unknown"
	if liveKnown {
		last = e.duration(live)
	}
	return fmt.Sprintf("took %s (initial estimate %s, last live estimate %s)",
		e.duration(elapsed), e.duration(initial), last)
}

func (english) SummaryDistribution(samples, dropped int64, mean, p50, p99, maxMs float64) string {
	s := fmt.Sprintf("all %d samples: μ=%.4f ms, p50=%.4f ms, p99=%.4f ms, max=%.4f ms", samples, mean, p50, p99, maxMs)
	if dropped > 0 {
		s += fmt.Sprintf(" (%d out of range)", dropped)
	}
	return s
}

func (english) SummarySkippedHeader(n int) string {
	return fmt.Sprintf("%d points were not measured:", n)
}

func (english) SummaryCancelled() string { return "search cancelled, results are partial" }

func (english) ApplyHint(setting float64) string {
	return fmt.Sprintf("SetTimerResolution.exe --resolution %d --no-console", resolution(setting))
}

func (english) duration(d time.Duration) string {
	h, m, s := durationParts(d)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
