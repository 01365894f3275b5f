// Package locale holds the display strings of timerbench.
//
// Every Messages method is a pure function of its arguments: callers pass
// already-computed numbers and get text back. Nothing here reads state,
// writes output or knows about terminals.
package locale

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownLanguage = errors.New("unknown language")

type Messages interface {
	// Tag is the language tag of the catalog, e.g. "en".
	Tag() string

	// Progress is the "done/total" counter of the progress line.
	Progress(done, total int) string
	// Testing labels the point currently being measured.
	Testing(setting float64) string
	// Measured reports the mean of the point just measured.
	Measured(setting, mean float64) string
	InitialEstimate(d time.Duration) string
	// LiveEstimate is called with known == false until a point completes.
	LiveEstimate(d time.Duration, known bool) string

	Best(setting, score, mean, p95, mad float64) string
	NoBest() string
	Skipped(setting float64, attempts int, reason string) string

	SummaryTitle() string
	SummaryCounts(measured, skipped, total int) string
	SummaryBest(setting, score float64) string
	SummaryNoBest() string
	// SummaryTiming is called with liveKnown == false when no point ever
	// completed.
	SummaryTiming(elapsed, initial, live time.Duration, liveKnown bool) string
	// SummaryDistribution describes every sample of the run; dropped counts
	// samples outside the histogram's range.
	SummaryDistribution(samples, dropped int64, mean, p50, p99, maxMs float64) string
	SummarySkippedHeader(n int) string
	SummaryCancelled() string
	// ApplyHint is the command that applies setting permanently.
	ApplyHint(setting float64) string
}

// Lookup returns the catalog for a tag such as "ru", "ru-RU" or "en_US".
// An unknown tag yields English together with ErrUnknownLanguage.
func Lookup(tag string) (Messages, error) {
	base := strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(base, "-_."); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "", "en", "c", "posix":
		return English(), nil
	case "ru":
		return Russian(), nil
	}
	return English(), fmt.Errorf("%w: %q", ErrUnknownLanguage, tag)
}

// Tags lists the supported catalogs.
func Tags() []string { return []string{"en", "ru"} }

// resolution converts milliseconds to the 100ns units used by
// SetTimerResolution-style tools.
func resolution(setting float64) int {
	return int(setting*10000 + 0.5)
}

// durationParts rounds d to whole seconds and splits it.
func durationParts(d time.Duration) (h, m, s int) {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return total / 3600, total % 3600 / 60, total % 60
}
