// Package report renders search progress to a terminal.
//
// A Reporter is the only writer of its output stream for the whole run. In
// an interactive terminal it owns a reserved region of two lines, the
// progress line and the best-candidate line, and redraws both with a
// single Write per event. Anywhere else it appends one flat line per
// completed grid point.
package report

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/runningwild/timerbench/pkg/eta"
	"github.com/runningwild/timerbench/pkg/locale"
	"github.com/runningwild/timerbench/pkg/search"
)

var (
	// ErrFinalized is returned by Report and Finish once Finish has run.
	ErrFinalized = errors.New("reporter already finalized")
	// ErrRenderingUnavailable is logged when a region redraw fails and the
	// reporter falls back to flat output.
	ErrRenderingUnavailable = errors.New("terminal rendering unavailable")
)

type Reporter interface {
	Report(ev search.ProgressEvent) error
	Finish(s Summary) error
}

// New picks a Region reporter for interactive terminals and a Flat one
// otherwise.
func New(w io.Writer, c Capability, msgs locale.Messages, theme Theme) Reporter {
	if c.Interactive() {
		return NewRegion(w, c, msgs, theme)
	}
	return NewFlat(w, msgs, theme)
}

type phase int

const (
	idle phase = iota
	rendering
	finalized
)

func (p phase) String() string {
	switch p {
	case idle:
		return "idle"
	case rendering:
		return "rendering"
	}
	return "finalized"
}

// lines renders the two logical lines shared by both reporters.
type lines struct {
	msgs  locale.Messages
	theme Theme
}

// progress is line A: spinner, bar, counter, the preferred estimate, the
// current point and then the other estimate. The preferred estimate comes
// before anything of variable length so truncation never hides it.
func (l lines) progress(ev search.ProgressEvent) string {
	t := l.theme
	first, second := l.estimates(ev)
	var b strings.Builder
	b.WriteString(t.render(t.Spinner, t.frame(ev.Tick)))
	b.WriteByte(' ')
	b.WriteString(t.bar(ev.Done, ev.Total))
	b.WriteByte(' ')
	b.WriteString(t.render(t.Label, l.msgs.Progress(ev.Done, ev.Total)))
	b.WriteString(t.render(t.Muted, " | "))
	b.WriteString(first)
	b.WriteString(t.render(t.Muted, " | "))
	b.WriteString(l.current(ev))
	b.WriteString(t.render(t.Muted, " | "))
	b.WriteString(second)
	return b.String()
}

// estimates renders both ETAs, the one eta.Preferred picks first.
func (l lines) estimates(ev search.ProgressEvent) (first, second string) {
	t := l.theme
	initial := t.render(t.Muted, l.msgs.InitialEstimate(ev.Initial.Value))
	live := t.render(t.Value, l.msgs.LiveEstimate(ev.Live.Value, ev.Live.Known()))
	if eta.Preferred(ev.Initial, ev.Live).Source == eta.Observed {
		return live, initial
	}
	return initial, live
}

func (l lines) current(ev search.ProgressEvent) string {
	t := l.theme
	switch {
	case ev.Skipped != nil:
		return t.render(t.Warn, l.skipped(ev.Skipped))
	case ev.Kind == search.EventCompleted:
		return t.render(t.Value, l.msgs.Measured(ev.Setting, ev.Value))
	}
	return t.render(t.Value, l.msgs.Testing(ev.Setting))
}

func (l lines) skipped(s *search.SkippedCandidate) string {
	reason := "unknown error"
	if s.Err != nil {
		reason = s.Err.Error()
	}
	return l.msgs.Skipped(s.Setting, s.Attempts, reason)
}

// best is line B. It is never empty.
func (l lines) best(b *search.Best) string {
	if b == nil {
		return l.theme.render(l.theme.Muted, l.msgs.NoBest())
	}
	return l.theme.render(l.theme.Best, l.msgs.Best(b.Setting, b.Score, b.Mean, b.P95, b.MAD))
}

// fit cuts s to at most width-1 cells so the terminal never wraps it.
func fit(s string, width int) string {
	if width <= 1 {
		return s
	}
	return ansi.Truncate(s, width-1, "…")
}

func logFor(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
