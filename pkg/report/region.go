package report

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/runningwild/timerbench/pkg/locale"
	"github.com/runningwild/timerbench/pkg/search"
)

const (
	regionLines = 2

	escClearLine  = "\x1b[2K"
	escHideCursor = "\x1b[?25l"
	escShowCursor = "\x1b[?25h"
)

// escUp moves the cursor to column 1, n lines up.
func escUp(n int) string { return fmt.Sprintf("\x1b[%dF", n) }

// Region keeps the progress line and the best-candidate line at the bottom
// of the terminal. Every event rewrites both lines in one Write, so the best
// line can never be scrolled away or overwritten by a separate print.
//
// The cursor rests on the line below the region between events. Skipped
// points are printed above the region as permanent scrollback lines in the
// same Write.
type Region struct {
	w      io.Writer
	term   Capability
	lines  lines
	Logger *slog.Logger

	phase phase
	drawn bool
	buf   bytes.Buffer

	// fallback takes over after a failed write.
	fallback *Flat
}

func NewRegion(w io.Writer, c Capability, msgs locale.Messages, theme Theme) *Region {
	return &Region{w: w, term: c, lines: lines{msgs: msgs, theme: theme}}
}

func (r *Region) Report(ev search.ProgressEvent) error {
	if r.phase == finalized {
		return ErrFinalized
	}
	r.phase = rendering
	if r.fallback != nil {
		return r.fallback.Report(ev)
	}

	width := r.term.Width()
	r.buf.Reset()
	if r.drawn {
		r.buf.WriteString(escUp(regionLines))
	} else {
		r.buf.WriteString(escHideCursor)
	}
	if ev.Skipped != nil {
		r.writeLine(fit(r.lines.theme.render(r.lines.theme.Warn, r.lines.skipped(ev.Skipped)), width))
	}
	r.writeLine(fit(r.lines.progress(ev), width))
	r.writeLine(fit(r.lines.best(ev.Best), width))

	if _, err := r.w.Write(r.buf.Bytes()); err != nil {
		r.degrade(err)
		return r.fallback.Report(ev)
	}
	r.drawn = true
	return nil
}

func (r *Region) writeLine(s string) {
	r.buf.WriteString(escClearLine)
	r.buf.WriteString(s)
	r.buf.WriteByte('\n')
}

func (r *Region) degrade(err error) {
	logFor(r.Logger).Warn("falling back to flat progress output",
		"err", fmt.Errorf("%w: %w", ErrRenderingUnavailable, err))
	r.fallback = NewFlat(r.w, r.lines.msgs, PlainTheme())
	r.fallback.phase = rendering
}

// Finish leaves the last region state in the scrollback, restores the
// cursor and prints the summary below it.
func (r *Region) Finish(s Summary) error {
	if r.phase == finalized {
		return ErrFinalized
	}
	if r.fallback != nil {
		r.phase = finalized
		return r.fallback.Finish(s)
	}
	var b bytes.Buffer
	if r.drawn {
		b.WriteString(escShowCursor)
	}
	writeSummary(&b, r.lines, s)
	r.phase = finalized
	_, err := r.w.Write(b.Bytes())
	return err
}
