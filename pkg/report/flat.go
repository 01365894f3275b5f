package report

import (
	"bytes"
	"io"
	"strings"

	"github.com/runningwild/timerbench/pkg/locale"
	"github.com/runningwild/timerbench/pkg/search"
)

// Flat appends one line per completed grid point and never moves the
// cursor. Started events produce no output.
type Flat struct {
	w     io.Writer
	lines lines
	phase phase
}

func NewFlat(w io.Writer, msgs locale.Messages, theme Theme) *Flat {
	return &Flat{w: w, lines: lines{msgs: msgs, theme: theme}}
}

func (f *Flat) Report(ev search.ProgressEvent) error {
	if f.phase == finalized {
		return ErrFinalized
	}
	f.phase = rendering
	if ev.Kind != search.EventCompleted {
		return nil
	}

	first, second := f.lines.estimates(ev)
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(f.lines.msgs.Progress(ev.Done, ev.Total))
	b.WriteString("] ")
	b.WriteString(f.lines.current(ev))
	b.WriteString(" | ")
	b.WriteString(f.lines.best(ev.Best))
	b.WriteString(" | ")
	b.WriteString(first)
	b.WriteString(" | ")
	b.WriteString(second)
	b.WriteByte('\n')
	_, err := io.WriteString(f.w, b.String())
	return err
}

func (f *Flat) Finish(s Summary) error {
	if f.phase == finalized {
		return ErrFinalized
	}
	f.phase = finalized
	var b bytes.Buffer
	writeSummary(&b, f.lines, s)
	_, err := f.w.Write(b.Bytes())
	return err
}
