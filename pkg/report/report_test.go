package report

import (
	"bytes"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runningwild/timerbench/pkg/eta"
	"github.com/runningwild/timerbench/pkg/locale"
	"github.com/runningwild/timerbench/pkg/logger"
	"github.com/runningwild/timerbench/pkg/search"
	"github.com/runningwild/timerbench/pkg/stats"
)

// captureWriter records every Write call separately.
type captureWriter struct {
	writes   []string
	failures int
}

var errBrokenPipe = errors.New("broken pipe")

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.failures > 0 {
		c.failures--
		return 0, errBrokenPipe
	}
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

func (c *captureWriter) all() string { return strings.Join(c.writes, "") }

// screen is a minimal terminal: it understands text, newlines, ESC[nF and
// ESC[2K, and ignores every other CSI sequence.
type screen struct {
	rows [][]rune
	row  int
	col  int
}

func (s *screen) ensure() {
	for len(s.rows) <= s.row {
		s.rows = append(s.rows, nil)
	}
}

func (s *screen) apply(p string) {
	for i := 0; i < len(p); {
		if p[i] == 0x1b && i+1 < len(p) && p[i+1] == '[' {
			j := i + 2
			for j < len(p) && (p[j] < 0x40 || p[j] > 0x7e) {
				j++
			}
			params, final := p[i+2:j], p[j]
			switch final {
			case 'F':
				n, _ := strconv.Atoi(params)
				s.row = max(s.row-n, 0)
				s.col = 0
			case 'K':
				s.ensure()
				s.rows[s.row] = nil
			}
			i = j + 1
			continue
		}
		if p[i] == '\n' {
			s.row++
			s.col = 0
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(p[i:])
		s.ensure()
		line := s.rows[s.row]
		for len(line) < s.col {
			line = append(line, ' ')
		}
		if s.col < len(line) {
			line[s.col] = r
		} else {
			line = append(line, r)
		}
		s.rows[s.row] = line
		s.col++
		i += size
	}
}

// region returns the two lines just above the cursor.
func (s *screen) region() (a, b string) {
	if s.row < 2 || len(s.rows) < s.row {
		return "", ""
	}
	return string(s.rows[s.row-2]), string(s.rows[s.row-1])
}

func completedEvent(i, total int, best *search.Best) search.ProgressEvent {
	return search.ProgressEvent{
		Kind:    search.EventCompleted,
		Index:   i,
		Total:   total,
		Done:    i + 1,
		Setting: 0.5 + float64(i)*0.0001,
		Value:   0.03,
		Tick:    2*i + 1,
		Elapsed: time.Duration(i+1) * time.Second,
		Initial: eta.Initial(total, 6500*time.Millisecond),
		Live:    eta.Live(time.Duration(i+1)*time.Second, i+1, total),
		Best:    best,
	}
}

func newTestRegion(w *captureWriter, cols int) *Region {
	r := NewRegion(w, Fixed{IsInteractive: true, Cols: cols}, locale.English(), PlainTheme())
	r.Logger = logger.Discard()
	return r
}

func TestRegion_BestVisibleAfterEveryEvent(t *testing.T) {
	const n = 1000
	w := &captureWriter{}
	r := newTestRegion(w, 500)
	msgs := locale.English()
	scr := &screen{}

	var best *search.Best
	renders := 0
	for i := 0; i < n; i++ {
		if best == nil || i%7 == 0 {
			best = &search.Best{Index: i, Setting: 0.5 + float64(i)*0.0001, Score: 1 / float64(i+1), Mean: 0.03, P95: 0.04, MAD: 0.005}
		}
		require.NoError(t, r.Report(completedEvent(i, n, best)))
		require.Len(t, w.writes, i+1, "one Write per event")

		scr.apply(w.writes[i])
		lineA, lineB := scr.region()
		want := msgs.Best(best.Setting, best.Score, best.Mean, best.P95, best.MAD)
		require.Equal(t, want, lineB, "event %d", i+1)
		require.Contains(t, lineA, msgs.Progress(i+1, n))
		if lineB != "" {
			renders++
		}
	}
	assert.Equal(t, n, renders)
	// Nothing ever scrolled: the region stayed on the same two rows.
	assert.Len(t, scr.rows, 2)
	assert.Equal(t, 2, scr.row)
}

func TestRegion_WriteShape(t *testing.T) {
	w := &captureWriter{}
	r := newTestRegion(w, 200)
	best := &search.Best{Setting: 0.5, Score: 0.1}

	require.NoError(t, r.Report(completedEvent(0, 3, best)))
	require.NoError(t, r.Report(completedEvent(1, 3, best)))

	first, second := w.writes[0], w.writes[1]
	assert.True(t, strings.HasPrefix(first, escHideCursor))
	assert.NotContains(t, first, "\x1b[2F")
	assert.True(t, strings.HasPrefix(second, "\x1b[2F"))
	assert.Equal(t, 2, strings.Count(second, escClearLine))
	assert.Equal(t, 2, strings.Count(second, "\n"))
}

func TestRegion_NoBestYet(t *testing.T) {
	w := &captureWriter{}
	r := newTestRegion(w, 200)
	scr := &screen{}

	ev := completedEvent(0, 5, nil)
	ev.Kind = search.EventStarted
	require.NoError(t, r.Report(ev))
	scr.apply(w.writes[0])
	lineA, lineB := scr.region()
	assert.Equal(t, locale.English().NoBest(), lineB)
	assert.Contains(t, lineA, "testing 0.5000 ms")
	assert.Contains(t, lineA, "live ETA")
	assert.Contains(t, lineA, "initial est.")
}

func TestRegion_SkipGoesToScrollback(t *testing.T) {
	w := &captureWriter{}
	r := newTestRegion(w, 300)
	scr := &screen{}
	best := &search.Best{Setting: 0.5, Score: 0.1, Mean: 0.1, P95: 0.1, MAD: 0.1}

	require.NoError(t, r.Report(completedEvent(0, 3, best)))
	skipped := completedEvent(1, 3, best)
	skipped.Skipped = &search.SkippedCandidate{Index: 1, Setting: 0.5001, Attempts: 3, Err: errors.New("timer busy")}
	require.NoError(t, r.Report(skipped))
	require.NoError(t, r.Report(completedEvent(2, 3, best)))
	for _, p := range w.writes {
		scr.apply(p)
	}

	require.Len(t, scr.rows, 3)
	assert.Contains(t, string(scr.rows[0]), "skipped 0.5001 ms after 3 attempts, not measured: timer busy")
	_, lineB := scr.region()
	assert.Contains(t, lineB, "Current best: 0.5000 ms")
}

func TestRegion_TruncatesToWidth(t *testing.T) {
	w := &captureWriter{}
	r := newTestRegion(w, 40)
	scr := &screen{}
	best := &search.Best{Setting: 0.5, Score: 0.1, Mean: 0.1, P95: 0.1, MAD: 0.1}
	for i := 0; i < 20; i++ {
		require.NoError(t, r.Report(completedEvent(i, 20, best)))
	}
	for _, p := range w.writes {
		scr.apply(p)
	}
	for _, row := range scr.rows {
		assert.LessOrEqual(t, len(row), 39)
	}
	assert.Len(t, scr.rows, 2)
}

func TestRegion_LiveEstimateVisibleAtDefaultWidth(t *testing.T) {
	w := &captureWriter{}
	r := newTestRegion(w, defaultWidth)
	scr := &screen{}
	best := &search.Best{Setting: 0.5, Score: 0.1, Mean: 0.1, P95: 0.1, MAD: 0.1}

	started := completedEvent(0, 1000, nil)
	started.Kind = search.EventStarted
	started.Done = 0
	started.Live = eta.Live(0, 0, 1000)
	require.NoError(t, r.Report(started))
	scr.apply(w.writes[0])
	lineA, _ := scr.region()
	assert.Contains(t, lineA, "initial est. 1h48m20s", "static estimate leads until a point completes")

	require.NoError(t, r.Report(completedEvent(11, 1000, best)))
	scr.apply(w.writes[1])
	lineA, _ = scr.region()
	assert.LessOrEqual(t, utf8.RuneCountInString(lineA), defaultWidth-1)
	assert.Contains(t, lineA, "live ETA 16m28s")
	assert.Less(t, strings.Index(lineA, "live ETA"), strings.Index(lineA, "0.5011 ms"))
}

func TestLines_EstimateOrder(t *testing.T) {
	l := lines{msgs: locale.English(), theme: PlainTheme()}

	ev := completedEvent(4, 10, nil)
	first, second := l.estimates(ev)
	assert.Equal(t, "live ETA 5s", first)
	assert.Equal(t, "initial est. 1m05s (low confidence)", second)

	ev.Live = eta.Live(0, 0, 10)
	first, second = l.estimates(ev)
	assert.Equal(t, "initial est. 1m05s (low confidence)", first)
	assert.Equal(t, "live ETA unknown", second)
}

func TestRegion_FallsBackToFlat(t *testing.T) {
	w := &captureWriter{failures: 1}
	r := newTestRegion(w, 200)
	best := &search.Best{Setting: 0.5, Score: 0.1}

	assert.NoError(t, r.Report(completedEvent(0, 2, best)))
	assert.NoError(t, r.Report(completedEvent(1, 2, best)))
	require.NotNil(t, r.fallback)

	out := w.all()
	assert.NotContains(t, out, "\x1b[")
	assert.Equal(t, 2, strings.Count(out, "Current best: 0.5000 ms"))

	require.NoError(t, r.Finish(Summary{Total: 2, Measured: 2, Best: best}))
	assert.ErrorIs(t, r.Report(completedEvent(0, 2, best)), ErrFinalized)
}

func TestRegion_Finish(t *testing.T) {
	w := &captureWriter{}
	r := newTestRegion(w, 200)
	best := &search.Best{Setting: 0.5004, Score: 0.1}
	require.NoError(t, r.Report(completedEvent(0, 1, best)))
	require.NoError(t, r.Finish(Summary{Total: 1, Measured: 1, Best: best}))

	last := w.writes[len(w.writes)-1]
	assert.True(t, strings.HasPrefix(last, escShowCursor))
	assert.Contains(t, last, "RECOMMENDED VALUE: 0.5004 ms")
	assert.ErrorIs(t, r.Report(completedEvent(0, 1, best)), ErrFinalized)
	assert.ErrorIs(t, r.Finish(Summary{}), ErrFinalized)
}

func TestRegion_FinishWhileIdle(t *testing.T) {
	w := &captureWriter{}
	r := newTestRegion(w, 200)
	require.NoError(t, r.Finish(Summary{Total: 3}))
	require.Len(t, w.writes, 1)
	assert.NotContains(t, w.writes[0], "\x1b[")
	assert.Contains(t, w.writes[0], "no point could be measured")
}

func TestFlat(t *testing.T) {
	const n = 1000
	w := &captureWriter{}
	f := NewFlat(w, locale.English(), PlainTheme())
	best := &search.Best{Setting: 0.5, Score: 0.1, Mean: 0.1, P95: 0.1, MAD: 0.1}

	for i := 0; i < n; i++ {
		started := completedEvent(i, n, best)
		started.Kind = search.EventStarted
		require.NoError(t, f.Report(started))
		require.NoError(t, f.Report(completedEvent(i, n, best)))
	}
	require.Len(t, w.writes, n, "started events print nothing")
	for i, line := range w.writes {
		assert.True(t, strings.HasPrefix(line, "["+strconv.Itoa(i+1)+"/1000] "))
		assert.Contains(t, line, "Current best: 0.5000 ms")
		assert.Contains(t, line, "initial est.")
		assert.Contains(t, line, "live ETA")
		assert.Equal(t, 1, strings.Count(line, "\n"))
		assert.NotContains(t, line, "\x1b")
	}

	require.NoError(t, f.Finish(Summary{Total: n, Measured: n, Best: best}))
	assert.ErrorIs(t, f.Report(completedEvent(0, n, best)), ErrFinalized)
}

func TestNew_SelectsMode(t *testing.T) {
	var buf bytes.Buffer
	assert.IsType(t, &Region{}, New(&buf, Fixed{IsInteractive: true}, locale.English(), PlainTheme()))
	assert.IsType(t, &Flat{}, New(&buf, Fixed{}, locale.English(), PlainTheme()))
}

func TestDetectCapability_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	c := DetectCapability(f)
	assert.False(t, c.Interactive())
	assert.Equal(t, defaultWidth, c.Width())
	assert.Equal(t, defaultWidth, Fixed{}.Width())
}

func TestSummary(t *testing.T) {
	h := stats.NewHistogram()
	h.RecordAll([]float64{0.01, 0.02, 0.03, 0.5})
	h.RecordMs(-1)
	st := search.State{
		Total:     4,
		Completed: make([]search.Candidate, 2),
		Skipped: []search.SkippedCandidate{
			{Index: 2, Setting: 0.75, Attempts: 3, Err: errors.New("timer busy")},
		},
		Best:      &search.Best{Setting: 0.5004, Score: 0.1234},
		Cancelled: true,
	}
	s := NewSummary(st, eta.Initial(4, 6500*time.Millisecond), eta.Live(0, 0, 4), 90*time.Second, h)

	var b bytes.Buffer
	writeSummary(&b, lines{msgs: locale.English(), theme: PlainTheme()}, s)
	out := b.String()

	assert.Contains(t, out, "measured 2 of 4 points, skipped 1")
	assert.Contains(t, out, "RECOMMENDED VALUE: 0.5004 ms (score=0.1234)")
	assert.Contains(t, out, "SetTimerResolution.exe --resolution 5004 --no-console")
	assert.Contains(t, out, "took 1m30s (initial estimate 26s, last live estimate unknown)")
	assert.Contains(t, out, "all 4 samples: μ=0.1400 ms")
	assert.Contains(t, out, "(1 out of range)")
	assert.Contains(t, out, "1 points were not measured:")
	assert.Contains(t, out, "skipped 0.7500 ms after 3 attempts, not measured: timer busy")
	assert.Contains(t, out, "search cancelled")
}

func TestSummary_LastLiveEstimate(t *testing.T) {
	st := search.State{Total: 4, Completed: make([]search.Candidate, 2)}
	s := NewSummary(st, eta.Initial(4, 6500*time.Millisecond), eta.Live(20*time.Second, 2, 4), 40*time.Second, nil)

	var b bytes.Buffer
	writeSummary(&b, lines{msgs: locale.English(), theme: PlainTheme()}, s)
	assert.Contains(t, b.String(), "took 40s (initial estimate 26s, last live estimate 20s)")
	assert.NotContains(t, b.String(), "samples:")
}

func TestBar(t *testing.T) {
	th := PlainTheme()
	th.BarWidth = 10
	assert.Equal(t, "[----------]", th.bar(0, 4))
	assert.Equal(t, "[#####-----]", th.bar(2, 4))
	assert.Equal(t, "[##########]", th.bar(4, 4))
	assert.Equal(t, "[----------]", th.bar(0, 0))
	assert.Equal(t, "⠋", th.frame(0))
	assert.Equal(t, "⠙", th.frame(11))
}
