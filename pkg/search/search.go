// Package search scans a 1-D grid of timer settings, one point after
// another, and reports every step as a ProgressEvent.
//
// The controller is the only owner of the search state. Points are never
// measured concurrently, and a point that has started measuring is always
// finished, retries included: cancellation is honoured only between points.
package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runningwild/timerbench/pkg/eta"
	"github.com/runningwild/timerbench/pkg/sampler"
	"github.com/runningwild/timerbench/pkg/stats"
)

// Candidate is a measured grid point. It is not modified after it has been
// appended to the state.
type Candidate struct {
	Index    int
	Setting  float64
	Samples  []float64
	Stats    stats.Statistics
	Attempts int
}

// SkippedCandidate marks a grid point whose retry budget ran out. It carries
// no statistics; "not measured" must never read as a score.
type SkippedCandidate struct {
	Index    int
	Setting  float64
	Attempts int
	Err      error
}

// Best is a snapshot of the lowest-scoring candidate so far.
type Best struct {
	Index   int     `json:"index"`
	Setting float64 `json:"setting_ms"`
	Score   float64 `json:"score"`
	Mean    float64 `json:"mean"`
	P95     float64 `json:"p95"`
	MAD     float64 `json:"mad"`
}

func bestOf(c Candidate) Best {
	return Best{
		Index:   c.Index,
		Setting: c.Setting,
		Score:   c.Stats.Score,
		Mean:    c.Stats.Mean,
		P95:     c.Stats.P95,
		MAD:     c.Stats.MAD,
	}
}

type State struct {
	Total     int
	Current   int
	Started   time.Time
	Completed []Candidate
	Skipped   []SkippedCandidate
	Best      *Best
	Cancelled bool
}

// Done is the number of grid points that have been measured or skipped.
func (s State) Done() int { return len(s.Completed) + len(s.Skipped) }

type EventKind int

const (
	// EventStarted is emitted before a grid point is measured.
	EventStarted EventKind = iota
	// EventCompleted is emitted once per grid point, measured or skipped.
	EventCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ProgressEvent is an immutable snapshot handed to the reporter. Best is nil
// only while nothing has been measured; every EventCompleted after the first
// measured candidate carries it.
type ProgressEvent struct {
	Kind    EventKind
	Index   int
	Total   int
	Done    int
	Setting float64
	// Value is the mean of the point just measured. It is zero for
	// EventStarted and for skipped points.
	Value   float64
	Tick    int
	Elapsed time.Duration
	Initial eta.Estimate
	Live    eta.Estimate
	Best    *Best
	Skipped *SkippedCandidate
}

// Measured reports whether the event completes a point that was measured.
func (e ProgressEvent) Measured() bool {
	return e.Kind == EventCompleted && e.Skipped == nil
}

// Observer is told about every finished grid point. Calls are made from the
// goroutine ranging over Run, before the matching event is yielded.
type Observer interface {
	OnCandidate(c Candidate, took time.Duration, ev ProgressEvent)
	OnSkip(s SkippedCandidate, ev ProgressEvent)
}

type Options struct {
	Grid            []float64
	RunsPerPoint    int
	SamplesPerRun   int
	Retry           sampler.Retry
	AssumedPerPoint time.Duration
	Clock           func() time.Time
	Logger          *slog.Logger
	Observer        Observer
}

type Controller struct {
	sampler sampler.Sampler
	engine  stats.Engine
	opts    Options
	log     *slog.Logger
	now     func() time.Time
	initial eta.Estimate

	ran  atomic.Bool
	tick int

	mu    sync.Mutex
	state State
}

func New(s sampler.Sampler, eng stats.Engine, opts Options) *Controller {
	if opts.RunsPerPoint < 1 {
		opts.RunsPerPoint = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		sampler: s,
		engine:  eng,
		opts:    opts,
		log:     log,
		now:     opts.Clock,
		initial: eta.Initial(len(opts.Grid), opts.AssumedPerPoint),
		state:   State{Total: len(opts.Grid)},
	}
}

// Initial is the static estimate for the whole grid.
func (c *Controller) Initial() eta.Estimate { return c.initial }

// State returns a deep copy of the current search state, samples included.
// It is safe to call from any goroutine.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Completed = slices.Clone(c.state.Completed)
	for i := range s.Completed {
		s.Completed[i].Samples = slices.Clone(s.Completed[i].Samples)
	}
	s.Skipped = slices.Clone(c.state.Skipped)
	if c.state.Best != nil {
		b := *c.state.Best
		s.Best = &b
	}
	return s
}

// Run returns the lazy event sequence of the search. The sequence can be
// consumed once; ranging over it a second time yields nothing. Stopping the
// range early or cancelling ctx ends the search at the next point boundary
// and marks the state cancelled.
func (c *Controller) Run(ctx context.Context) iter.Seq[ProgressEvent] {
	return func(yield func(ProgressEvent) bool) {
		if !c.ran.CompareAndSwap(false, true) {
			c.log.Warn("search already ran, ignoring restart")
			return
		}

		c.mu.Lock()
		c.state.Started = c.now()
		c.mu.Unlock()
		c.log.Info("search started",
			"points", len(c.opts.Grid),
			"runs_per_point", c.opts.RunsPerPoint,
			"samples_per_run", c.opts.SamplesPerRun,
			"initial_eta", c.initial.Value)

		last := len(c.opts.Grid) - 1
		for i, setting := range c.opts.Grid {
			if ctx.Err() != nil {
				c.cancel(i, ctx.Err())
				return
			}

			c.mu.Lock()
			c.state.Current = i
			c.mu.Unlock()
			if !yield(c.event(EventStarted, i, setting)) {
				c.cancel(i, nil)
				return
			}

			ev := c.measurePoint(ctx, i, setting)
			if !yield(ev) {
				if i < last {
					c.cancel(i+1, nil)
				}
				return
			}
		}

		st := c.State()
		attrs := []any{"measured", len(st.Completed), "skipped", len(st.Skipped), "elapsed", c.now().Sub(st.Started)}
		if st.Best != nil {
			attrs = append(attrs, "best_setting_ms", st.Best.Setting, "best_score", st.Best.Score)
		}
		c.log.Info("search finished", attrs...)
	}
}

func (c *Controller) cancel(at int, cause error) {
	c.mu.Lock()
	c.state.Cancelled = true
	c.mu.Unlock()
	c.log.Info("search cancelled", "remaining_points", len(c.opts.Grid)-at, "cause", cause)
}

// measurePoint measures one grid point, retrying failed attempts, and
// always ends with the point either measured or skipped. Cancelling ctx does
// not shorten it.
func (c *Controller) measurePoint(ctx context.Context, i int, setting float64) ProgressEvent {
	attempts := c.opts.Retry.Attempts()
	mctx := context.WithoutCancel(ctx)

	var lastErr error
	for a := 0; a < attempts; a++ {
		if a > 0 {
			pause(c.opts.Retry.Delay(a - 1))
		}

		start := c.now()
		samples, err := c.collect(mctx, setting)
		if err == nil {
			var st stats.Statistics
			st, err = c.engine.Reduce(samples)
			if err == nil {
				return c.complete(Candidate{
					Index:    i,
					Setting:  setting,
					Samples:  samples,
					Stats:    st,
					Attempts: a + 1,
				}, c.now().Sub(start))
			}
		}
		if errors.Is(err, stats.ErrEmptySampleSet) {
			c.log.Error("sampler broke its contract", "setting_ms", setting, "attempt", a+1, "err", err)
		} else {
			c.log.Warn("measurement failed", "setting_ms", setting, "attempt", a+1, "of", attempts, "err", err)
		}
		lastErr = err
	}
	return c.skip(SkippedCandidate{Index: i, Setting: setting, Attempts: attempts, Err: lastErr})
}

// collect runs the sampler RunsPerPoint times and concatenates the samples.
// Any failing run fails the whole attempt.
func (c *Controller) collect(ctx context.Context, setting float64) ([]float64, error) {
	runs := c.opts.RunsPerPoint
	all := make([]float64, 0, runs*max(c.opts.SamplesPerRun, 1))
	for r := 0; r < runs; r++ {
		s, err := c.sampler.Measure(ctx, setting)
		if err != nil {
			return nil, fmt.Errorf("run %d of %d: %w", r+1, runs, err)
		}
		if len(s) == 0 {
			return nil, fmt.Errorf("run %d of %d: %w", r+1, runs, stats.ErrEmptySampleSet)
		}
		all = append(all, s...)
	}
	return all, nil
}

func (c *Controller) complete(cand Candidate, took time.Duration) ProgressEvent {
	c.mu.Lock()
	c.state.Completed = append(c.state.Completed, cand)
	if c.state.Best == nil || cand.Stats.Score < c.state.Best.Score {
		b := bestOf(cand)
		c.state.Best = &b
		c.log.Debug("new best", "setting_ms", cand.Setting, "score", cand.Stats.Score)
	}
	c.mu.Unlock()

	ev := c.event(EventCompleted, cand.Index, cand.Setting)
	ev.Value = cand.Stats.Mean
	c.log.Debug("candidate measured",
		"setting_ms", cand.Setting,
		"mean_ms", cand.Stats.Mean,
		"p95_ms", cand.Stats.P95,
		"mad_ms", cand.Stats.MAD,
		"outliers", cand.Stats.OutliersRemoved,
		"score", cand.Stats.Score,
		"took", took)
	if c.opts.Observer != nil {
		c.opts.Observer.OnCandidate(cand, took, ev)
	}
	return ev
}

func (c *Controller) skip(s SkippedCandidate) ProgressEvent {
	c.mu.Lock()
	c.state.Skipped = append(c.state.Skipped, s)
	c.mu.Unlock()

	ev := c.event(EventCompleted, s.Index, s.Setting)
	ev.Skipped = &s
	c.log.Warn("skipping grid point", "setting_ms", s.Setting, "attempts", s.Attempts, "err", s.Err)
	if c.opts.Observer != nil {
		c.opts.Observer.OnSkip(s, ev)
	}
	return ev
}

// event snapshots the state into a new event and advances the tick.
func (c *Controller) event(kind EventKind, i int, setting float64) ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.now().Sub(c.state.Started)
	done := c.state.Done()
	ev := ProgressEvent{
		Kind:    kind,
		Index:   i,
		Total:   c.state.Total,
		Done:    done,
		Setting: setting,
		Tick:    c.tick,
		Elapsed: elapsed,
		Initial: c.initial,
		Live:    eta.Live(elapsed, done, c.state.Total),
	}
	if c.state.Best != nil {
		b := *c.state.Best
		ev.Best = &b
	}
	c.tick++
	return ev
}

func pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
