package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/runningwild/timerbench/pkg/config"
	"github.com/runningwild/timerbench/pkg/eta"
	"github.com/runningwild/timerbench/pkg/locale"
	"github.com/runningwild/timerbench/pkg/metrics"
	"github.com/runningwild/timerbench/pkg/rank"
	"github.com/runningwild/timerbench/pkg/report"
	"github.com/runningwild/timerbench/pkg/results"
	"github.com/runningwild/timerbench/pkg/sampler"
	"github.com/runningwild/timerbench/pkg/search"
	"github.com/runningwild/timerbench/pkg/stats"
)

// errNothingMeasured ends a finished (not cancelled) run in which every grid
// point was skipped.
var errNothingMeasured = errors.New("no grid point could be measured")

func messages(cfg *config.Config, log *slog.Logger) locale.Messages {
	msgs, err := locale.Lookup(cfg.Settings.Language)
	if err != nil {
		log.Warn("falling back to English", "language", cfg.Settings.Language, "err", err)
	}
	return msgs
}

func buildSampler(cfg *config.Config, log *slog.Logger) (sampler.Sampler, error) {
	s := cfg.Sampler
	switch s.Kind {
	case "slack":
		slack := sampler.NewSlack(cfg.Settings.SamplesPerRun, s.Settle)
		if s.SleepTarget > 0 {
			slack.Target = s.SleepTarget
		}
		return slack, nil
	case "command":
		return &sampler.Command{
			Apply:       s.ApplyCommand,
			MeasureArgs: s.MeasureCommand,
			Samples:     cfg.Settings.SamplesPerRun,
			Settle:      s.Settle,
			Timeout:     s.Timeout,
			Logger:      log,
		}, nil
	}
	return nil, fmt.Errorf("unknown sampler kind %q", s.Kind)
}

// run performs one full search with smp and renders it to out. It returns
// the final search state; the error is errNothingMeasured or a failure to
// save results. Reporter failures are logged, never returned.
func run(ctx context.Context, cfg *config.Config, smp sampler.Sampler, out io.Writer, term report.Capability, log *slog.Logger) (search.State, error) {
	msgs := messages(cfg, log)
	hist := stats.NewHistogram()
	obs := observers{histogramObserver{h: hist}}

	if cfg.Output.MetricsAddr != "" {
		m := metrics.New()
		if _, err := m.Serve(ctx, cfg.Output.MetricsAddr, log); err != nil {
			log.Error("metrics disabled", "addr", cfg.Output.MetricsAddr, "err", err)
		} else {
			obs = append(obs, m)
		}
	}

	eng := stats.NewEngine(cfg.Settings.OutlierK, stats.Weights{
		Mean: cfg.Weights.Mean,
		P95:  cfg.Weights.P95,
		MAD:  cfg.Weights.MAD,
	})
	grid := cfg.Grid.Points()
	ctrl := search.New(smp, eng, search.Options{
		Grid:          grid,
		RunsPerPoint:  cfg.Settings.RunsPerPoint,
		SamplesPerRun: cfg.Settings.SamplesPerRun,
		Retry: sampler.Retry{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     sampler.BackoffFromName(cfg.Retry.Backoff, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
		},
		AssumedPerPoint: cfg.Settings.AssumedPerPoint,
		Logger:          log,
		Observer:        obs,
	})

	theme := report.PlainTheme()
	if term.Interactive() {
		theme = report.DefaultTheme()
	}
	rep := report.New(out, term, msgs, theme)

	start := time.Now()
	live := eta.Live(0, 0, len(grid))
	for ev := range ctrl.Run(ctx) {
		if ev.Kind == search.EventCompleted {
			live = ev.Live
		}
		if err := rep.Report(ev); err != nil {
			log.Error("progress report failed", "err", err)
		}
	}
	elapsed := time.Since(start)

	st := ctrl.State()
	if err := rep.Finish(report.NewSummary(st, ctrl.Initial(), live, elapsed, hist)); err != nil {
		log.Error("summary report failed", "err", err)
	}

	if err := saveResults(cfg, eng, st, elapsed); err != nil {
		return st, err
	}
	if len(st.Completed) == 0 && len(st.Skipped) > 0 && !st.Cancelled {
		return st, errNothingMeasured
	}
	return st, nil
}

func saveResults(cfg *config.Config, eng stats.Engine, st search.State, elapsed time.Duration) error {
	if cfg.Output.CSV == "" && cfg.Output.JSON == "" {
		return nil
	}
	var ranked []rank.Ranked
	if len(st.Completed) > 0 {
		entries, err := rank.Aggregate(eng, st.Completed)
		if err != nil {
			return fmt.Errorf("failed to aggregate candidates: %w", err)
		}
		ranked = rank.TOPSIS(entries)
	}

	now := time.Now()
	if cfg.Output.CSV != "" {
		if err := results.SaveCSV(cfg.Output.CSV, ranked, now); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	if cfg.Output.JSON != "" {
		if err := results.SaveJSON(cfg.Output.JSON, results.NewReport(cfg, st, ranked, elapsed, now)); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
