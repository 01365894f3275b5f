package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/runningwild/timerbench/pkg/config"
)

// Flags holds every CLI flag. Flags that were set explicitly override the
// values of --config; the rest keep the file's (or the default) values.
type Flags struct {
	// Config File (optional)
	ConfigFile  string
	WriteConfig string

	// Grid
	Start  float64
	End    float64
	Step   float64
	Values []float64

	// Measurement
	Runs     int
	Samples  int
	OutlierK float64
	Assumed  time.Duration
	Language string

	WeightMean float64
	WeightP95  float64
	WeightMAD  float64

	Attempts int
	Backoff  string

	Sampler    string
	Settle     time.Duration
	ApplyCmd   string
	MeasureCmd string

	// Reporting
	CSV         string
	JSON        string
	MetricsAddr string
	Plain       bool
	LogLevel    string
	LogFormat   string
}

func (f *Flags) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigFile, "config", "", "Path to YAML configuration file")
	fs.StringVar(&f.WriteConfig, "write-config", "", "Save the effective configuration to this YAML file")

	fs.Float64Var(&f.Start, "start", 0.5, "First timer setting of the grid, in ms")
	fs.Float64Var(&f.End, "end", 0.51, "Last timer setting of the grid, in ms")
	fs.Float64Var(&f.Step, "step", 0.0005, "Grid step, in ms")
	fs.Float64SliceVar(&f.Values, "values", nil, "Explicit grid settings in ms (overrides start/end/step)")

	fs.IntVar(&f.Runs, "runs", 3, "Sampler runs per grid point")
	fs.IntVar(&f.Samples, "samples", 50, "Samples per run")
	fs.Float64Var(&f.OutlierK, "outlier-k", 3.5, "Discard samples further than k*MAD from the median")
	fs.DurationVar(&f.Assumed, "assumed-per-point", 6500*time.Millisecond, "Assumed time per point for the initial estimate")
	fs.StringVar(&f.Language, "lang", "en", "Display language: "+strings.Join([]string{"en", "ru"}, ", "))

	fs.Float64Var(&f.WeightMean, "weight-mean", 0.10, "Score weight of the mean")
	fs.Float64Var(&f.WeightP95, "weight-p95", 0.60, "Score weight of the 95th percentile")
	fs.Float64Var(&f.WeightMAD, "weight-mad", 0.30, "Score weight of the MAD")

	fs.IntVar(&f.Attempts, "attempts", 3, "Measurement attempts per grid point before it is skipped")
	fs.StringVar(&f.Backoff, "backoff", "exponential", "Delay between attempts: constant, linear or exponential")

	fs.StringVar(&f.Sampler, "sampler", "slack", "Sampler: 'slack' (Linux timer slack) or 'command'")
	fs.DurationVar(&f.Settle, "settle", 300*time.Millisecond, "Pause after applying a setting, before measuring")
	fs.StringVar(&f.ApplyCmd, "apply-cmd", "", "Command that holds a timer resolution while it runs (command sampler)")
	fs.StringVar(&f.MeasureCmd, "measure-cmd", "", "Command that measures sleep precision (command sampler)")

	fs.StringVar(&f.CSV, "csv", "", "Write the ranked results table to this file")
	fs.StringVar(&f.JSON, "report", "", "Write a JSON report to this file")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	fs.BoolVar(&f.Plain, "plain", false, "Never redraw; print one line per grid point")
	fs.StringVar(&f.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogFormat, "log-format", "text", "Log format: text or json")
}

// LoadConfig builds the effective configuration and validates it.
func (f *Flags) LoadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		var err error
		cfg, err = config.Load(f.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("start", func() { cfg.Grid.Start = f.Start; cfg.Grid.Values = nil })
	set("end", func() { cfg.Grid.End = f.End; cfg.Grid.Values = nil })
	set("step", func() { cfg.Grid.Step = f.Step; cfg.Grid.Values = nil })
	set("values", func() { cfg.Grid.Values = f.Values })
	set("runs", func() { cfg.Settings.RunsPerPoint = f.Runs })
	set("samples", func() { cfg.Settings.SamplesPerRun = f.Samples })
	set("outlier-k", func() { cfg.Settings.OutlierK = f.OutlierK })
	set("assumed-per-point", func() { cfg.Settings.AssumedPerPoint = f.Assumed })
	set("lang", func() { cfg.Settings.Language = f.Language })
	set("weight-mean", func() { cfg.Weights.Mean = f.WeightMean })
	set("weight-p95", func() { cfg.Weights.P95 = f.WeightP95 })
	set("weight-mad", func() { cfg.Weights.MAD = f.WeightMAD })
	set("attempts", func() { cfg.Retry.MaxAttempts = f.Attempts })
	set("backoff", func() { cfg.Retry.Backoff = f.Backoff })
	set("sampler", func() { cfg.Sampler.Kind = f.Sampler })
	set("settle", func() { cfg.Sampler.Settle = f.Settle })
	set("apply-cmd", func() { cfg.Sampler.ApplyCommand = strings.Fields(f.ApplyCmd) })
	set("measure-cmd", func() { cfg.Sampler.MeasureCommand = strings.Fields(f.MeasureCmd) })
	set("csv", func() { cfg.Output.CSV = f.CSV })
	set("report", func() { cfg.Output.JSON = f.JSON })
	set("metrics-addr", func() { cfg.Output.MetricsAddr = f.MetricsAddr })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *Flags) MaybeWriteConfig(cfg *config.Config) error {
	if f.WriteConfig == "" {
		return nil
	}
	return writeConfig(f.WriteConfig, cfg)
}

func writeConfig(path string, cfg *config.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
