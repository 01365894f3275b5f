package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MaxGridPoints bounds the size of a grid, range or explicit.
const MaxGridPoints = 100000

// Config represents the top-level configuration for a benchmark run.
type Config struct {
	Grid     Grid            `yaml:"grid"`
	Settings Settings        `yaml:"settings"`
	Weights  Weights         `yaml:"weights"`
	Retry    Retry           `yaml:"retry"`
	Sampler  SamplerSettings `yaml:"sampler"`
	Output   Output          `yaml:"output"`
}

// Grid is the 1-D parameter space, in milliseconds. Either Values or the
// Start/End/Step range is used; Values wins when both are present.
type Grid struct {
	Start  float64   `yaml:"start,omitempty"`
	End    float64   `yaml:"end,omitempty"`
	Step   float64   `yaml:"step,omitempty"`
	Values []float64 `yaml:"values,omitempty"`
}

type Settings struct {
	RunsPerPoint  int     `yaml:"runs_per_point"`
	SamplesPerRun int     `yaml:"samples_per_run"`
	OutlierK      float64 `yaml:"outlier_k"` // multiple of MAD beyond which a sample is discarded

	// AssumedPerPoint feeds the static pre-run estimate only. It is never
	// derived from measurement.
	AssumedPerPoint time.Duration `yaml:"assumed_per_point"`
	Language        string        `yaml:"language"`
}

// Weights of the performance score. Lower score is better.
type Weights struct {
	Mean float64 `yaml:"mean"`
	P95  float64 `yaml:"p95"`
	MAD  float64 `yaml:"mad"`
}

type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     string        `yaml:"backoff"` // "constant", "linear", "exponential"
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type SamplerSettings struct {
	Kind        string        `yaml:"kind"` // "slack" or "command"
	SleepTarget time.Duration `yaml:"sleep_target"`
	Settle      time.Duration `yaml:"settle"`
	Timeout     time.Duration `yaml:"timeout"`

	// Command sampler only.
	ApplyCommand   []string `yaml:"apply_command,omitempty"`
	MeasureCommand []string `yaml:"measure_command,omitempty"`
}

type Output struct {
	CSV         string `yaml:"csv,omitempty"`
	JSON        string `yaml:"json,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns a configuration that scans 0.5000..0.5100ms in 0.0005ms
// steps with three runs of fifty samples per point.
func Default() *Config {
	cfg := &Config{
		Grid: Grid{Start: 0.5, End: 0.51, Step: 0.0005},
	}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and fills unset fields with defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Marshal renders the effective configuration, used by --write-config.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) applyDefaults() {
	if c.Settings.RunsPerPoint == 0 {
		c.Settings.RunsPerPoint = 3
	}
	if c.Settings.SamplesPerRun == 0 {
		c.Settings.SamplesPerRun = 50
	}
	if c.Settings.OutlierK == 0 {
		c.Settings.OutlierK = 3.5
	}
	if c.Settings.AssumedPerPoint == 0 {
		c.Settings.AssumedPerPoint = 6500 * time.Millisecond
	}
	if c.Settings.Language == "" {
		c.Settings.Language = "en"
	}
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Mean: 0.10, P95: 0.60, MAD: 0.30}
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = "exponential"
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 200 * time.Millisecond
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 5 * time.Second
	}
	if c.Sampler.Kind == "" {
		c.Sampler.Kind = "slack"
	}
	if c.Sampler.SleepTarget == 0 {
		c.Sampler.SleepTarget = time.Millisecond
	}
	if c.Sampler.Settle == 0 {
		c.Sampler.Settle = 300 * time.Millisecond
	}
	if c.Sampler.Timeout == 0 {
		c.Sampler.Timeout = 30 * time.Second
	}
}

// Validate reports the first problem found, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if len(c.Grid.Values) == 0 {
		if !finite(c.Grid.Start, c.Grid.End, c.Grid.Step) {
			return fmt.Errorf("%w: grid start, end and step must be finite numbers", ErrInvalid)
		}
		if c.Grid.Step <= 0 {
			return fmt.Errorf("%w: grid step must be positive", ErrInvalid)
		}
		if c.Grid.End < c.Grid.Start {
			return fmt.Errorf("%w: grid end %.4f is below start %.4f", ErrInvalid, c.Grid.End, c.Grid.Start)
		}
		if c.Grid.Start < 0 {
			return fmt.Errorf("%w: grid start must not be negative", ErrInvalid)
		}
	}
	for _, v := range c.Grid.Values {
		if v < 0 || !finite(v) {
			return fmt.Errorf("%w: grid value %v is not a valid setting", ErrInvalid, v)
		}
	}
	if n := c.Grid.size(); n > MaxGridPoints {
		return fmt.Errorf("%w: grid has %.0f points, more than %d", ErrInvalid, n, MaxGridPoints)
	}
	if c.Settings.RunsPerPoint < 1 {
		return fmt.Errorf("%w: runs_per_point must be at least 1", ErrInvalid)
	}
	if c.Settings.SamplesPerRun < 1 {
		return fmt.Errorf("%w: samples_per_run must be at least 1", ErrInvalid)
	}
	if !finite(c.Settings.OutlierK) || c.Settings.OutlierK < 1 {
		return fmt.Errorf("%w: outlier_k must be at least 1", ErrInvalid)
	}
	w := c.Weights
	if !finite(w.Mean, w.P95, w.MAD) {
		return fmt.Errorf("%w: score weights must be finite numbers", ErrInvalid)
	}
	if w.Mean < 0 || w.P95 < 0 || w.MAD < 0 {
		return fmt.Errorf("%w: score weights must not be negative", ErrInvalid)
	}
	if w.Mean+w.P95+w.MAD == 0 {
		return fmt.Errorf("%w: at least one score weight must be positive", ErrInvalid)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry max_attempts must be at least 1", ErrInvalid)
	}
	switch c.Retry.Backoff {
	case "constant", "linear", "exponential":
	default:
		return fmt.Errorf("%w: unknown backoff %q", ErrInvalid, c.Retry.Backoff)
	}
	switch c.Sampler.Kind {
	case "slack":
	case "command":
		if len(c.Sampler.ApplyCommand) == 0 || len(c.Sampler.MeasureCommand) == 0 {
			return fmt.Errorf("%w: command sampler needs apply_command and measure_command", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown sampler kind %q", ErrInvalid, c.Sampler.Kind)
	}
	return nil
}

// Points expands the grid into the ordered list of settings to test.
// Range points are computed by index, not by repeated addition, so a long
// range does not drift past its end value. A grid larger than MaxGridPoints
// yields nil.
func (g Grid) Points() []float64 {
	size := g.size()
	if size < 1 || size > MaxGridPoints || math.IsNaN(size) {
		return nil
	}
	if len(g.Values) > 0 {
		out := make([]float64, len(g.Values))
		copy(out, g.Values)
		return out
	}
	out := make([]float64, int(size))
	for i := range out {
		out[i] = roundSetting(g.Start + float64(i)*g.Step)
	}
	return out
}

// size is the number of points Points would return, as a float so that a
// huge range does not overflow. It is 0 for an unusable range.
func (g Grid) size() float64 {
	if len(g.Values) > 0 {
		return float64(len(g.Values))
	}
	if g.Step <= 0 || g.End < g.Start {
		return 0
	}
	return math.Floor((g.End-g.Start)/g.Step+1e-6) + 1
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// roundSetting trims float noise below a nanosecond.
func roundSetting(ms float64) float64 {
	return math.Round(ms*1e6) / 1e6
}
