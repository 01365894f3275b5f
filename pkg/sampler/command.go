package sampler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// Reported resolution may differ from the requested one by this much
	// before a warning is logged...
	resolutionWarnMs = 0.05
	// ...and by this much before the run is rejected.
	resolutionFailMs = 0.1

	// How long the apply tool must stay alive before measuring starts.
	applyAliveCheck = 50 * time.Millisecond
)

// Command drives two external tools: Apply holds the requested timer
// resolution for as long as it runs, MeasureArgs sleeps repeatedly and
// reports what it observed. Arguments may contain the placeholders {setting}
// (milliseconds, four decimals), {resolution} (100ns units) and {samples}.
//
// The measure tool's output is read line by line. Every "(delta: x)" is one sample; if
// there are none, the "Avg: x" line becomes the single sample of the run.
// A "Resolution: x ms" line, when present, is checked against the setting.
type Command struct {
	Apply       []string
	MeasureArgs []string
	Samples     int
	Settle      time.Duration
	Timeout     time.Duration
	Logger      *slog.Logger
}

func (c *Command) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Measure runs one apply/measure cycle for setting.
func (c *Command) Measure(ctx context.Context, setting float64) ([]float64, error) {
	if len(c.Apply) == 0 || len(c.MeasureArgs) == 0 {
		return nil, measurementErr(setting, "command sampler is not configured", nil)
	}

	applyArgs := expandArgs(c.Apply, setting, c.Samples)
	apply := exec.Command(applyArgs[0], applyArgs[1:]...)
	var applyOut bytes.Buffer
	apply.Stdout = &applyOut
	apply.Stderr = &applyOut
	if err := apply.Start(); err != nil {
		return nil, measurementErr(setting, "starting "+applyArgs[0], err)
	}
	exited := make(chan error, 1)
	go func() { exited <- apply.Wait() }()
	defer func() {
		select {
		case <-exited:
		default:
			_ = apply.Process.Kill()
			<-exited
		}
	}()

	// The apply tool refuses to start when another instance holds the timer.
	select {
	case err := <-exited:
		exited <- err
		return nil, measurementErr(setting, "apply tool exited immediately",
			fmt.Errorf("%v: %s", err, strings.TrimSpace(applyOut.String())))
	case <-time.After(applyAliveCheck):
	}
	if err := settle(ctx, c.Settle); err != nil {
		return nil, measurementErr(setting, "settling", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	measureArgs := expandArgs(c.MeasureArgs, setting, c.Samples)
	out, err := exec.CommandContext(mctx, measureArgs[0], measureArgs[1:]...).Output()
	if mctx.Err() == context.DeadlineExceeded {
		return nil, measurementErr(setting, fmt.Sprintf("%s timed out after %v", measureArgs[0], timeout), mctx.Err())
	}
	if err != nil {
		return nil, measurementErr(setting, measureArgs[0]+" failed", err)
	}

	parsed, err := parseMeasureOutput(out)
	if err != nil {
		return nil, measurementErr(setting, "parsing "+measureArgs[0]+" output", err)
	}
	if parsed.hasResolution {
		diff := math.Abs(parsed.resolution - setting)
		switch {
		case diff > resolutionFailMs:
			return nil, measurementErr(setting,
				fmt.Sprintf("resolution mismatch: measure tool reports %.4fms", parsed.resolution), nil)
		case diff > resolutionWarnMs:
			c.logger().Warn("resolution mismatch",
				"expected_ms", setting, "reported_ms", parsed.resolution, "diff_ms", diff)
		}
	} else {
		c.logger().Debug("measure output carries no resolution line", "setting_ms", setting)
	}
	return parsed.samples, nil
}

// expandArgs substitutes placeholders in a copy of args.
func expandArgs(args []string, setting float64, samples int) []string {
	r := strings.NewReplacer(
		"{setting}", strconv.FormatFloat(setting, 'f', 4, 64),
		"{resolution}", strconv.Itoa(int(math.Round(setting*10000))),
		"{samples}", strconv.Itoa(samples),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

type measureOutput struct {
	samples       []float64
	avg           float64
	stdev         float64
	hasAvg        bool
	resolution    float64
	hasResolution bool
}

// parseMeasureOutput understands lines such as
//
//	Resolution: 0.5186ms, Sleep(1) slept 1.0310ms (delta: 0.0310)
//	Avg: 0.1439
//	STDEV: 0.0029
func parseMeasureOutput(out []byte) (measureOutput, error) {
	var m measureOutput
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if !m.hasResolution {
			if _, rest, ok := strings.Cut(line, "Resolution: "); ok {
				if v, err := parseLeadingFloat(rest); err == nil {
					m.resolution, m.hasResolution = v, true
				}
			}
		}
		if _, rest, ok := strings.Cut(line, "(delta: "); ok {
			if v, err := parseLeadingFloat(rest); err == nil {
				m.samples = append(m.samples, math.Abs(v))
			}
		}
		if rest, ok := strings.CutPrefix(line, "Avg: "); ok && !m.hasAvg {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
				m.avg, m.hasAvg = v, true
			}
		}
		if rest, ok := strings.CutPrefix(line, "STDEV: "); ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
				m.stdev = v
			}
		}
	}
	if err := sc.Err(); err != nil {
		return m, err
	}
	if len(m.samples) == 0 {
		if !m.hasAvg {
			return m, fmt.Errorf("no samples and no Avg line in %d bytes of output", len(out))
		}
		m.samples = []float64{math.Abs(m.avg)}
	}
	return m, nil
}

// parseLeadingFloat parses the number at the start of s, ignoring whatever
// unit or punctuation follows it.
func parseLeadingFloat(s string) (float64, error) {
	end := 0
	for end < len(s) {
		ch := s[end]
		if (ch >= '0' && ch <= '9') || ch == '.' || ch == '-' || ch == '+' {
			end++
			continue
		}
		break
	}
	return strconv.ParseFloat(s[:end], 64)
}
