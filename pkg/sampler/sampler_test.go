package sampler

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementError(t *testing.T) {
	cause := errors.New("boom")
	err := error(measurementErr(0.5, "sleep 1 of 3", cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "measuring 0.5000ms: sleep 1 of 3: boom", err.Error())

	var me *MeasurementError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 0.5, me.Setting)

	assert.Equal(t, "measuring 0.7500ms: bad", measurementErr(0.75, "bad", nil).Error())
}

func TestFunc(t *testing.T) {
	var s Sampler = Func(func(_ context.Context, setting float64) ([]float64, error) {
		return []float64{setting * 2}, nil
	})
	got, err := s.Measure(context.Background(), 0.25)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, got)
}

func TestOvershootMs(t *testing.T) {
	assert.InDelta(t, 0.25, overshootMs(1250*time.Microsecond, time.Millisecond), 1e-12)
	assert.Equal(t, 0.0, overshootMs(900*time.Microsecond, time.Millisecond))
}

func TestSettle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, settle(ctx, time.Hour), context.Canceled)
	assert.NoError(t, settle(ctx, 0))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, ConstantBackoff{Delay: 100 * time.Millisecond}.NextDelay(7))

	lin := LinearBackoff{BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, lin.NextDelay(0))
	assert.Equal(t, 200*time.Millisecond, lin.NextDelay(1))
	assert.Equal(t, 250*time.Millisecond, lin.NextDelay(5))

	exp := ExponentialBackoff{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, exp.NextDelay(0))
	assert.Equal(t, 400*time.Millisecond, exp.NextDelay(2))
	assert.Equal(t, time.Second, exp.NextDelay(10))

	jittered := ExponentialBackoff{BaseDelay: 100 * time.Millisecond, Jitter: true}
	for range 50 {
		d := jittered.NextDelay(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestBackoffFromName(t *testing.T) {
	assert.IsType(t, ConstantBackoff{}, BackoffFromName("constant", time.Second, 0))
	assert.IsType(t, LinearBackoff{}, BackoffFromName("linear", time.Second, 0))
	assert.IsType(t, ExponentialBackoff{}, BackoffFromName("exponential", time.Second, 0))
	assert.IsType(t, ExponentialBackoff{}, BackoffFromName("", time.Second, 0))
}

func TestRetry(t *testing.T) {
	assert.Equal(t, 1, Retry{}.Attempts())
	assert.Equal(t, 3, Retry{MaxAttempts: 3}.Attempts())
	assert.Equal(t, time.Duration(0), Retry{}.Delay(2))
	assert.Equal(t, time.Second, Retry{Backoff: ConstantBackoff{Delay: time.Second}}.Delay(2))
}

func TestParseMeasureOutput_Deltas(t *testing.T) {
	out := []byte(`Resolution: 0.5186ms, Sleep(1) slept 1.0310ms (delta: 0.0310)
Resolution: 0.5186ms, Sleep(1) slept 1.0420ms (delta: 0.0420)
Resolution: 0.5186ms, Sleep(1) slept 0.9990ms (delta: -0.0010)
Avg: 0.0240
STDEV: 0.0180
`)
	m, err := parseMeasureOutput(out)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.031, 0.042, 0.001}, m.samples)
	assert.True(t, m.hasResolution)
	assert.Equal(t, 0.5186, m.resolution)
	assert.True(t, m.hasAvg)
	assert.Equal(t, 0.024, m.avg)
	assert.Equal(t, 0.018, m.stdev)
}

func TestParseMeasureOutput_AvgOnly(t *testing.T) {
	m, err := parseMeasureOutput([]byte("Avg: 0.1439\nSTDEV: 0.0029\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1439}, m.samples)
	assert.False(t, m.hasResolution)
}

func TestParseMeasureOutput_Nothing(t *testing.T) {
	_, err := parseMeasureOutput([]byte("hello\n"))
	assert.Error(t, err)
}

func TestExpandArgs(t *testing.T) {
	args := []string{"SetTimerResolution.exe", "--resolution", "{resolution}", "--no-console"}
	got := expandArgs(args, 0.5004, 50)
	assert.Equal(t, []string{"SetTimerResolution.exe", "--resolution", "5004", "--no-console"}, got)
	assert.Equal(t, "{resolution}", args[2])

	assert.Equal(t, []string{"-s", "50", "0.5000"}, expandArgs([]string{"-s", "{samples}", "{setting}"}, 0.5, 50))
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh in PATH")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("no sleep in PATH")
	}
}

func TestCommand_Measure(t *testing.T) {
	requireShell(t)
	c := &Command{
		Apply:       []string{"sleep", "5"},
		MeasureArgs: []string{"sh", "-c", `echo "Resolution: {setting}ms, Sleep(1) slept 1.02ms (delta: 0.02)"; echo "Resolution: {setting}ms, Sleep(1) slept 1.03ms (delta: 0.03)"`},
		Timeout:     5 * time.Second,
	}
	got, err := c.Measure(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.02, 0.03}, got)
}

func TestCommand_ResolutionMismatch(t *testing.T) {
	requireShell(t)
	c := &Command{
		Apply:       []string{"sleep", "5"},
		MeasureArgs: []string{"sh", "-c", `echo "Resolution: 1.0000ms, Sleep(1) slept 1.02ms (delta: 0.02)"`},
	}
	_, err := c.Measure(context.Background(), 0.5)
	var me *MeasurementError
	require.ErrorAs(t, err, &me)
	assert.Contains(t, me.Reason, "resolution mismatch")
}

func TestCommand_ApplyExitsImmediately(t *testing.T) {
	requireShell(t)
	c := &Command{
		Apply:       []string{"sh", "-c", "echo already running; exit 1"},
		MeasureArgs: []string{"sh", "-c", "echo Avg: 0.1"},
	}
	_, err := c.Measure(context.Background(), 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply tool exited immediately")
}

func TestCommand_NotConfigured(t *testing.T) {
	_, err := (&Command{}).Measure(context.Background(), 0.5)
	assert.Error(t, err)
}
