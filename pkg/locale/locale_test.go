package locale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runningwild/timerbench/pkg/eta"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		tag  string
		want string
		err  bool
	}{
		{"", "en", false},
		{"en", "en", false},
		{"en_US.UTF-8", "en", false},
		{"RU", "ru", false},
		{"ru-RU", "ru", false},
		{"C", "en", false},
		{"xx", "en", true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			m, err := Lookup(tt.tag)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.Tag())
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownLanguage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnglish(t *testing.T) {
	m := English()
	assert.Equal(t, "3/21", m.Progress(3, 21))
	assert.Equal(t, "Current best: 0.5004 ms (score=0.1234, μ=0.0300, p95=0.0400, MAD=0.0050)",
		m.Best(0.5004, 0.1234, 0.03, 0.04, 0.005))
	assert.Equal(t, "live ETA unknown", m.LiveEstimate(0, false))
	assert.Equal(t, "live ETA 1h39m00s", m.LiveEstimate(5940*time.Second, true))
	assert.Equal(t, "initial est. 2m17s (low confidence)", m.InitialEstimate(136500*time.Millisecond))
	assert.Equal(t, "SetTimerResolution.exe --resolution 5004 --no-console", m.ApplyHint(0.5004))
	assert.Contains(t, m.Skipped(0.75, 3, "busy"), "not measured")
	assert.Equal(t, "took 1m30s (initial estimate 26s, last live estimate unknown)",
		m.SummaryTiming(90*time.Second, 26*time.Second, eta.Unknown, false))
	assert.Equal(t, "took 1m30s (initial estimate 26s, last live estimate 12s)",
		m.SummaryTiming(90*time.Second, 26*time.Second, 12*time.Second, true))
	assert.Equal(t, "all 3 samples: μ=0.0200 ms, p50=0.0200 ms, p99=0.0300 ms, max=0.0300 ms",
		m.SummaryDistribution(3, 0, 0.02, 0.02, 0.03, 0.03))
	assert.Contains(t, m.SummaryDistribution(3, 2, 0, 0, 0, 0), "(2 out of range)")
}

func TestRussian(t *testing.T) {
	m := Russian()
	assert.Equal(t, "осталось 42 с", m.LiveEstimate(42*time.Second, true))
	assert.Equal(t, "осталось 2 мин 05 с", m.LiveEstimate(125*time.Second, true))
	assert.Contains(t, m.Best(0.5, 1, 1, 1, 1), "Текущий лучший: 0.5000 мс")
	assert.Contains(t, m.SummaryTiming(time.Minute, time.Minute, eta.Unknown, false), "последняя оценка неизвестна")
}

func TestCatalogsArePure(t *testing.T) {
	for _, tag := range Tags() {
		m, err := Lookup(tag)
		require.NoError(t, err)
		assert.Equal(t, m.Best(0.5, 1, 2, 3, 4), m.Best(0.5, 1, 2, 3, 4))
		assert.NotEmpty(t, m.NoBest())
		assert.NotEmpty(t, m.SummaryCancelled())
	}
	assert.Equal(t, "initial est. 0s (low confidence)", English().InitialEstimate(-time.Second))
}
