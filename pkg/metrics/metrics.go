// Package metrics exposes search progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runningwild/timerbench/pkg/search"
)

const namespace = "timerbench"

// Search holds the collectors of one run on a private registry. It
// implements search.Observer.
type Search struct {
	Registry *prometheus.Registry

	measured  prometheus.Counter
	skipped   prometheus.Counter
	attempts  *prometheus.CounterVec
	bestScore prometheus.Gauge
	bestSet   prometheus.Gauge
	progress  prometheus.Gauge
	duration  prometheus.Histogram
}

var _ search.Observer = (*Search)(nil)

func New() *Search {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Search{
		Registry: reg,
		measured: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_measured_total",
			Help:      "Grid points measured successfully",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_skipped_total",
			Help:      "Grid points skipped after exhausting the retry budget",
		}),
		// Labels: outcome (ok, failed)
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurement_attempts_total",
			Help:      "Measurement attempts by outcome",
		}, []string{"outcome"}),
		bestScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Performance score of the best candidate so far (lower is better)",
		}),
		bestSet: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_setting_ms",
			Help:      "Timer setting of the best candidate so far, in milliseconds",
		}),
		progress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_ratio",
			Help:      "Fraction of grid points measured or skipped",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_duration_seconds",
			Help:      "Wall time spent measuring one grid point, retries included",
			Buckets:   []float64{0.5, 1, 2, 4, 6.5, 10, 15, 30, 60, 120},
		}),
	}
}

func (s *Search) OnCandidate(c search.Candidate, took time.Duration, ev search.ProgressEvent) {
	s.measured.Inc()
	s.attempts.WithLabelValues("ok").Inc()
	if c.Attempts > 1 {
		s.attempts.WithLabelValues("failed").Add(float64(c.Attempts - 1))
	}
	s.duration.Observe(took.Seconds())
	if ev.Best != nil {
		s.bestScore.Set(ev.Best.Score)
		s.bestSet.Set(ev.Best.Setting)
	}
	s.setProgress(ev)
}

func (s *Search) OnSkip(sk search.SkippedCandidate, ev search.ProgressEvent) {
	s.skipped.Inc()
	s.attempts.WithLabelValues("failed").Add(float64(sk.Attempts))
	s.setProgress(ev)
}

func (s *Search) setProgress(ev search.ProgressEvent) {
	if ev.Total > 0 {
		s.progress.Set(float64(ev.Done) / float64(ev.Total))
	}
}

func (s *Search) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. The listener is bound
// before Serve returns, so a bad address is reported immediately.
func (s *Search) Serve(ctx context.Context, addr string, log *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())
	return ln.Addr(), nil
}
