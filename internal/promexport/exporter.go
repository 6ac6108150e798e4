package promexport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"steadyrate/internal/stats"
)

const namespace = "steadyrate"

// Exporter mirrors recorded outcomes into prometheus collectors. It is a
// stats.Observer.
type Exporter struct {
	registry *prometheus.Registry

	iterations   *prometheus.CounterVec
	dropped      prometheus.Counter
	httpReqs     *prometheus.CounterVec
	reqDuration  prometheus.Histogram
	iterDuration prometheus.Histogram
	checks       *prometheus.CounterVec
	dataReceived prometheus.Counter
}

func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed iterations by outcome status",
		}, []string{"status"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_iterations_total",
			Help:      "Arrivals skipped because no virtual caller was free",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_reqs_total",
			Help:      "HTTP requests issued by response code (0 when no response arrived)",
		}, []string{"code"}),
		reqDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_req_duration_seconds",
			Help:      "Time from sending the request to reading the response",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		iterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Wall time of a whole iteration",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Check evaluations by name and result",
		}, []string{"check", "result"}),
		dataReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_received_bytes_total",
			Help:      "Response body bytes read",
		}),
	}
	e.registry.MustRegister(e.iterations, e.dropped, e.httpReqs, e.reqDuration, e.iterDuration, e.checks, e.dataReceived)
	return e
}

// Registry exposes the collectors, mostly for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Observe(o stats.Outcome) {
	if o.Status == stats.StatusDropped {
		e.dropped.Inc()
		return
	}
	e.iterations.WithLabelValues(o.Status.String()).Inc()
	e.iterDuration.Observe(o.Duration.Seconds())
	if o.Requested {
		e.httpReqs.WithLabelValues(strconv.Itoa(o.StatusCode)).Inc()
		if o.StatusCode > 0 {
			e.reqDuration.Observe(o.RequestDuration.Seconds())
		}
		e.dataReceived.Add(float64(o.Bytes))
	}
	for _, c := range o.Checks {
		result := "fail"
		if c.Passed {
			result = "pass"
		}
		e.checks.WithLabelValues(c.Name, result).Inc()
	}
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("serving prometheus metrics", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
