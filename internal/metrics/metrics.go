package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "varnisher"

// Purge outcomes used as the "outcome" label.
const (
	OutcomePurged      = "purged"
	OutcomeRejected    = "rejected"
	OutcomeTimeout     = "timeout"
	OutcomeUnreachable = "unreachable"
	OutcomeInvalid     = "invalid"
)

// Collector records run metrics.
type Collector struct {
	registry *prometheus.Registry

	// purges counts purge requests by method and outcome.
	purges *prometheus.CounterVec

	// purgeDuration observes the round-trip time of purge requests.
	purgeDuration *prometheus.HistogramVec

	// pagesFetched counts pages the crawler fetched successfully.
	pagesFetched prometheus.Counter

	// fetchFailures counts failed fetches by reason.
	fetchFailures *prometheus.CounterVec

	// frontierSize tracks the number of queued URLs.
	frontierSize prometheus.Gauge
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		purges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "purge_requests_total",
				Help:      "Total number of purge requests, labeled by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		purgeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "purge_duration_seconds",
				Help:      "Duration of purge requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		pagesFetched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pages_fetched_total",
				Help:      "Total number of pages fetched successfully.",
			},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetch_failures_total",
				Help:      "Total number of failed fetches, labeled by reason.",
			},
			[]string{"reason"},
		),
		frontierSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "frontier_size",
				Help:      "Number of URLs waiting in the crawl frontier.",
			},
		),
	}

	c.registry.MustRegister(
		c.purges,
		c.purgeDuration,
		c.pagesFetched,
		c.fetchFailures,
		c.frontierSize,
	)

	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObservePurge records one purge request.
func (c *Collector) ObservePurge(method, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.purges.WithLabelValues(method, outcome).Inc()
	c.purgeDuration.WithLabelValues(method).Observe(d.Seconds())
}

// PageFetched records a successfully fetched page.
func (c *Collector) PageFetched() {
	if c == nil {
		return
	}
	c.pagesFetched.Inc()
}

// FetchFailed records a failed fetch.
func (c *Collector) FetchFailed(reason string) {
	if c == nil {
		return
	}
	c.fetchFailures.WithLabelValues(reason).Inc()
}

// SetFrontierSize records the current frontier length.
func (c *Collector) SetFrontierSize(n int) {
	if c == nil {
		return
	}
	c.frontierSize.Set(float64(n))
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return c.serve(ctx, ln, logger)
}

func (c *Collector) serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:contextcheck // parent is already canceled
	}()

	logger.Info("exposing prometheus metrics", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
