// Package metrics holds the Prometheus collectors of the aggregator.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "routescope"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	requests       *prometheus.CounterVec
	requestSeconds prometheus.Histogram
	pools          *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	sourceCalls    *prometheus.CounterVec
	breakerOpen    *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Aggregate-and-rank requests by outcome",
		}, []string{"outcome"}),
		requestSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Aggregate-and-rank latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		pools: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_pipelines_total",
			Help:      "Pool pipeline runs by venue and outcome",
		}, []string{"venue", "outcome"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"result"}),
		sourceCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_source_calls_total",
			Help:      "Price source calls by source and outcome",
		}, []string{"source", "outcome"}),
		breakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_source_breaker_open",
			Help:      "1 while the source's circuit breaker is open",
		}, []string{"source"}),
	}
}

// ObserveRequest records one aggregate-and-rank call.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.requestSeconds.Observe(d.Seconds())
}

// PoolOutcome records one pool pipeline result.
func (m *Metrics) PoolOutcome(venue, outcome string) {
	if m == nil {
		return
	}
	m.pools.WithLabelValues(venue, outcome).Inc()
}

// CacheLookup implements cache.Recorder.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SourceCall implements oracle.Recorder.
func (m *Metrics) SourceCall(source, outcome string) {
	if m == nil {
		return
	}
	m.sourceCalls.WithLabelValues(source, outcome).Inc()
}

// BreakerState implements oracle.Recorder.
func (m *Metrics) BreakerState(source string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.WithLabelValues(source).Set(v)
}

// Serve exposes /metrics until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		logger.Info("metrics disabled: empty addr")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}()
}
