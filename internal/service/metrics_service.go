package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the gateway.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	snapshotBuild   prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	pushDelivered   prometheus.Counter
	pushFailed      prometheus.Counter
	subscriptions   prometheus.Gauge
}

// NewMetricsService registers the gateway's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	snapshotBuild := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_build_seconds",
		Help:    "Duration of week snapshot builds",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_hits_total",
		Help: "Total snapshot cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_misses_total",
		Help: "Total snapshot cache misses",
	})

	pushDelivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_deliveries_total",
		Help: "Total snapshots delivered over the socket channel",
	})

	pushFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_delivery_failures_total",
		Help: "Total per-connection push delivery failures",
	})

	subscriptions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "push_subscriptions",
		Help: "Connections currently holding a subscription",
	})

	registry.MustRegister(requestDuration, requestTotal, snapshotBuild, cacheHits, cacheMisses, pushDelivered, pushFailed, subscriptions)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		snapshotBuild:   snapshotBuild,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		pushDelivered:   pushDelivered,
		pushFailed:      pushFailed,
		subscriptions:   subscriptions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSnapshotBuild records the time spent assembling a week snapshot.
func (m *MetricsService) ObserveSnapshotBuild(duration time.Duration) {
	if m == nil {
		return
	}
	m.snapshotBuild.Observe(duration.Seconds())
}

// RecordSnapshotCache records a snapshot cache hit or miss.
func (m *MetricsService) RecordSnapshotCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordPushDelivery counts one push send attempt.
func (m *MetricsService) RecordPushDelivery(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.pushDelivered.Inc()
	} else {
		m.pushFailed.Inc()
	}
}

// SetSubscriptionCount updates the live subscription gauge.
func (m *MetricsService) SetSubscriptionCount(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}
