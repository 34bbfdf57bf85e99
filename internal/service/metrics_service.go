package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/eventhub-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the event engine.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHitRatio    prometheus.Gauge
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	storeDuration    *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	ballots          *prometheus.CounterVec
	xpAwarded        *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	operationReplays *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "event_store_operation_seconds",
		Help:    "Duration of event store transactions and reads",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_transitions_total",
		Help: "Lifecycle transitions committed, by source and target status",
	}, []string{"from", "to"})

	ballots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_ballots_total",
		Help: "Ballots accepted, by kind",
	}, []string{"kind"})

	xpAwarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_xp_awarded_total",
		Help: "XP points awarded at event closure, by role",
	}, []string{"role"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_notifications_total",
		Help: "Notification dispatch attempts, by type and result",
	}, []string{"type", "result"})

	operationReplays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_operation_replays_total",
		Help: "Replayed offline operations, by kind and result",
	}, []string{"kind", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		storeDuration, transitions, ballots, xpAwarded, notifications, operationReplays, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		storeDuration:    storeDuration,
		transitions:      transitions,
		ballots:          ballots,
		xpAwarded:        xpAwarded,
		notifications:    notifications,
		operationReplays: operationReplays,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records cache hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveStoreOperation records the latency of a store call.
func (m *MetricsService) ObserveStoreOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.storeDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordTransition counts a committed lifecycle transition.
func (m *MetricsService) RecordTransition(from, to models.EventStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordBallot counts an accepted ballot.
func (m *MetricsService) RecordBallot(kind string) {
	if m == nil {
		return
	}
	m.ballots.WithLabelValues(kind).Inc()
}

// RecordXPAwards adds the awarded points per role.
func (m *MetricsService) RecordXPAwards(deltas map[string]models.XPDelta) {
	if m == nil {
		return
	}
	for _, delta := range deltas {
		for role, points := range delta.Roles {
			if role.Valid() && points > 0 {
				m.xpAwarded.WithLabelValues(string(role)).Add(float64(points))
			}
		}
	}
}

// RecordNotification counts a notification dispatch attempt.
func (m *MetricsService) RecordNotification(kind models.NotificationType, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(string(kind), result).Inc()
}

// RecordOperationReplay counts a replayed offline operation.
func (m *MetricsService) RecordOperationReplay(kind models.OperationKind, applied bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "rejected"
	}
	m.operationReplays.WithLabelValues(string(kind), result).Inc()
}
