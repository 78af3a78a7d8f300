package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/course-planner-api/internal/dto"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	generationRuns     *prometheus.CounterVec
	generationDuration prometheus.Histogram
	candidatesProduced prometheus.Histogram
	activeRuns         prometheus.Gauge
	queueWait          *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	runCount       uint64
	candidateCount uint64
	runningNow     int64
	sessionCounter atomic.Pointer[func() int]
	queueDepth     atomic.Pointer[func() int]
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	m := &MetricsService{registry: registry}

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.cacheLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	}, []string{"namespace"})

	m.cacheWrite = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by namespace and result",
	}, []string{"namespace", "result"})

	m.dbQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	m.generationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_generation_runs_total",
		Help: "Finished schedule generation runs by final state",
	}, []string{"state"})

	m.generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_generation_duration_seconds",
		Help:    "Wall time of schedule generation runs",
		Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	m.candidatesProduced = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_candidates_per_run",
		Help:    "Conflict-free schedules produced per run",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	m.activeRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_active_runs",
		Help: "Generation runs currently executing",
	})

	m.queueWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_queue_wait_seconds",
		Help:    "Time jobs spent buffered before a worker picked them up",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	sessions := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_sessions",
		Help: "Live planner sessions",
	}, func() float64 {
		return float64(m.sessions())
	})

	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_queue_pending",
		Help: "Jobs buffered on the background queue",
	}, func() float64 {
		return float64(m.pendingJobs())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheLookups,
		m.dbQueryDuration,
		m.generationRuns, m.generationDuration, m.candidatesProduced, m.activeRuns,
		m.queueWait, goroutines, sessions, pending,
	)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a cache lookup for namespace.
func (m *MetricsService) RecordCacheOperation(namespace string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(namespace).Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	m.cacheLookups.WithLabelValues(namespace, result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// GenerationStarted marks a run as executing.
func (m *MetricsService) GenerationStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
	atomic.AddInt64(&m.runningNow, 1)
}

// GenerationFinished records the end state of a run.
func (m *MetricsService) GenerationFinished(state string, candidates int, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	atomic.AddInt64(&m.runningNow, -1)
	m.generationRuns.WithLabelValues(state).Inc()
	m.generationDuration.Observe(duration.Seconds())
	m.candidatesProduced.Observe(float64(candidates))
	atomic.AddUint64(&m.runCount, 1)
	atomic.AddUint64(&m.candidateCount, uint64(candidates))
}

// ObserveQueueWait records how long a job waited for a worker.
func (m *MetricsService) ObserveQueueWait(jobType string, waited time.Duration) {
	if m == nil {
		return
	}
	m.queueWait.WithLabelValues(jobType).Observe(waited.Seconds())
}

// TrackSessions installs the live session counter.
func (m *MetricsService) TrackSessions(count func() int) {
	if m == nil || count == nil {
		return
	}
	m.sessionCounter.Store(&count)
}

// TrackQueue installs the queue depth reader.
func (m *MetricsService) TrackQueue(pending func() int) {
	if m == nil || pending == nil {
		return
	}
	m.queueDepth.Store(&pending)
}

func (m *MetricsService) pendingJobs() int {
	fn := m.queueDepth.Load()
	if fn == nil {
		return 0
	}
	return (*fn)()
}

func (m *MetricsService) sessions() int {
	fn := m.sessionCounter.Load()
	if fn == nil {
		return 0
	}
	return (*fn)()
}

// Snapshot returns aggregated counters for the admin summary endpoint.
func (m *MetricsService) Snapshot() dto.SystemMetrics {
	if m == nil {
		return dto.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	runs := atomic.LoadUint64(&m.runCount)
	candidates := atomic.LoadUint64(&m.candidateCount)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgCandidates float64
	if runs > 0 {
		avgCandidates = float64(candidates) / float64(runs)
	}

	return dto.SystemMetrics{
		RequestsTotal:       atomic.LoadUint64(&m.requestCount),
		CacheHitRatio:       ratio,
		CacheHits:           hits,
		CacheMisses:         misses,
		GenerationRuns:      runs,
		ActiveRuns:          atomic.LoadInt64(&m.runningNow),
		AvgCandidatesPerRun: avgCandidates,
		Sessions:            m.sessions(),
		QueuePending:        m.pendingJobs(),
		Goroutines:          runtime.NumGoroutine(),
		GeneratedAt:         time.Now().UTC(),
	}
}
