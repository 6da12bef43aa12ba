package monitoring

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxResponseSamples = 1000

// Metrics holds application metrics. Counters are exported through a
// dedicated Prometheus registry; a small in-process summary backs /health.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	biasFlags        *prometheus.CounterVec
	oracleCalls      *prometheus.CounterVec
	oracleDuration   prometheus.Histogram
	rateLimitBlocks  *prometheus.CounterVec
	rateLimitErrors  prometheus.Counter
	breakerChanges   *prometheus.CounterVec
	oracleCache      *prometheus.CounterVec

	requestCount  int64
	errorCount    int64
	analysisCount int64
	oracleFails   int64
	cacheHits     int64
	cacheMisses   int64
	startTime     time.Time

	responseTimes      []time.Duration
	responseTimesMutex sync.RWMutex
}

// NewMetrics creates a metrics instance with its own registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:      prometheus.NewRegistry(),
		startTime:     time.Now(),
		responseTimes: make([]time.Duration, 0, maxResponseSamples),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shield",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "analyses_total",
			Help:      "Completed analyses by risk level.",
		}, []string{"risk_level"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shield",
			Name:      "analysis_duration_seconds",
			Help:      "Engine run latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		biasFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "bias_flags_total",
			Help:      "Emitted bias flags by type.",
		}, []string{"type"}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "oracle_calls_total",
			Help:      "Oracle calls by outcome.",
		}, []string{"outcome"}),
		oracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shield",
			Name:      "oracle_call_duration_seconds",
			Help:      "Oracle call latency including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		rateLimitBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "rate_limit_blocks_total",
			Help:      "Requests rejected by the rate limiter by backend.",
		}, []string{"backend"}),
		rateLimitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "rate_limit_redis_errors_total",
			Help:      "Redis errors that forced the in-memory limiter.",
		}),
		breakerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions by target state.",
		}, []string{"breaker", "state"}),
		oracleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Name:      "oracle_cache_lookups_total",
			Help:      "Oracle signal cache lookups by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.analyses,
		m.analysisDuration,
		m.biasFlags,
		m.oracleCalls,
		m.oracleDuration,
		m.rateLimitBlocks,
		m.rateLimitErrors,
		m.breakerChanges,
		m.oracleCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one served HTTP request
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	atomic.AddInt64(&m.requestCount, 1)
	if status >= 400 {
		atomic.AddInt64(&m.errorCount, 1)
	}

	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	m.responseTimesMutex.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > maxResponseSamples {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseTimesMutex.Unlock()
}

// RecordAnalysis records one completed engine run
func (m *Metrics) RecordAnalysis(riskLevel string, flagTypes []string, duration time.Duration) {
	if m == nil {
		return
	}

	atomic.AddInt64(&m.analysisCount, 1)
	m.analyses.WithLabelValues(riskLevel).Inc()
	m.analysisDuration.Observe(duration.Seconds())
	for _, t := range flagTypes {
		m.biasFlags.WithLabelValues(t).Inc()
	}
}

// RecordOracleCall records one guarded oracle call. outcome is one of
// success, failure, rejected or malformed.
func (m *Metrics) RecordOracleCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	if outcome != "success" {
		atomic.AddInt64(&m.oracleFails, 1)
	}
	m.oracleCalls.WithLabelValues(outcome).Inc()
	m.oracleDuration.Observe(duration.Seconds())
}

// RecordRateLimitBlock counts a rejected request
func (m *Metrics) RecordRateLimitBlock(backend string) {
	if m == nil {
		return
	}
	m.rateLimitBlocks.WithLabelValues(backend).Inc()
}

// RecordRateLimitRedisError counts a redis failure that triggered fallback
func (m *Metrics) RecordRateLimitRedisError() {
	if m == nil {
		return
	}
	m.rateLimitErrors.Inc()
}

// RecordBreakerTransition counts a circuit breaker state change
func (m *Metrics) RecordBreakerTransition(breaker, state string) {
	if m == nil {
		return
	}
	m.breakerChanges.WithLabelValues(breaker, state).Inc()
}

// IncrementCacheHit counts an oracle signal served from cache
func (m *Metrics) IncrementCacheHit() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.cacheHits, 1)
	m.oracleCache.WithLabelValues("hit").Inc()
}

// IncrementCacheMiss counts an oracle signal that had to be fetched
func (m *Metrics) IncrementCacheMiss() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.cacheMisses, 1)
	m.oracleCache.WithLabelValues("miss").Inc()
}

// GetPercentileResponseTime calculates the given percentile over the most
// recent response samples
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	if m == nil {
		return 0
	}

	m.responseTimesMutex.RLock()
	defer m.responseTimesMutex.RUnlock()

	if len(m.responseTimes) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.responseTimes))
	copy(sorted, m.responseTimes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)-1) * percentile / 100)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// GetStats returns a summary for the health endpoint
func (m *Metrics) GetStats() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}

	requests := atomic.LoadInt64(&m.requestCount)
	errors := atomic.LoadInt64(&m.errorCount)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":  time.Since(m.startTime).Seconds(),
		"total_requests":  requests,
		"total_errors":    errors,
		"error_rate_pct":  errorRate,
		"analyses":        atomic.LoadInt64(&m.analysisCount),
		"oracle_failures": atomic.LoadInt64(&m.oracleFails),
		"cache_hits":      atomic.LoadInt64(&m.cacheHits),
		"cache_misses":    atomic.LoadInt64(&m.cacheMisses),
		"p50_ms":          m.GetPercentileResponseTime(50).Milliseconds(),
		"p95_ms":          m.GetPercentileResponseTime(95).Milliseconds(),
		"p99_ms":          m.GetPercentileResponseTime(99).Milliseconds(),
	}
}
