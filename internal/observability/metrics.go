package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch metrics
	activeBatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "narration_gateway_active_batches",
		Help: "Number of narration batches in progress",
	})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_batches_total",
		Help: "Total number of narration batches processed",
	}, []string{"status"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narration_gateway_batch_duration_seconds",
		Help:    "Wall-clock duration of narration batches in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// Synthesis metrics
	fragmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_fragments_total",
		Help: "Total number of sentence fragments synthesized",
	}, []string{"backend", "status"})

	synthesisLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "narration_gateway_synthesis_latency_seconds",
		Help:    "Per-sentence synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"backend"})

	zeroDurationFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_zero_duration_fragments_total",
		Help: "Fragments whose backend reported no usable duration",
	}, []string{"backend"})

	// Translation metrics
	translationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_translation_requests_total",
		Help: "Total number of sentence translation requests",
	}, []string{"status"})

	translationCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_translation_cache_total",
		Help: "Translation cache lookups",
	}, []string{"result"}) // result: "hit" or "miss"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"kind", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "narration_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narration_gateway_audio_bytes_total",
		Help: "Total audio bytes handled",
	}, []string{"direction"}) // direction: "synthesized" or "published"
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// BatchMetrics tracks metrics for a single narration batch
type BatchMetrics struct {
	batchID   string
	startTime time.Time
	ended     bool
	mu        sync.Mutex
}

// NewBatchMetrics creates a new metrics tracker for a batch
func NewBatchMetrics(batchID string) *BatchMetrics {
	return &BatchMetrics{
		batchID:   batchID,
		startTime: time.Now(),
	}
}

// RecordBatchStart records the start of a batch
func (m *BatchMetrics) RecordBatchStart() {
	activeBatches.Inc()
}

// RecordBatchEnd records the end of a batch. Repeated calls are ignored.
func (m *BatchMetrics) RecordBatchEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true

	activeBatches.Dec()
	batchDuration.Observe(time.Since(m.startTime).Seconds())
	batchesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordFragment records one synthesized sentence
func (m *BatchMetrics) RecordFragment(backend string, latency time.Duration, success bool) {
	synthesisLatency.WithLabelValues(backend).Observe(latency.Seconds())
	fragmentsTotal.WithLabelValues(backend, statusLabel(success)).Inc()
}

// RecordZeroDuration records a fragment with a suspect duration report
func (m *BatchMetrics) RecordZeroDuration(backend string) {
	zeroDurationFragments.WithLabelValues(backend).Inc()
}

// RecordError records an error
func (m *BatchMetrics) RecordError(kind, component string) {
	RecordError(kind, component)
}

// RecordAudioBytes records audio bytes handled
func (m *BatchMetrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordError records an error outside a batch
func RecordError(kind, component string) {
	errorsTotal.WithLabelValues(kind, component).Inc()
}

// RecordTranslation records one sentence translation request
func RecordTranslation(success bool) {
	translationRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTranslationCache records a translation cache lookup
func RecordTranslationCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	translationCache.WithLabelValues(result).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
