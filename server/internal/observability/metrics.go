package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Operation names recorded by the tag service.
const (
	OpSearch         = "search"
	OpCreateTaggings = "create_taggings"
	OpListTaggings   = "list_taggings"
	OpPreview        = "preview"
	OpSubscribe      = "subscribe"
	OpRender         = "render"
	OpHeatmap        = "heatmap"
	OpLifecycle      = "lifecycle"
)

// Metrics aggregates per-operation counters and recent latencies.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64

	operations map[string]*OperationMetrics

	// Ring of the most recent durations, used for percentiles.
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics holds counters for one operation.
type OperationMetrics struct {
	count         atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a metrics collector keeping the last maxDurations latencies.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		operations:   make(map[string]*OperationMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records one execution of op.
func (m *Metrics) RecordRequest(op string) {
	m.requestTotal.Add(1)
	m.operation(op).count.Add(1)
}

// RecordFailure records a failed execution of op.
func (m *Metrics) RecordFailure(op string) {
	m.requestFailed.Add(1)
	m.operation(op).errorCount.Add(1)
}

// RecordDuration records how long op took.
func (m *Metrics) RecordDuration(op string, duration time.Duration) {
	m.operation(op).totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// Observe records an execution of op started at start, failing when err is non-nil.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	m.RecordRequest(op)
	if err != nil {
		m.RecordFailure(op)
	}
	m.RecordDuration(op, time.Since(start))
}

// RecordCacheHit counts a search served from cache.
func (m *Metrics) RecordCacheHit() { m.cacheHits.Add(1) }

// RecordCacheMiss counts a search that went to the store.
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

func (m *Metrics) operation(op string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[op]
	if !ok {
		om = &OperationMetrics{}
		m.operations[op] = om
	}
	return om
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make(map[string]*OperationSnapshot, len(m.operations))
	for name, om := range m.operations {
		count := om.count.Load()
		total := om.totalDuration.Load()
		var avg int64
		if count > 0 {
			avg = total / count
		}
		ops[name] = &OperationSnapshot{
			Count:           count,
			ErrorCount:      om.errorCount.Load(),
			TotalDurationMs: total,
			AverageMs:       avg,
		}
	}

	sorted := make([]time.Duration, len(m.durations))
	copy(sorted, m.durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		CacheHits:     m.cacheHits.Load(),
		CacheMisses:   m.cacheMisses.Load(),
		Operations:    ops,
		P50Ms:         percentile(sorted, 50),
		P95Ms:         percentile(sorted, 95),
	}
}

func percentile(sorted []time.Duration, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted)*p+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx].Milliseconds()
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                         `json:"requestTotal"`
	RequestFailed int64                         `json:"requestFailed"`
	CacheHits     int64                         `json:"cacheHits"`
	CacheMisses   int64                         `json:"cacheMisses"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
	P50Ms         int64                         `json:"p50Ms"`
	P95Ms         int64                         `json:"p95Ms"`
}

// OperationSnapshot is the view of one operation.
type OperationSnapshot struct {
	Count           int64 `json:"count"`
	ErrorCount      int64 `json:"errorCount"`
	TotalDurationMs int64 `json:"totalDurationMs"`
	AverageMs       int64 `json:"averageMs"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}

// CacheHitRate returns the share of searches served from cache as a percentage.
func (s *MetricsSnapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total) * 100.0
}
