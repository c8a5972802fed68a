package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates counters for the retrieval pipeline. Emission is
// decoupled from the search return path: recording never blocks and never
// fails a request.
type Metrics struct {
	searchTotal     atomic.Int64
	fusionFallbacks atomic.Int64
	emptyPools      atomic.Int64
	ingestTotal     atomic.Int64
	ingestFailed    atomic.Int64
	askTotal        atomic.Int64
	askFailed       atomic.Int64

	mu           sync.Mutex
	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector keeping the last maxDurations
// retrieval duration samples.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the process-wide metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordSearch records one retrieval: its duration and whether the candidate
// pool came back empty.
func (m *Metrics) RecordSearch(duration time.Duration, poolLen int) {
	m.searchTotal.Add(1)
	if poolLen == 0 {
		m.emptyPools.Add(1)
	}

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// RecordFusionFallback records one degradation to the fusion-free query.
func (m *Metrics) RecordFusionFallback() {
	m.fusionFallbacks.Add(1)
}

// RecordIngest records one ingest request.
func (m *Metrics) RecordIngest(failed bool) {
	m.ingestTotal.Add(1)
	if failed {
		m.ingestFailed.Add(1)
	}
}

// RecordAsk records one ask request.
func (m *Metrics) RecordAsk(failed bool) {
	m.askTotal.Add(1)
	if failed {
		m.askFailed.Add(1)
	}
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	SearchTotal     int64 `json:"search_total"`
	FusionFallbacks int64 `json:"fusion_fallbacks"`
	EmptyPools      int64 `json:"empty_pools"`
	IngestTotal     int64 `json:"ingest_total"`
	IngestFailed    int64 `json:"ingest_failed"`
	AskTotal        int64 `json:"ask_total"`
	AskFailed       int64 `json:"ask_failed"`
	AvgSearchMs     int64 `json:"avg_search_ms"`
}

// Snapshot returns a consistent copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		SearchTotal:     m.searchTotal.Load(),
		FusionFallbacks: m.fusionFallbacks.Load(),
		EmptyPools:      m.emptyPools.Load(),
		IngestTotal:     m.ingestTotal.Load(),
		IngestFailed:    m.ingestFailed.Load(),
		AskTotal:        m.askTotal.Load(),
		AskFailed:       m.askFailed.Load(),
	}

	m.mu.Lock()
	if n := len(m.durations); n > 0 {
		var total time.Duration
		for _, d := range m.durations {
			total += d
		}
		snap.AvgSearchMs = (total / time.Duration(n)).Milliseconds()
	}
	m.mu.Unlock()
	return snap
}
