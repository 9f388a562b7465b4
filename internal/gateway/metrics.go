package gateway

import (
	"sync/atomic"
	"time"
)

// Metrics tracks gateway-level counters using atomic operations for
// lock-free concurrency.
type Metrics struct {
	searches      atomic.Int64
	ingested      atomic.Int64
	reminderOps   atomic.Int64
	errors        atomic.Int64
	searchLatency atomic.Int64 // nanoseconds
}

// RecordSearch records a completed search and its latency.
func (m *Metrics) RecordSearch(latency time.Duration) {
	m.searches.Add(1)
	m.searchLatency.Add(int64(latency))
}

// RecordIngest records stored chunks.
func (m *Metrics) RecordIngest(chunks int) {
	m.ingested.Add(int64(chunks))
}

// RecordReminderOp records a reminder mutation.
func (m *Metrics) RecordReminderOp() {
	m.reminderOps.Add(1)
}

// RecordError records a request that failed server-side.
func (m *Metrics) RecordError() {
	m.errors.Add(1)
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	searches := m.searches.Load()
	snap := MetricsSnapshot{
		Searches:       searches,
		ChunksIngested: m.ingested.Load(),
		ReminderOps:    m.reminderOps.Load(),
		Errors:         m.errors.Load(),
	}
	if searches > 0 {
		snap.AvgSearchLatency = time.Duration(m.searchLatency.Load() / searches)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Searches         int64         `json:"searches"`
	ChunksIngested   int64         `json:"chunks_ingested"`
	ReminderOps      int64         `json:"reminder_ops"`
	Errors           int64         `json:"errors"`
	AvgSearchLatency time.Duration `json:"avg_search_latency_ns"`
}
