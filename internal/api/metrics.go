package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server metrics using atomic counters.
type Metrics struct {
	startTime        time.Time
	requests         atomic.Int64
	serverErrors     atomic.Int64
	clientErrors     atomic.Int64
	pushedRecords    atomic.Int64
	conflicts        atomic.Int64
	deltaRequests    atomic.Int64
	snapshotRequests atomic.Int64
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds       float64 `json:"uptime_seconds"`
	Requests            int64   `json:"requests"`
	ServerErrors        int64   `json:"server_errors"`
	ClientErrors        int64   `json:"client_errors"`
	PushRecordsAccepted int64   `json:"push_records_accepted"`
	Conflicts           int64   `json:"conflicts"`
	DeltaRequests       int64   `json:"delta_requests"`
	SnapshotRequests    int64   `json:"snapshot_requests"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordError increments the server error (5xx) counter.
func (m *Metrics) RecordError() {
	m.serverErrors.Add(1)
}

// RecordClientError increments the client error (4xx) counter.
func (m *Metrics) RecordClientError() {
	m.clientErrors.Add(1)
}

// RecordPushedRecords adds n to the accepted push records counter.
func (m *Metrics) RecordPushedRecords(n int64) {
	m.pushedRecords.Add(n)
}

// RecordConflicts adds n to the version conflict counter.
func (m *Metrics) RecordConflicts(n int64) {
	m.conflicts.Add(n)
}

// RecordDeltaRequest increments the delta request counter.
func (m *Metrics) RecordDeltaRequest() {
	m.deltaRequests.Add(1)
}

// RecordSnapshotRequest increments the snapshot request counter.
func (m *Metrics) RecordSnapshotRequest() {
	m.snapshotRequests.Add(1)
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:       time.Since(m.startTime).Seconds(),
		Requests:            m.requests.Load(),
		ServerErrors:        m.serverErrors.Load(),
		ClientErrors:        m.clientErrors.Load(),
		PushRecordsAccepted: m.pushedRecords.Load(),
		Conflicts:           m.conflicts.Load(),
		DeltaRequests:       m.deltaRequests.Load(),
		SnapshotRequests:    m.snapshotRequests.Load(),
	}
}
