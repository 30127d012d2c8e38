package server

import (
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/staticd/internal/response"
)

// Metrics holds server runtime metrics
type Metrics struct {
	ConnectionsTotal  atomic.Int64
	ActiveConnections atomic.Int64
	AcceptErrors      atomic.Int64
	Panics            atomic.Int64

	RequestsTotal atomic.Int64
	Responses2xx  atomic.Int64
	Errors4xx     atomic.Int64
	Errors5xx     atomic.Int64
	BytesSent     atomic.Int64

	// TotalLatencyNs is the sum of handling times of all requests.
	TotalLatencyNs atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) ConnOpened() {
	m.ConnectionsTotal.Add(1)
	m.ActiveConnections.Add(1)
}

func (m *Metrics) ConnClosed() {
	m.ActiveConnections.Add(-1)
}

// RecordRequest records a completed request
func (m *Metrics) RecordRequest(statusCode response.StatusCode, bodyBytes int64, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.BytesSent.Add(bodyBytes)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	switch {
	case statusCode.IsSuccess():
		m.Responses2xx.Add(1)
	case statusCode.IsClientError():
		m.Errors4xx.Add(1)
	case statusCode.IsServerError():
		m.Errors5xx.Add(1)
	}
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}

	avgNs := m.TotalLatencyNs.Load() / totalReqs
	return time.Duration(avgNs)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	ConnectionsTotal  int64
	ActiveConnections int64
	AcceptErrors      int64
	Panics            int64
	RequestsTotal     int64
	Responses2xx      int64
	Errors4xx         int64
	Errors5xx         int64
	BytesSent         int64
	AverageLatency    time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsTotal:  m.ConnectionsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		AcceptErrors:      m.AcceptErrors.Load(),
		Panics:            m.Panics.Load(),
		RequestsTotal:     m.RequestsTotal.Load(),
		Responses2xx:      m.Responses2xx.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		BytesSent:         m.BytesSent.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
