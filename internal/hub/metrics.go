package hub

import "sync/atomic"

// Metrics are plain atomics scraped by the /metrics handler.
type Metrics struct {
	PushSessions      atomic.Int64
	IngestCycles      atomic.Uint64
	ChatIngested      atomic.Uint64
	EchoSuppressed    atomic.Uint64
	ActionsDispatched atomic.Uint64
}

type MetricsSnapshot struct {
	PushSessions      int64
	IngestCycles      uint64
	ChatIngested      uint64
	EchoSuppressed    uint64
	ActionsDispatched uint64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		PushSessions:      m.PushSessions.Load(),
		IngestCycles:      m.IngestCycles.Load(),
		ChatIngested:      m.ChatIngested.Load(),
		EchoSuppressed:    m.EchoSuppressed.Load(),
		ActionsDispatched: m.ActionsDispatched.Load(),
	}
}
