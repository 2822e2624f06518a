// Package metrics tracks server loop counters for the debug HTTP
// surface. Counters use atomics so the HTTP handlers can read them
// without touching the loop goroutine.
package metrics

import "sync/atomic"

// LoopMetrics accumulates per-loop counters.
type LoopMetrics struct {
	TickCount        int64
	TotalTickNs      int64
	RequestsHandled  int64
	InvalidRequests  int64
	IllegalRequests  int64
	InternalErrors   int64
	UpdatesBroadcast int64
	FramingErrors    int64
}

func (m *LoopMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

func (m *LoopMetrics) IncRequest()       { atomic.AddInt64(&m.RequestsHandled, 1) }
func (m *LoopMetrics) IncInvalid()       { atomic.AddInt64(&m.InvalidRequests, 1) }
func (m *LoopMetrics) IncIllegal()       { atomic.AddInt64(&m.IllegalRequests, 1) }
func (m *LoopMetrics) IncInternal()      { atomic.AddInt64(&m.InternalErrors, 1) }
func (m *LoopMetrics) IncBroadcast()     { atomic.AddInt64(&m.UpdatesBroadcast, 1) }
func (m *LoopMetrics) IncFramingError()  { atomic.AddInt64(&m.FramingErrors, 1) }

// Snapshot returns a read-only copy for HTTP output.
func (m *LoopMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":        tick,
		"avg_tick_ms":       avgMs,
		"requests_handled":  atomic.LoadInt64(&m.RequestsHandled),
		"invalid_requests":  atomic.LoadInt64(&m.InvalidRequests),
		"illegal_requests":  atomic.LoadInt64(&m.IllegalRequests),
		"internal_errors":   atomic.LoadInt64(&m.InternalErrors),
		"updates_broadcast": atomic.LoadInt64(&m.UpdatesBroadcast),
		"framing_errors":    atomic.LoadInt64(&m.FramingErrors),
	}
}
