package modelregistry

import "sync/atomic"

// Metrics is the {hits, misses, memory bytes, hit rate} counter set the
// registry exposes. Plain atomics, not a counting library: ristretto's
// z.Counters shape is built for cache-internal sketch accounting, not a
// handful of process-wide gauges, so it would be pulled in for a handful
// of Add calls it isn't designed around — see DESIGN.md.
type Metrics struct {
	Hits        atomic.Int64
	Misses      atomic.Int64
	MemoryBytes atomic.Int64
	Evictions   atomic.Int64
}

// HitRate returns hits / (hits + misses), or 0 when nothing has resolved yet.
func (m *Metrics) HitRate() float64 {
	hits := m.Hits.Load()
	misses := m.Misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Snapshot is an immutable copy of Metrics for reporting.
type Snapshot struct {
	Hits        int64
	Misses      int64
	MemoryBytes int64
	Evictions   int64
	HitRate     float64
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Hits:        m.Hits.Load(),
		Misses:      m.Misses.Load(),
		MemoryBytes: m.MemoryBytes.Load(),
		Evictions:   m.Evictions.Load(),
		HitRate:     m.HitRate(),
	}
}
