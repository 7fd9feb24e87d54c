package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencyTracker keeps the most recent frame build times (ms) in a ring and
// reports percentiles over them. Safe for concurrent use.
type LatencyTracker struct {
	mu   sync.Mutex
	ring []float64
	next int
	full bool
}

// NewLatencyTracker holds up to capacity samples; capacity <= 0 means 10000.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{ring: make([]float64, capacity)}
}

// Record adds one sample, evicting the oldest when full.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.ring[lt.next] = ms
	lt.next++
	if lt.next == len(lt.ring) {
		lt.next, lt.full = 0, true
	}
	lt.mu.Unlock()
}

// Count returns the number of samples held.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count()
}

func (lt *LatencyTracker) count() int {
	if lt.full {
		return len(lt.ring)
	}
	return lt.next
}

// Percentiles returns p50, p95 and p99, or zeros with no samples.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	sorted := append([]float64(nil), lt.ring[:lt.count()]...)
	lt.mu.Unlock()

	sort.Float64s(sorted)
	return quantile(sorted, 0.50), quantile(sorted, 0.95), quantile(sorted, 0.99)
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
