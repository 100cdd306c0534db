package metrics

import (
	"sort"
	"sync"
	"time"
)

// hftTarget is the latency bound counted as HFT-compliant.
const hftTarget = 50 * time.Millisecond

// LatencyWindow is a fixed-size ring of latency samples exposing rolling
// quantiles and a count of samples at or under the 50ms target. One window is
// kept per venue REST client.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool
	sub50   uint64
	total   uint64
}

// NewLatencyWindow creates a window holding the last size samples.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 1024
	}
	return &LatencyWindow{samples: make([]time.Duration, 0, size)}
}

// Record adds one latency sample.
func (w *LatencyWindow) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.samples) < cap(w.samples) {
		w.samples = append(w.samples, d)
	} else {
		w.samples[w.next] = d
		w.next = (w.next + 1) % cap(w.samples)
		w.filled = true
	}
	w.total++
	if d <= hftTarget {
		w.sub50++
	}
}

// Quantile returns the q-quantile (0 < q <= 1) of the current window, or zero
// when no samples exist.
func (w *LatencyWindow) Quantile(q float64) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.samples)
	if n == 0 {
		return 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, w.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(q*float64(n)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// P50 is the rolling median.
func (w *LatencyWindow) P50() time.Duration { return w.Quantile(0.50) }

// P95 is the rolling 95th percentile.
func (w *LatencyWindow) P95() time.Duration { return w.Quantile(0.95) }

// P99 is the rolling 99th percentile.
func (w *LatencyWindow) P99() time.Duration { return w.Quantile(0.99) }

// Sub50msCount returns how many recorded samples met the 50ms target.
func (w *LatencyWindow) Sub50msCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sub50
}

// Count returns the total number of recorded samples.
func (w *LatencyWindow) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}
