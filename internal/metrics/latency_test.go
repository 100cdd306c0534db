package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyWindowQuantiles(t *testing.T) {
	w := NewLatencyWindow(100)
	for i := 1; i <= 100; i++ {
		w.Record(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, 50*time.Millisecond, w.P50())
	assert.Equal(t, 95*time.Millisecond, w.P95())
	assert.Equal(t, 99*time.Millisecond, w.P99())
}

func TestLatencyWindowSub50Count(t *testing.T) {
	w := NewLatencyWindow(10)
	w.Record(10 * time.Millisecond)
	w.Record(50 * time.Millisecond) // inclusive bound
	w.Record(51 * time.Millisecond)
	w.Record(200 * time.Millisecond)

	assert.Equal(t, uint64(2), w.Sub50msCount())
	assert.Equal(t, uint64(4), w.Count())
}

func TestLatencyWindowQuantilesMonotonicUnderGrowingSamples(t *testing.T) {
	w := NewLatencyWindow(1000)
	var lastP95, lastP99 time.Duration
	// feeding strictly increasing samples must never lower the quantiles
	for i := 1; i <= 500; i++ {
		w.Record(time.Duration(i) * time.Millisecond)
		p95, p99 := w.P95(), w.P99()
		assert.GreaterOrEqual(t, p95, lastP95)
		assert.GreaterOrEqual(t, p99, lastP99)
		lastP95, lastP99 = p95, p99
	}
}

func TestLatencyWindowEvictsOldest(t *testing.T) {
	w := NewLatencyWindow(4)
	for _, d := range []time.Duration{100, 200, 300, 400, 500, 600} {
		w.Record(d * time.Millisecond)
	}
	// window now holds 300..600
	assert.Equal(t, 600*time.Millisecond, w.Quantile(1.0))
	assert.Equal(t, 300*time.Millisecond, w.Quantile(0.25))
}

func TestLatencyWindowEmpty(t *testing.T) {
	w := NewLatencyWindow(8)
	assert.Equal(t, time.Duration(0), w.P99())
	assert.Equal(t, uint64(0), w.Sub50msCount())
}
