package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossarb/internal/exchange"
)

func TestNewValidatesBounds(t *testing.T) {
	cases := []struct {
		name string
		cfg  Limits
		ok   bool
	}{
		{"valid", Limits{RequestsPerSecond: 20, Burst: 5}, true},
		{"zero rps", Limits{RequestsPerSecond: 0, Burst: 1}, false},
		{"negative rps", Limits{RequestsPerSecond: -1, Burst: 1}, false},
		{"above hft cap", Limits{RequestsPerSecond: 1001, Burst: 1}, false},
		{"at hft cap", Limits{RequestsPerSecond: 1000, Burst: 1}, true},
		{"zero burst", Limits{RequestsPerSecond: 10, Burst: 0}, false},
		{"bad class", Limits{RequestsPerSecond: 10, Burst: 1, Classes: map[string]ClassLimit{"order": {RequestsPerSecond: 0}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("mexc_spot", tc.cfg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAcquireWithinBurst(t *testing.T) {
	l, err := New("gate_spot", Limits{RequestsPerSecond: 100, Burst: 10})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(context.Background(), "market"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireBlocksAtClassLimit(t *testing.T) {
	l, err := New("gate_spot", Limits{
		RequestsPerSecond: 100,
		Burst:             100,
		Classes:           map[string]ClassLimit{"order": {RequestsPerSecond: 10, Burst: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, l.Acquire(context.Background(), "order"))

	// second permit must wait ~100ms on the class bucket
	start := time.Now()
	require.NoError(t, l.Acquire(context.Background(), "order"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireFailsFastOnDeadline(t *testing.T) {
	l, err := New("mexc_spot", Limits{RequestsPerSecond: 0.5, Burst: 1})
	require.NoError(t, err)

	require.NoError(t, l.Acquire(context.Background(), "account"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = l.Acquire(ctx, "account")
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindRateLimit))
}

func TestReserveReportsDelayWithoutConsuming(t *testing.T) {
	l, err := New("mexc_spot", Limits{RequestsPerSecond: 1, Burst: 1})
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), l.Reserve("any"))
	require.NoError(t, l.Acquire(context.Background(), "any"))
	assert.Greater(t, l.Reserve("any"), time.Duration(0))
}

func TestReleaseIsNoOp(t *testing.T) {
	l, err := New("gate_futures_usdt", Limits{RequestsPerSecond: 10, Burst: 1})
	require.NoError(t, err)
	l.Release("order") // must not panic or affect state
	require.NoError(t, l.Acquire(context.Background(), "order"))
}
