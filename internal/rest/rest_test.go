package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossarb/internal/exchange"
	"crossarb/internal/ratelimit"
)

// stubAuth stamps a fresh nanosecond timestamp on every attempt and records
// refresh calls.
type stubAuth struct {
	stamps    []int64
	refreshed atomic.Int32
}

func (a *stubAuth) Sign(method, path string, query url.Values, body []byte, header http.Header) (url.Values, error) {
	ts := time.Now().UnixNano()
	a.stamps = append(a.stamps, ts)
	query.Set("timestamp", strconv.FormatInt(ts, 10))
	header.Set("X-TEST-KEY", "k")
	return query, nil
}

func (a *stubAuth) RefreshTimestamp() { a.refreshed.Add(1) }

// statusClassifier classifies purely on HTTP status.
type statusClassifier struct{}

func (statusClassifier) Classify(status int, body []byte) *exchange.Error {
	return &exchange.Error{Kind: exchange.KindFromHTTPStatus(status), HTTPStatus: status, Message: string(body)}
}

// expiredOnceClassifier returns requestExpired on the first classification.
type expiredOnceClassifier struct{ calls atomic.Int32 }

func (c *expiredOnceClassifier) Classify(status int, body []byte) *exchange.Error {
	if c.calls.Add(1) == 1 {
		return &exchange.Error{Kind: exchange.KindRequestExpired, HTTPStatus: status}
	}
	return &exchange.Error{Kind: exchange.KindFromHTTPStatus(status), HTTPStatus: status}
}

func newLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.New("test", ratelimit.Limits{RequestsPerSecond: 1000, Burst: 100})
	require.NoError(t, err)
	return l
}

func newClient(t *testing.T, baseURL string, auth Authenticator, classifier ErrorClassifier) *Client {
	t.Helper()
	return New(Config{
		Venue:          "test",
		BaseURL:        baseURL,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  10 * time.Millisecond,
		DisableBreaker: true,
	}, newLimiter(t), auth, classifier)
}

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, NoAuth{}, statusClassifier{})
	body, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/api/v3/ping"})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(body))
	assert.Equal(t, uint64(1), c.LatencyWindow().Count())
}

func TestRetryOnServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, NoAuth{}, statusClassifier{})
	body, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestTerminalErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, NoAuth{}, statusClassifier{})
	_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindInvalidParameter))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryExhaustionSurfacesLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, NoAuth{}, statusClassifier{})
	_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindServiceUnavailable))
}

func TestFreshTimestampPerAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	auth := &stubAuth{}
	c := newClient(t, srv.URL, auth, statusClassifier{})
	_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x", Auth: true})
	require.NoError(t, err)

	// every attempt signed with its own, strictly increasing timestamp
	require.Len(t, auth.stamps, 3)
	assert.Less(t, auth.stamps[0], auth.stamps[1])
	assert.Less(t, auth.stamps[1], auth.stamps[2])
}

func TestRequestExpiredTriggersTimestampRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	auth := &stubAuth{}
	c := newClient(t, srv.URL, auth, &expiredOnceClassifier{})
	body, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x", Auth: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(1), auth.refreshed.Load())
}

func TestRateLimitHonoursRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	var gap time.Duration
	var last time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if calls.Add(1) == 1 {
			last = now
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		gap = now.Sub(last)
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, NoAuth{}, statusClassifier{})
	_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	// server-supplied one second beats the millisecond backoff
	assert.GreaterOrEqual(t, gap, 900*time.Millisecond)
}

func TestConnectionErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := newClient(t, srv.URL, NoAuth{}, statusClassifier{})
	_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindConnectionError))
}

func TestBackoffGrowthAndCap(t *testing.T) {
	base, max := 100*time.Millisecond, 500*time.Millisecond
	assert.Equal(t, 100*time.Millisecond, backoff(base, max, 1))
	assert.Equal(t, 200*time.Millisecond, backoff(base, max, 2))
	assert.Equal(t, 400*time.Millisecond, backoff(base, max, 3))
	assert.Equal(t, 500*time.Millisecond, backoff(base, max, 4))
	assert.Equal(t, 500*time.Millisecond, backoff(base, max, 10))
}

func TestOpenBreakerFailsFastBeforeRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	limiter, err := ratelimit.New("breaker_test", ratelimit.Limits{RequestsPerSecond: 1, Burst: 5})
	require.NoError(t, err)
	c := New(Config{
		Venue:       "breaker_test",
		BaseURL:     srv.URL,
		MaxAttempts: 1,
	}, limiter, NoAuth{}, statusClassifier{})

	// five consecutive 5xx responses trip the breaker and drain the burst
	for i := 0; i < 5; i++ {
		_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
		require.Error(t, err)
	}
	require.Equal(t, int32(5), calls.Load())

	// with the bucket empty an acquired permit would block about a second;
	// the open breaker must answer before the limiter is consulted
	start := time.Now()
	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindConnectionError))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, int32(5), calls.Load())
}

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := New(Config{
		Venue:          "test",
		BaseURL:        srv.URL,
		MaxConcurrent:  2,
		DisableBreaker: true,
	}, newLimiter(t), NoAuth{}, statusClassifier{})

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
