// Package rest implements the shared REST request pipeline used by every
// venue adapter: rate-limit permit, authentication, transport, error
// classification and retry. Venue behaviour is injected through the
// Authenticator and ErrorClassifier strategies; the pipeline itself is
// venue-agnostic.
package rest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"crossarb/internal/exchange"
	"crossarb/internal/metrics"
	"crossarb/internal/ratelimit"
)

// Authenticator assembles venue authentication for one outbound attempt. It
// is invoked after the rate-limit wait so the timestamp it signs is as fresh
// as possible, and again from scratch on every retry: timestamps are never
// reused across attempts.
type Authenticator interface {
	// Sign mutates header and returns the final query values (some venues
	// append the signature as a query parameter).
	Sign(method, path string, query url.Values, body []byte, header http.Header) (url.Values, error)
	// RefreshTimestamp is invoked once after a requestExpired error, before
	// the retry, to let the venue adapter adjust its clock offset.
	RefreshTimestamp()
}

// NoAuth is the authenticator for public endpoints.
type NoAuth struct{}

func (NoAuth) Sign(method, path string, query url.Values, body []byte, header http.Header) (url.Values, error) {
	return query, nil
}
func (NoAuth) RefreshTimestamp() {}

// ErrorClassifier maps a venue error envelope onto the canonical taxonomy.
// Implementations must fall back to pure HTTP-status classification when the
// body is not decodable JSON.
type ErrorClassifier interface {
	Classify(status int, body []byte) *exchange.Error
}

// Request describes one logical REST call.
type Request struct {
	Method string
	Path   string // full URL path, e.g. /api/v4/spot/orders
	Query  url.Values
	Body   []byte // pre-marshalled; Gate requires the signed bytes to match the sent bytes
	Auth   bool
	// Class selects the rate-limit endpoint class; empty uses the venue
	// bucket only.
	Class string
	// MaxAttempts overrides the client default when > 0.
	MaxAttempts int
}

// Config configures one venue transport.
type Config struct {
	Venue          string
	BaseURL        string
	ConnectTimeout time.Duration // default 2s
	ReadTimeout    time.Duration // default 5s
	MaxConcurrent  int           // default 10
	MaxAttempts    int           // default 3
	RetryBaseDelay time.Duration // default 200ms
	RetryMaxDelay  time.Duration // default 5s
	// DisableBreaker turns the per-venue circuit breaker off (tests).
	DisableBreaker bool
}

func (c *Config) defaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 2 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
}

// Client is a per-venue REST transport with a persistent keep-alive
// connection pool and a concurrency semaphore of the same size.
type Client struct {
	cfg      Config
	http     *http.Client
	sem      chan struct{}
	limiter  *ratelimit.Limiter
	auth     Authenticator
	classify ErrorClassifier
	breaker  *gobreaker.CircuitBreaker
	window   *metrics.LatencyWindow
}

// New builds the transport. limiter may not be nil; auth may be NoAuth for
// public-only clients.
func New(cfg Config, limiter *ratelimit.Limiter, auth Authenticator, classifier ErrorClassifier) *Client {
	cfg.defaults()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxConcurrent,
		MaxIdleConnsPerHost: cfg.MaxConcurrent,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		limiter:  limiter,
		auth:     auth,
		classify: classifier,
		window:   metrics.NewLatencyWindow(4096),
	}

	if !cfg.DisableBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Venue,
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				open := 0.0
				if to == gobreaker.StateOpen {
					open = 1.0
				}
				metrics.BreakerState.WithLabelValues(name).Set(open)
				log.Warn().Str("venue", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("Circuit breaker state change")
			},
		})
	}

	return c
}

// LatencyWindow exposes the rolling latency window for this venue.
func (c *Client) LatencyWindow() *metrics.LatencyWindow { return c.window }

// Do runs the full pipeline and returns the raw response body. Retries stay
// inside the pipeline; callers only ever see the final outcome.
func (c *Client) Do(ctx context.Context, req *Request) ([]byte, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.cfg.MaxAttempts
	}

	correlationID := uuid.NewString()

	var lastErr *exchange.Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, cerr := c.attempt(ctx, req, correlationID)
		if cerr == nil {
			return body, nil
		}
		lastErr = cerr

		if !cerr.Retryable() || attempt == maxAttempts {
			break
		}
		metrics.RESTRetries.WithLabelValues(c.cfg.Venue, string(cerr.Kind)).Inc()

		if cerr.Kind == exchange.KindRequestExpired {
			c.auth.RefreshTimestamp()
		}

		delay := backoff(c.cfg.RetryBaseDelay, c.cfg.RetryMaxDelay, attempt)
		if cerr.Kind == exchange.KindRateLimit && cerr.RetryAfter > delay {
			delay = cerr.RetryAfter
		}

		select {
		case <-ctx.Done():
			return nil, exchange.NewError(exchange.KindTimeout, "request aborted: "+ctx.Err().Error())
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// attempt runs one pipeline pass: permit, semaphore, sign, send, classify.
// Each attempt re-signs with a fresh timestamp.
func (c *Client) attempt(ctx context.Context, req *Request, correlationID string) ([]byte, *exchange.Error) {
	// An open breaker fails fast before the permit so rate-limit tokens are
	// not spent on requests that never reach the wire.
	if c.breaker != nil && c.breaker.State() == gobreaker.StateOpen {
		return nil, transportError(gobreaker.ErrOpenState)
	}

	if err := c.limiter.Acquire(ctx, req.Class); err != nil {
		metrics.RESTRequests.WithLabelValues(c.cfg.Venue, req.Path, "rate_limited").Inc()
		if e, ok := exchange.AsError(err); ok {
			return nil, e
		}
		return nil, exchange.NewError(exchange.KindRateLimit, err.Error())
	}
	defer c.limiter.Release(req.Class)

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, exchange.NewError(exchange.KindTimeout, "semaphore wait aborted: "+ctx.Err().Error())
	}
	defer func() { <-c.sem }()

	// Authentication is deferred until after the rate-limit wait so the
	// signed timestamp is as fresh as possible.
	header := http.Header{}
	query := cloneValues(req.Query)
	if req.Auth {
		var err error
		query, err = c.auth.Sign(req.Method, req.Path, query, req.Body, header)
		if err != nil {
			return nil, exchange.NewError(exchange.KindInvalidCredentials, "signing failed: "+err.Error())
		}
	}

	u := c.cfg.BaseURL + req.Path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
	if err != nil {
		return nil, exchange.NewError(exchange.KindInvalidParameter, "building request: "+err.Error())
	}
	if len(req.Body) > 0 && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.execute(httpReq)
	latency := time.Since(start)

	if err != nil {
		cerr := transportError(err)
		c.observe(req, correlationID, 0, cerr, latency)
		return nil, cerr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		cerr := transportError(err)
		c.observe(req, correlationID, resp.StatusCode, cerr, latency)
		return nil, cerr
	}

	if resp.StatusCode >= 400 {
		cerr := c.classify.Classify(resp.StatusCode, respBody)
		if cerr.RetryAfter == 0 {
			cerr.RetryAfter = retryAfterHeader(resp)
		}
		c.observe(req, correlationID, resp.StatusCode, cerr, latency)
		return nil, cerr
	}

	c.observe(req, correlationID, resp.StatusCode, nil, latency)
	return respBody, nil
}

func (c *Client) execute(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.http.Do(req)
	}
	resp, err := c.breaker.Execute(func() (interface{}, error) {
		r, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		// 5xx counts as a breaker failure; 4xx is the venue talking to us.
		if r.StatusCode >= 500 {
			return r, errStatus5xx
		}
		return r, nil
	})
	if err != nil && err != errStatus5xx {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, err
		}
		return nil, err
	}
	return resp.(*http.Response), nil
}

var errStatus5xx = errors.New("upstream 5xx")

func (c *Client) observe(req *Request, correlationID string, status int, cerr *exchange.Error, latency time.Duration) {
	c.window.Record(latency)

	outcome := "success"
	if cerr != nil {
		outcome = "failure"
		if cerr.Kind == exchange.KindRateLimit {
			outcome = "rate_limited"
		}
	}
	metrics.RecordRequest(c.cfg.Venue, req.Path, outcome, latency)

	if cerr != nil {
		log.Warn().
			Str("correlation_id", correlationID).
			Str("venue", c.cfg.Venue).
			Str("endpoint", req.Path).
			Str("method", req.Method).
			Int("status", status).
			Str("venue_code", cerr.VenueCode).
			Str("kind", string(cerr.Kind)).
			Dur("latency", latency).
			Msg("REST request failed")
	}
}

// transportError maps socket-level failures to retryable canonical kinds.
func transportError(err error) *exchange.Error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return exchange.NewError(exchange.KindConnectionError, "circuit breaker open: "+err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return exchange.NewError(exchange.KindTimeout, err.Error())
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return exchange.NewError(exchange.KindTimeout, err.Error())
	}
	return exchange.NewError(exchange.KindConnectionError, err.Error())
}

// backoff is exponential base·2^(attempt−1) capped at max.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func retryAfterHeader(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil {
		return secs
	}
	return 0
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		for _, s := range vs {
			out.Add(k, s)
		}
	}
	return out
}
