// Package ratelimit provides per-venue request throttling: one token bucket
// per logical endpoint class plus a shared bucket capping the venue's global
// request rate. A permit is granted only when both buckets yield a token.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"crossarb/internal/exchange"
)

// maxRequestsPerSecond bounds venue configuration at construction time.
const maxRequestsPerSecond = 1000

// ClassLimit configures one endpoint class bucket.
type ClassLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// Limits configures a venue limiter.
type Limits struct {
	// Venue-wide cap applied on top of every class bucket.
	RequestsPerSecond float64
	Burst             int
	// Per endpoint class overrides; classes not listed share the venue bucket
	// only.
	Classes map[string]ClassLimit
}

// Limiter throttles outbound requests for a single venue.
type Limiter struct {
	venue   string
	global  *rate.Limiter
	mu      sync.RWMutex
	classes map[string]*rate.Limiter
}

// New validates the configuration and builds a venue limiter.
func New(venue string, cfg Limits) (*Limiter, error) {
	if cfg.RequestsPerSecond <= 0 || cfg.RequestsPerSecond > maxRequestsPerSecond {
		return nil, fmt.Errorf("ratelimit %s: requests per second must be in (0, %d], got %v",
			venue, maxRequestsPerSecond, cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		return nil, fmt.Errorf("ratelimit %s: burst must be >= 1, got %d", venue, cfg.Burst)
	}

	l := &Limiter{
		venue:   venue,
		global:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		classes: make(map[string]*rate.Limiter, len(cfg.Classes)),
	}
	for class, cl := range cfg.Classes {
		if cl.RequestsPerSecond <= 0 || cl.RequestsPerSecond > maxRequestsPerSecond {
			return nil, fmt.Errorf("ratelimit %s/%s: requests per second must be in (0, %d], got %v",
				venue, class, maxRequestsPerSecond, cl.RequestsPerSecond)
		}
		burst := cl.Burst
		if burst < 1 {
			burst = 1
		}
		l.classes[class] = rate.NewLimiter(rate.Limit(cl.RequestsPerSecond), burst)
	}
	return l, nil
}

// Acquire blocks until a permit is available for the endpoint class, or fails
// fast with a canonical rateLimit error when the wait would exceed the
// context deadline.
func (l *Limiter) Acquire(ctx context.Context, class string) error {
	if cl := l.classLimiter(class); cl != nil {
		if err := cl.Wait(ctx); err != nil {
			return rateLimitErr(l.venue, class, err)
		}
	}
	if err := l.global.Wait(ctx); err != nil {
		return rateLimitErr(l.venue, class, err)
	}
	return nil
}

// Release is a no-op under strict rate limiting; it exists for API symmetry
// with semaphore-style limiters.
func (l *Limiter) Release(class string) {}

// Reserve reports the delay until a permit would be available without
// consuming one, used by callers that want to fail fast before a deadline.
func (l *Limiter) Reserve(class string) time.Duration {
	var delay time.Duration
	if cl := l.classLimiter(class); cl != nil {
		r := cl.Reserve()
		delay = r.Delay()
		r.Cancel()
	}
	r := l.global.Reserve()
	if d := r.Delay(); d > delay {
		delay = d
	}
	r.Cancel()
	return delay
}

func (l *Limiter) classLimiter(class string) *rate.Limiter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classes[class]
}

func rateLimitErr(venue, class string, cause error) error {
	if cause == context.Canceled || cause == context.DeadlineExceeded {
		return exchange.NewError(exchange.KindRateLimit,
			fmt.Sprintf("%s/%s: rate limit wait aborted: %v", venue, class, cause))
	}
	return exchange.NewError(exchange.KindRateLimit,
		fmt.Sprintf("%s/%s: rate limit wait failed: %v", venue, class, cause))
}
