// Package ratelimit spaces out navigations to the same host with per-host token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/webshot/internal/metrics"
)

const defaultIdleTTL = 10 * time.Minute

// Config holds rate limiter configuration.
type Config struct {
	// RPS is the sustained navigations per second allowed per host; <= 0 means unlimited.
	RPS   float64
	Burst int
	// IdleTTL is how long a host's bucket survives without use. It is raised to
	// the bucket's full refill time so eviction never hands out extra tokens.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter manages per-host rate limits. Buckets are shared by overlapping
// batches and dropped once idle past the TTL.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	if limit != rate.Inf {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); ttl < refill {
			ttl = refill
		}
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		idleTTL: ttl,
		now:     time.Now,
	}
}

// Wait blocks until target's host has a token available or ctx ends.
func (l *Limiter) Wait(ctx context.Context, target string) error {
	host := hostOf(target)
	now := l.now()

	l.mu.Lock()
	l.sweepLocked(now)
	b, ok := l.buckets[host]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[host] = b
	}
	b.lastUsed = now
	metrics.SetRateLimitHosts(len(l.buckets))
	l.mu.Unlock()

	start := time.Now()
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}

// sweepLocked drops idle buckets, at most once per TTL.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for host, b := range l.buckets {
		if now.Sub(b.lastUsed) >= l.idleTTL {
			delete(l.buckets, host)
		}
	}
}

// Hosts reports how many hosts currently have a bucket.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.ToLower(u.Host)
}
