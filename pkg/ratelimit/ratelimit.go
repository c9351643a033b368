// Package ratelimit throttles recommendation requests per client with an
// in-memory token bucket.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	seen   time.Time
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the next token, zero when Allowed.
	RetryAfter time.Duration
}

// Limiter gives every key a bucket of limit tokens that refills evenly
// over window.
type Limiter struct {
	limit  int
	window time.Duration
	rate   float64 // tokens per second
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if limit > 0 && window > 0 {
		l.rate = float64(limit) / window.Seconds()
	}
	return l
}

// Take spends one token from key's bucket if one is available.
func (l *Limiter) Take(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.limit), seen: now}
		l.buckets[key] = b
	} else {
		b.tokens = math.Min(float64(l.limit), b.tokens+now.Sub(b.seen).Seconds()*l.rate)
		b.seen = now
	}

	d := Decision{Limit: l.limit}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
		d.Remaining = int(b.tokens)
		return d
	}
	d.RetryAfter = l.window
	if l.rate > 0 {
		ms := math.Ceil((1 - b.tokens) / l.rate * 1000)
		d.RetryAfter = time.Duration(ms) * time.Millisecond
	}
	return d
}

// Allow reports whether key may make another request now.
func (l *Limiter) Allow(key string) bool {
	return l.Take(key).Allowed
}

// RetryAfter is the refill time of a single token.
func (l *Limiter) RetryAfter() time.Duration {
	if l.rate == 0 {
		return l.window
	}
	return time.Duration(float64(time.Second) / l.rate)
}

// Len returns the number of clients being tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RunCleanup forgets clients idle for two windows, every interval, until
// ctx ends. A forgotten client starts again with a full bucket, which is
// what it would have refilled to anyway.
func (l *Limiter) RunCleanup(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := l.now().Add(-2 * l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
