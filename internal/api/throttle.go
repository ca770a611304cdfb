package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter paces outgoing calls.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// pathLimiter keeps one token bucket per endpoint path so a burst of scroll
// signals on one list cannot starve unrelated calls.
type pathLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewPathLimiter allows perSecond calls per path with the given burst. A
// non-positive rate disables throttling.
func NewPathLimiter(perSecond float64, burst int) Limiter {
	if perSecond <= 0 {
		return noLimit{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &pathLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     5 * time.Minute,
		now:     time.Now,
	}
}

func (l *pathLimiter) Wait(ctx context.Context, key string) error {
	if key == "" {
		key = "/"
	}

	now := l.now()

	l.mu.Lock()
	b := l.bucketLocked(key, now)
	l.gcLocked(now)
	l.mu.Unlock()

	return b.limiter.Wait(ctx)
}

func (l *pathLimiter) bucketLocked(key string, now time.Time) *bucket {
	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b
	}

	b := &bucket{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.buckets[key] = b
	return b
}

func (l *pathLimiter) gcLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
}

type noLimit struct{}

func (noLimit) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
