// Package ratelimit provides a per-key token-bucket limiter, used both for
// the HTTP API's request throttling and the WebSocket broadcaster's
// handshake throttling (spec §4.9 "N handshakes per IP per minute").
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks one token bucket per key (typically a client IP), creating
// new buckets lazily so an idle deployment never pre-allocates for clients
// that never connect.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// New builds a Limiter allowing perMinute events per key, refilled
// continuously, with a burst capacity equal to perMinute itself.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
	}
}

// Allow reports whether key may proceed now, consuming one token if so.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Count returns the number of distinct keys currently tracked.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// StartCleanup periodically resets the tracked key set once it grows
// unbounded, mirroring the teacher's "simple implementation" cleanup
// strategy rather than per-key last-access tracking. Returns a stop func.
func (l *Limiter) StartCleanup(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.limiters) > 10000 {
		l.limiters = make(map[string]*rate.Limiter)
	}
}
