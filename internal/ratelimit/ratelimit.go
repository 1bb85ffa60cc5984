// Package ratelimit paces calls to external collaborators using golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket sized from a per-minute budget.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute with a burst of a tenth of it.
// A non-positive budget yields an unlimited limiter.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)}
}

// NewWithBurst creates a limiter with an explicit per-second rate and burst.
func NewWithBurst(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may happen now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Keyed hands out one Limiter per key, e.g. per venue or per chain RPC.
type Keyed struct {
	mu                sync.Mutex
	requestsPerMinute int
	limiters          map[string]*Limiter
}

// NewKeyed creates a Keyed limiter where each key gets requestsPerMinute.
func NewKeyed(requestsPerMinute int) *Keyed {
	return &Keyed{requestsPerMinute: requestsPerMinute, limiters: make(map[string]*Limiter)}
}

// For returns the limiter for key, creating it on first use.
func (k *Keyed) For(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = New(k.requestsPerMinute)
		k.limiters[key] = l
	}
	return l
}

// Wait blocks on key's limiter.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.For(key).Wait(ctx)
}
