package main

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter hands each client address its own token bucket
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter returns nil when rps is zero; a nil limiter allows everything
func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	return &rateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether addr (host or host:port) may proceed
func (rl *rateLimiter) Allow(addr string) bool {
	if rl == nil {
		return true
	}
	host := hostOnly(addr)

	rl.mu.Lock()
	c, ok := rl.clients[host]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[host] = c
	}
	now := rl.now()
	c.lastSeen = now
	rl.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// sweep forgets clients idle for longer than idle
func (rl *rateLimiter) sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	removed := 0
	for host, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, host)
			removed++
		}
	}
	return removed
}

// run sweeps idle clients until ctx is done
func (rl *rateLimiter) run(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.sweep(3 * time.Minute)
		}
	}
}
