package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter admits at most a fixed number of requests per client within
// any one-minute window.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	now       func() time.Time

	// request times within the last minute, oldest first
	clients map[string][]time.Time
}

// NewRateLimiter creates a limiter; perMinute <= 0 admits everything.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		now:       time.Now,
		clients:   make(map[string][]time.Time),
	}
}

// Allow records a request from clientID or reports why it was refused.
func (rl *RateLimiter) Allow(clientID string) error {
	if rl.perMinute <= 0 {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := prune(rl.clients[clientID], now)
	if len(recent) >= rl.perMinute {
		rl.clients[clientID] = recent
		return &RateLimitError{
			Limit:      rl.perMinute,
			RetryAfter: recent[0].Add(time.Minute).Sub(now),
		}
	}
	rl.clients[clientID] = append(recent, now)
	return nil
}

// Sweep forgets clients without requests in the last minute.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for id, times := range rl.clients {
		if recent := prune(times, now); len(recent) == 0 {
			delete(rl.clients, id)
		} else {
			rl.clients[id] = recent
		}
	}
}

// Usage returns the number of requests clientID made in the last minute.
func (rl *RateLimiter) Usage(clientID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(prune(rl.clients[clientID], rl.now()))
}

func prune(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int           // requests per minute
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d/min, retry after: %v)", e.Limit, e.RetryAfter.Round(time.Second))
}
