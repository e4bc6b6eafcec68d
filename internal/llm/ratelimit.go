package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimiter caps requests inside a sliding time window. Before each
// call it purges timestamps that fell out of the window; when at
// capacity it sleeps until the oldest entry expires.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests []time.Time
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Wait blocks until a request slot is available or the context ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.purge(now)

		if len(r.requests) < r.limit {
			r.requests = append(r.requests, now)
			r.mu.Unlock()
			return nil
		}

		wait := r.requests[0].Add(r.window).Sub(now)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Pending returns how many requests currently occupy the window.
func (r *RateLimiter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purge(r.now())
	return len(r.requests)
}

func (r *RateLimiter) purge(now time.Time) {
	cutoff := now.Add(-r.window)
	idx := 0
	for idx < len(r.requests) && !r.requests[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		r.requests = r.requests[idx:]
	}
}
