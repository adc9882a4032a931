package http

import (
	"sync"
	"time"
)

// rateLimiter is a fixed one-minute window counter per connection.
type rateLimiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	start   time.Time
	counter int
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{limit: limit, now: time.Now}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.start) >= time.Minute {
		r.start = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
