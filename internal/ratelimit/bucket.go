package ratelimit

import (
	"sync"
	"time"
)

// bucket is one tenant's daily token bucket. It refills to full capacity
// at the UTC day boundary; each accepted request consumes one token.
type bucket struct {
	mu          sync.Mutex
	capacity    int
	tokens      int
	windowStart time.Time // start of the current UTC day
}

func newBucket(capacity int, now time.Time) *bucket {
	return &bucket{
		capacity:    capacity,
		tokens:      capacity,
		windowStart: startOfUTCDay(now),
	}
}

// take consumes one token, refilling first if the UTC day has rolled
// over. Tokens never go negative and never exceed capacity.
func (b *bucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (b *bucket) remaining(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	return b.tokens
}

func (b *bucket) refill(now time.Time) {
	if !now.Before(b.windowStart.AddDate(0, 0, 1)) {
		b.tokens = b.capacity
		b.windowStart = startOfUTCDay(now)
	}
}

func startOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nextUTCDay returns the start of the next UTC day, the instant every
// bucket refills and the reset_at value reported to rate-limited callers.
func nextUTCDay(t time.Time) time.Time {
	return startOfUTCDay(t).AddDate(0, 0, 1)
}
