package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mailit/tracking-gateway/internal/models"
)

// QuotaError reports a rejected request with the plan limit and the next
// reset instant so the caller can compute a wait time.
type QuotaError struct {
	Limit   int
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily quota of %d requests exceeded, resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// RetryAfter returns the seconds until the quota window resets.
func (e *QuotaError) RetryAfter(now time.Time) int {
	secs := int(e.ResetAt.Sub(now).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs
}

// BatchSizeError reports a batch request larger than the plan allows.
type BatchSizeError struct {
	Size int
	Max  int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("batch size %d exceeds plan limit of %d", e.Size, e.Max)
}

// Limiter enforces per-tenant admission policy: a daily token bucket
// sized to the tenant's plan plus a per-batch item ceiling.
//
// Buckets are created lazily on a tenant's first request and live in a
// map guarded by a single mutex; token consumption itself happens under
// each bucket's own lock so tenants never contend with each other.
type Limiter struct {
	mu      sync.Mutex
	buckets map[uuid.UUID]*bucket
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[uuid.UUID]*bucket),
		now:     time.Now,
	}
}

// CheckQuota consumes one token from the tenant's bucket. Tenants on an
// unlimited plan bypass the bucket entirely.
func (l *Limiter) CheckQuota(tenant *models.Tenant) error {
	if tenant.Plan.Unlimited() {
		return nil
	}

	now := l.now()
	if !l.bucketFor(tenant, now).take(now) {
		return &QuotaError{
			Limit:   tenant.Plan.RequestsPerDay(),
			ResetAt: nextUTCDay(now),
		}
	}

	return nil
}

// CheckBatchSize validates a batch item count against the tenant's plan
// ceiling. It consumes nothing and must run before CheckQuota on batch
// routes so an oversized batch never costs a token.
func (l *Limiter) CheckBatchSize(tenant *models.Tenant, size int) error {
	max := tenant.Plan.MaxBatchSize()
	if size > max {
		return &BatchSizeError{Size: size, Max: max}
	}
	return nil
}

// Remaining returns the tenant's remaining daily tokens, or -1 for
// unlimited plans.
func (l *Limiter) Remaining(tenant *models.Tenant) int {
	if tenant.Plan.Unlimited() {
		return -1
	}

	now := l.now()
	return l.bucketFor(tenant, now).remaining(now)
}

// ResetAt returns the instant the current quota window ends.
func (l *Limiter) ResetAt() time.Time {
	return nextUTCDay(l.now())
}

// Reset drops a tenant's bucket so the next request starts a fresh
// window at full capacity. Used by the admin plane.
func (l *Limiter) Reset(tenantID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, tenantID)
}

func (l *Limiter) bucketFor(tenant *models.Tenant, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenant.ID]
	if !ok || b.capacity != tenant.Plan.RequestsPerDay() {
		// Missing, or the tenant's plan changed since the bucket was made.
		b = newBucket(tenant.Plan.RequestsPerDay(), now)
		l.buckets[tenant.ID] = b
	}
	return b
}
