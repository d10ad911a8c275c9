package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailit/tracking-gateway/internal/models"
)

func testTenant(plan models.UsagePlan) *models.Tenant {
	return &models.Tenant{ID: uuid.New(), Name: "acme", Plan: plan, IsActive: true}
}

func newTestLimiter(now *time.Time) *Limiter {
	l := NewLimiter()
	l.now = func() time.Time { return *now }
	return l
}

func TestQuotaConsumesOneTokenPerRequest(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanFree)

	assert.Equal(t, 100, l.Remaining(tenant))
	require.NoError(t, l.CheckQuota(tenant))
	assert.Equal(t, 99, l.Remaining(tenant))
}

func TestQuotaExhaustionReportsLimitAndReset(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanStarter)

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.CheckQuota(tenant))
	}

	err := l.CheckQuota(tenant)
	var quotaErr *QuotaError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, 1000, quotaErr.Limit)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), quotaErr.ResetAt)
	assert.Equal(t, 0, l.Remaining(tenant))
}

func TestQuotaRefillsAtUTCDayBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanFree)

	for i := 0; i < 100; i++ {
		require.NoError(t, l.CheckQuota(tenant))
	}
	require.Error(t, l.CheckQuota(tenant))

	now = time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)
	assert.NoError(t, l.CheckQuota(tenant))
	assert.Equal(t, 98, l.Remaining(tenant)) // one token consumed this window
}

func TestUnlimitedPlanBypassesBucket(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanEnterprise)

	for i := 0; i < 50000; i++ {
		require.NoError(t, l.CheckQuota(tenant))
	}
	assert.Equal(t, -1, l.Remaining(tenant))
}

func TestBatchSizeCheckDoesNotConsumeQuota(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanFree)

	err := l.CheckBatchSize(tenant, 41)
	var batchErr *BatchSizeError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 10, batchErr.Max)

	assert.Equal(t, 100, l.Remaining(tenant))
}

func TestBatchSizeWithinLimit(t *testing.T) {
	l := NewLimiter()
	assert.NoError(t, l.CheckBatchSize(testTenant(models.PlanFree), 10))
	assert.NoError(t, l.CheckBatchSize(testTenant(models.PlanPro), 40))
	assert.Error(t, l.CheckBatchSize(testTenant(models.PlanPro), 41))
}

func TestResetDropsBucket(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanFree)

	for i := 0; i < 100; i++ {
		require.NoError(t, l.CheckQuota(tenant))
	}
	require.Error(t, l.CheckQuota(tenant))

	l.Reset(tenant.ID)
	assert.NoError(t, l.CheckQuota(tenant))
}

func TestPlanChangeRebuildsBucket(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanFree)

	require.NoError(t, l.CheckQuota(tenant))

	tenant.Plan = models.PlanStarter
	assert.Equal(t, 1000, l.Remaining(tenant))
}

func TestConcurrentConsumptionNeverOverspends(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	tenant := testTenant(models.PlanFree)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckQuota(tenant) == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 0, l.Remaining(tenant))
}
