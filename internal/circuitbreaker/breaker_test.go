package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := New(Config{Threshold: 5, OpenDuration: 30 * time.Second})
	cb.now = func() time.Time { return *now }
	return cb
}

func TestOpensAfterThresholdFailures(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
		assert.Equal(t, StateClosed, cb.State())
	}

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Allow()
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr))
	assert.InDelta(t, 30, openErr.RetryAfter.Seconds(), 1)
}

func TestSuccessResetsCounterWhileClosed(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.Failures())

	// Four more failures should not open since the streak was broken.
	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenAfterWindowElapses(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, StateOpen, cb.State())

	// Still open just before expiry.
	now = now.Add(29 * time.Second)
	assert.Error(t, cb.Allow())

	// Past expiry the next evaluation enters half-open.
	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.Equal(t, 3, cb.Failures())
}

func TestHalfOpenClosesAfterTwoSuccesses(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	now = now.Add(31 * time.Second)
	require.NoError(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestHalfOpenFailureReopensImmediately(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	now = now.Add(31 * time.Second)
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.Error(t, cb.Allow())
}

func TestReset(t *testing.T) {
	now := time.Now()
	cb := newTestBreaker(&now)

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
	assert.Equal(t, 0, cb.Failures())
}

func TestDefaults(t *testing.T) {
	cb := New(Config{})
	assert.Equal(t, 5, cb.threshold)
	assert.Equal(t, 30*time.Second, cb.openDuration)
	assert.Equal(t, 2, cb.halfOpenSuccess)
}
