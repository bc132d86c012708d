package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRevisionKey_NamespacesByKindAndTenant(t *testing.T) {
	assert.Equal(t, "rev:search:u1:s1", revisionKey(KindSearch, "u1", "s1"))
	assert.NotEqual(t, revisionKey(KindSearch, "u1", "s1"), revisionKey(KindRAG, "u1", "s1"))
	assert.NotEqual(t, revisionKey(KindSearch, "u1", "s1"), revisionKey(KindSearch, "u2", "s1"))
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	b := newCircuitBreaker(3, time.Minute)
	assert.False(t, b.open())

	b.recordFailure()
	b.recordFailure()
	assert.False(t, b.open(), "should stay closed below threshold")

	b.recordFailure()
	assert.True(t, b.open(), "should open once failures reach threshold")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newCircuitBreaker(3, time.Minute)
	b.recordFailure()
	b.recordFailure()
	b.recordSuccess()
	b.recordFailure()
	b.recordFailure()
	assert.False(t, b.open(), "success should have reset the failure count")
}

func TestCircuitBreaker_ClosesAfterCooldownElapses(t *testing.T) {
	b := newCircuitBreaker(1, 10*time.Millisecond)
	b.recordFailure()
	assert.True(t, b.open())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, b.open(), "breaker should close and reset once cooldown passes")
	assert.Equal(t, 0, b.failures)
}
