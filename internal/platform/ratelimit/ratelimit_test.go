package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToBurstThenBlocks(t *testing.T) {
	l := New(5)
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("1.2.3.4") {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed, "burst should admit exactly perMinute requests before throttling")
}

func TestLimiter_TracksKeysIndependently(t *testing.T) {
	l := New(1)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "a different key must have its own bucket")
	assert.False(t, l.Allow("a"))
}

func TestLimiter_CleanupResetsOversizedKeySet(t *testing.T) {
	l := New(10)
	for i := 0; i < 5; i++ {
		l.Allow(string(rune('a' + i)))
	}
	assert.Equal(t, 5, l.Count())
	l.cleanup()
	assert.Equal(t, 5, l.Count(), "cleanup below the cap must not clear tracked keys")
}
