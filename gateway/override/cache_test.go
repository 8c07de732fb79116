// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package override

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheMissThenHit(t *testing.T) {
	c := NewCache(time.Minute)

	_, ok := c.Get("replicate")
	assert.False(t, ok)

	o := &RateOverride{ID: "ov-1", AdapterID: "replicate", DiscountPercent: 10}
	c.Put("replicate", o)

	got, ok := c.Get("replicate")
	assert.True(t, ok)
	assert.Equal(t, o, got)
}

func TestCacheNegativeResult(t *testing.T) {
	c := NewCache(time.Minute)

	c.Put("twilio", nil)

	got, ok := c.Get("twilio")
	assert.True(t, ok, "negative result should be cached")
	assert.Nil(t, got)
}

func TestCacheLazyTTLExpiry(t *testing.T) {
	c := NewCache(30 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("elevenlabs", &RateOverride{ID: "ov-2", AdapterID: "elevenlabs", DiscountPercent: 5})

	_, ok := c.Get("elevenlabs")
	assert.True(t, ok)

	// Advance past the TTL; the entry expires at read time.
	now = now.Add(31 * time.Second)
	_, ok = c.Get("elevenlabs")
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("openrouter", &RateOverride{ID: "ov-3", AdapterID: "openrouter", DiscountPercent: 15})

	c.Invalidate("openrouter")

	_, ok := c.Get("openrouter")
	assert.False(t, ok)
}

func TestCacheDefaultTTL(t *testing.T) {
	c := NewCache(0)
	assert.Equal(t, DefaultCacheTTL, c.ttl)
}
