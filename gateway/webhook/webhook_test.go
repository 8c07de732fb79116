// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package webhook

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken = "twilio-auth-token"
	testURL   = "https://gateway.example.com/v1/phone/outbound/status/tenant-1"
)

func testParams() url.Values {
	return url.Values{
		"CallSid":      {"CA123"},
		"CallStatus":   {"completed"},
		"CallDuration": {"125"},
	}
}

func testStore(t *testing.T, cfg PenaltyConfig) (*PenaltyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPenaltyStore(client, cfg, nil), mr
}

func TestValidSignatureRoundTrip(t *testing.T) {
	params := testParams()
	sig := ComputeSignature(testToken, testURL, params)
	assert.True(t, ValidSignature(testToken, testURL, params, sig))
}

func TestSignatureRejectsMutatedParams(t *testing.T) {
	params := testParams()
	sig := ComputeSignature(testToken, testURL, params)

	mutated := testParams()
	mutated.Set("CallDuration", "126")
	assert.False(t, ValidSignature(testToken, testURL, mutated, sig))
}

func TestSignatureRejectsWrongURL(t *testing.T) {
	params := testParams()
	sig := ComputeSignature(testToken, testURL, params)
	assert.False(t, ValidSignature(testToken, testURL+"x", params, sig))
}

func TestSignatureRejectsWrongToken(t *testing.T) {
	params := testParams()
	sig := ComputeSignature("other-token", testURL, params)
	assert.False(t, ValidSignature(testToken, testURL, params, sig))
}

func TestPenaltyStoreThresholdLockout(t *testing.T) {
	store, _ := testStore(t, PenaltyConfig{FailureThreshold: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.RecordFailure(ctx, "1.2.3.4", "call-status"))
		assert.False(t, store.Blocked(ctx, "1.2.3.4", "call-status"))
	}

	require.NoError(t, store.RecordFailure(ctx, "1.2.3.4", "call-status"))
	assert.True(t, store.Blocked(ctx, "1.2.3.4", "call-status"))
}

func TestPenaltyStoreKeysAreIndependent(t *testing.T) {
	store, _ := testStore(t, PenaltyConfig{FailureThreshold: 1})
	ctx := context.Background()

	require.NoError(t, store.RecordFailure(ctx, "1.2.3.4", "call-status"))
	assert.True(t, store.Blocked(ctx, "1.2.3.4", "call-status"))
	assert.False(t, store.Blocked(ctx, "5.6.7.8", "call-status"))
	assert.False(t, store.Blocked(ctx, "1.2.3.4", "sms-status"))
}

func TestPenaltyStoreLockoutExpires(t *testing.T) {
	store, mr := testStore(t, PenaltyConfig{
		FailureThreshold: 1,
		LockoutWindow:    time.Minute,
	})
	ctx := context.Background()

	require.NoError(t, store.RecordFailure(ctx, "1.2.3.4", "call-status"))
	assert.True(t, store.Blocked(ctx, "1.2.3.4", "call-status"))

	mr.FastForward(time.Minute + time.Second)
	assert.False(t, store.Blocked(ctx, "1.2.3.4", "call-status"))
}

func TestGuardAcceptsValidSignature(t *testing.T) {
	store, _ := testStore(t, PenaltyConfig{})
	guard := NewGuard(testToken, store)

	params := testParams()
	sig := ComputeSignature(testToken, testURL, params)
	assert.NoError(t, guard.Verify(context.Background(), "1.2.3.4", "call-status", testURL, params, sig))
}

func TestGuardLockoutRejectsEvenCorrectSignature(t *testing.T) {
	store, mr := testStore(t, PenaltyConfig{
		FailureThreshold: 3,
		LockoutWindow:    time.Minute,
	})
	guard := NewGuard(testToken, store)
	ctx := context.Background()

	params := testParams()
	for i := 0; i < 3; i++ {
		err := guard.Verify(ctx, "1.2.3.4", "call-status", testURL, params, "forged")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	}

	// Locked out now: even the real signature is rejected.
	sig := ComputeSignature(testToken, testURL, params)
	err := guard.Verify(ctx, "1.2.3.4", "call-status", testURL, params, sig)
	assert.ErrorIs(t, err, ErrBlocked)

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, guard.Verify(ctx, "1.2.3.4", "call-status", testURL, params, sig))
}

func TestGuardNilPenaltyStore(t *testing.T) {
	guard := NewGuard(testToken, nil)
	params := testParams()

	err := guard.Verify(context.Background(), "1.2.3.4", "call-status", testURL, params, "forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
