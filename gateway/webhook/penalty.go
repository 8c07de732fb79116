// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"botfleet/platform/shared/logger"
)

const (
	// DefaultFailureThreshold is the number of bad signatures from one
	// (ip, source) key before a lockout begins.
	DefaultFailureThreshold = 5

	// DefaultLockoutWindow is how long a locked-out key stays rejected.
	DefaultLockoutWindow = 15 * time.Minute

	// DefaultCounterWindow is how long failure counts persist before the
	// key returns to a clean state.
	DefaultCounterWindow = 15 * time.Minute
)

// PenaltyStore tracks signature failures per (sourceIP, source) key in
// Redis. Concurrent failures from the same key may race on the increment;
// the worst case is an off-by-a-few threshold crossing since the blocking
// check still runs on every request.
type PenaltyStore struct {
	client    *redis.Client
	threshold int
	lockout   time.Duration
	window    time.Duration
	log       *logger.Logger
}

// PenaltyConfig configures the penalty store. Zero values fall back to the
// package defaults.
type PenaltyConfig struct {
	FailureThreshold int
	LockoutWindow    time.Duration
	CounterWindow    time.Duration
}

// NewPenaltyStore creates a penalty store over an existing Redis client.
func NewPenaltyStore(client *redis.Client, cfg PenaltyConfig, log *logger.Logger) *PenaltyStore {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = DefaultLockoutWindow
	}
	if cfg.CounterWindow <= 0 {
		cfg.CounterWindow = DefaultCounterWindow
	}
	if log == nil {
		log = logger.New("webhook-penalty")
	}
	return &PenaltyStore{
		client:    client,
		threshold: cfg.FailureThreshold,
		lockout:   cfg.LockoutWindow,
		window:    cfg.CounterWindow,
		log:       log,
	}
}

func failureKey(sourceIP, source string) string {
	return fmt.Sprintf("sigpenalty:fail:%s:%s", sourceIP, source)
}

func blockKey(sourceIP, source string) string {
	return fmt.Sprintf("sigpenalty:block:%s:%s", sourceIP, source)
}

// Blocked reports whether the key is currently locked out. This is the
// cheap rejection path: no signature work happens for a blocked key. On
// Redis failure it fails open so an outage does not drop legitimate
// provider callbacks.
func (s *PenaltyStore) Blocked(ctx context.Context, sourceIP, source string) bool {
	n, err := s.client.Exists(ctx, blockKey(sourceIP, source)).Result()
	if err != nil {
		s.log.Warn("", "", "Penalty store unavailable, failing open", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return n > 0
}

// RecordFailure increments the key's failure count and, when the threshold
// is crossed, starts a lockout window and resets the counter.
func (s *PenaltyStore) RecordFailure(ctx context.Context, sourceIP, source string) error {
	key := failureKey(sourceIP, source)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record signature failure: %w", err)
	}

	failures := incr.Val()
	if failures < int64(s.threshold) {
		s.log.Debug("", "", "Webhook signature failure recorded", map[string]interface{}{
			"source_ip": sourceIP,
			"source":    source,
			"failures":  failures,
		})
		return nil
	}

	pipe = s.client.Pipeline()
	pipe.Set(ctx, blockKey(sourceIP, source), failures, s.lockout)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to start lockout: %w", err)
	}

	s.log.Warn("", "", "Webhook source locked out", map[string]interface{}{
		"source_ip": sourceIP,
		"source":    source,
		"failures":  failures,
		"window":    s.lockout.String(),
	})
	return nil
}
