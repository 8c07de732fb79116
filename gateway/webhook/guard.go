// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package webhook

import (
	"context"
	"errors"
	"net/url"
)

var (
	// ErrBlocked indicates the source is inside a lockout window. Rejected
	// before any signature work.
	ErrBlocked = errors.New("webhook source blocked")

	// ErrInvalidSignature indicates the callback signature did not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Guard combines signature verification with the penalty store. A nil
// penalty store disables lockout tracking and leaves pure signature
// checking.
type Guard struct {
	authToken string
	penalties *PenaltyStore
}

// NewGuard creates a guard for one signing secret.
func NewGuard(authToken string, penalties *PenaltyStore) *Guard {
	return &Guard{authToken: authToken, penalties: penalties}
}

// Verify authenticates one inbound callback. Blocked sources are rejected
// immediately. A bad signature feeds the penalty store and returns
// ErrInvalidSignature; a lockout that begins as a result applies to
// subsequent requests, including ones with correct signatures, until the
// window elapses.
func (g *Guard) Verify(ctx context.Context, sourceIP, source, callbackURL string, params url.Values, signature string) error {
	if g.penalties != nil && g.penalties.Blocked(ctx, sourceIP, source) {
		return ErrBlocked
	}

	if ValidSignature(g.authToken, callbackURL, params, signature) {
		return nil
	}

	if g.penalties != nil {
		// Best effort: a store failure must not mask the auth failure.
		_ = g.penalties.RecordFailure(ctx, sourceIP, source)
	}
	return ErrInvalidSignature
}
