// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package override

import (
	"context"
	"time"
)

// Repository defines the interface for rate override persistence.
type Repository interface {
	Create(ctx context.Context, o *RateOverride) error
	Get(ctx context.Context, id string) (*RateOverride, error)
	Update(ctx context.Context, o *RateOverride) error
	Cancel(ctx context.Context, id string) error
	List(ctx context.Context, adapterID string) ([]RateOverride, error)

	// ActiveForAdapter returns the override active for the adapter at the
	// given instant, or ErrNotFound when none applies.
	ActiveForAdapter(ctx context.Context, adapterID string, at time.Time) (*RateOverride, error)
}
