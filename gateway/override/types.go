// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package override manages time-boxed adapter rate overrides: discounts
// layered on top of the static margin config for a specific adapter. Active
// lookups go through a short-TTL per-adapter cache that is invalidated
// explicitly on every mutation, so policy changes take effect without waiting
// out the TTL.
package override

import (
	"time"

	"botfleet/platform/gateway/credit"
)

// Status represents the lifecycle state of a rate override.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// RateOverride is a time-boxed discount for a specific adapter.
// A nil EndsAt means the override is open-ended.
type RateOverride struct {
	ID              string     `json:"id"`
	AdapterID       string     `json:"adapter_id"`
	DiscountPercent int        `json:"discount_percent"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	Status          Status     `json:"status"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ActiveAt reports whether the override applies at the given instant.
// Activity is derived, not stored: the override must have active status and
// the instant must fall in [StartsAt, EndsAt).
func (o *RateOverride) ActiveAt(t time.Time) bool {
	if o.Status != StatusActive {
		return false
	}
	if t.Before(o.StartsAt) {
		return false
	}
	if o.EndsAt != nil && !t.Before(*o.EndsAt) {
		return false
	}
	return true
}

// Multiplier returns the charge multiplier implied by the discount.
func (o *RateOverride) Multiplier() credit.Ratio {
	return credit.Percent(o.DiscountPercent)
}

// Validate checks the override configuration.
func (o *RateOverride) Validate() error {
	if o.ID == "" {
		return ErrInvalidID
	}
	if o.AdapterID == "" {
		return ErrInvalidAdapterID
	}
	if o.DiscountPercent <= 0 || o.DiscountPercent > 100 {
		return ErrInvalidDiscount
	}
	if o.StartsAt.IsZero() {
		return ErrInvalidWindow
	}
	if o.EndsAt != nil && !o.EndsAt.After(o.StartsAt) {
		return ErrInvalidWindow
	}
	return nil
}
