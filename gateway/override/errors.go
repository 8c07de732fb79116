// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package override

import "errors"

var (
	// ErrNotFound is returned when an override does not exist.
	ErrNotFound = errors.New("rate override not found")

	// ErrExists is returned when creating an override with a taken ID.
	ErrExists = errors.New("rate override already exists")

	// ErrInvalidID is returned for an empty override ID.
	ErrInvalidID = errors.New("invalid override ID")

	// ErrInvalidAdapterID is returned for an empty adapter ID.
	ErrInvalidAdapterID = errors.New("invalid adapter ID")

	// ErrInvalidDiscount is returned when the discount is outside (0, 100].
	ErrInvalidDiscount = errors.New("discount percent must be in (0, 100]")

	// ErrInvalidWindow is returned for a missing start or inverted window.
	ErrInvalidWindow = errors.New("invalid override window")
)
