// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package budget

import "errors"

var (
	// ErrBudgetExceeded indicates a tenant spend limit would be breached.
	// Maps to HTTP 429 at the gateway boundary.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrInsufficientCredits indicates the tenant ledger balance is below
	// the minimum billable amount. Maps to HTTP 402.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNoAccount indicates the tenant has no ledger account.
	ErrNoAccount = errors.New("no ledger account")
)
