// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"botfleet/platform/gateway/credit"
)

// PostgresLedger is the default Ledger implementation backed by the
// credit_ledger table. The debit is a single unconditional UPDATE, so the
// gate's advisory check plus a concurrent burst can push a thin balance
// slightly negative.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a ledger over an existing connection pool.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Balance returns the tenant's current balance in nanodollars.
func (l *PostgresLedger) Balance(ctx context.Context, tenantID string) (credit.Credit, error) {
	var nanos int64
	err := l.db.QueryRowContext(ctx,
		`SELECT balance_nanos FROM credit_ledger WHERE tenant_id = $1`,
		tenantID).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: tenant %s", ErrNoAccount, tenantID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return credit.Credit(nanos), nil
}

// Debit subtracts the amount from the tenant's balance.
func (l *PostgresLedger) Debit(ctx context.Context, tenantID string, amount credit.Credit) error {
	return l.apply(ctx, tenantID, -int64(amount))
}

// Credit adds the amount to the tenant's balance.
func (l *PostgresLedger) Credit(ctx context.Context, tenantID string, amount credit.Credit) error {
	return l.apply(ctx, tenantID, int64(amount))
}

func (l *PostgresLedger) apply(ctx context.Context, tenantID string, deltaNanos int64) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE credit_ledger
		 SET balance_nanos = balance_nanos + $2, updated_at = NOW()
		 WHERE tenant_id = $1`,
		tenantID, deltaNanos)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: tenant %s", ErrNoAccount, tenantID)
	}
	return nil
}
