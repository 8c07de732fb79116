// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package meter

import (
	"context"
	"database/sql"
	"fmt"

	"botfleet/platform/gateway/credit"
)

// PostgresSink appends usage events to the usage_events table and serves
// the spend aggregates the budget gate reads. Insert-only: there is no
// update or delete path.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink creates a sink over an existing connection pool.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Emit appends one usage event.
func (s *PostgresSink) Emit(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (
			id, tenant_id, capability, provider, model,
			cost_nanos, charge_nanos, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.TenantID, event.Capability, event.Provider,
		nullString(event.Model), int64(event.Cost), int64(event.Charge),
		event.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}
	return nil
}

// SpentInHour sums a tenant's charges over the trailing hour.
func (s *PostgresSink) SpentInHour(ctx context.Context, tenantID string) (credit.Credit, error) {
	return s.spentSince(ctx, tenantID, "1 hour")
}

// SpentInMonth sums a tenant's charges over the trailing 30 days.
func (s *PostgresSink) SpentInMonth(ctx context.Context, tenantID string) (credit.Credit, error) {
	return s.spentSince(ctx, tenantID, "30 days")
}

func (s *PostgresSink) spentSince(ctx context.Context, tenantID, window string) (credit.Credit, error) {
	var nanos int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(charge_nanos), 0) FROM usage_events
		WHERE tenant_id = $1 AND created_at > NOW() - $2::interval
	`, tenantID, window).Scan(&nanos)
	if err != nil {
		return 0, fmt.Errorf("failed to read spend aggregate: %w", err)
	}
	return credit.Credit(nanos), nil
}

// nullString converts an empty string to NULL for database insertion.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
