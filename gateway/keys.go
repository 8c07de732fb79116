// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"botfleet/platform/gateway/budget"
	"botfleet/platform/gateway/credit"
)

// KeyResolver maps a bearer service key to a tenant. A nil tenant with a
// nil error means the key is unknown.
type KeyResolver interface {
	Resolve(ctx context.Context, serviceKey string) (*budget.Tenant, error)
}

// TenantResolver maps a tenant id carried in a webhook callback path to a
// tenant. A nil tenant with a nil error means no such tenant.
type TenantResolver interface {
	Lookup(ctx context.Context, tenantID string) (*budget.Tenant, error)
}

// PostgresKeyResolver resolves service keys against the service_keys table.
// Keys are stored hashed; the raw key never touches the database.
type PostgresKeyResolver struct {
	db *sql.DB
}

// NewPostgresKeyResolver creates a resolver over an existing connection
// pool.
func NewPostgresKeyResolver(db *sql.DB) *PostgresKeyResolver {
	return &PostgresKeyResolver{db: db}
}

// hashKey returns the hex SHA-256 digest stored for a service key.
func hashKey(serviceKey string) string {
	sum := sha256.Sum256([]byte(serviceKey))
	return hex.EncodeToString(sum[:])
}

// Resolve looks up an active service key and returns its tenant with spend
// limits attached.
func (r *PostgresKeyResolver) Resolve(ctx context.Context, serviceKey string) (*budget.Tenant, error) {
	var (
		tenantID   string
		hourNanos  int64
		monthNanos int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, max_spend_hour_nanos, max_spend_month_nanos
		FROM service_keys
		WHERE key_hash = $1 AND revoked = FALSE
	`, hashKey(serviceKey)).Scan(&tenantID, &hourNanos, &monthNanos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve service key: %w", err)
	}

	return &budget.Tenant{
		ID: tenantID,
		Limits: budget.Limits{
			MaxSpendPerHour:  credit.Credit(hourNanos),
			MaxSpendPerMonth: credit.Credit(monthNanos),
		},
	}, nil
}

// Lookup resolves a tenant id from a webhook callback path. The limits come
// from the tenant's least restrictive active key since webhook billing is
// deferred settlement, not a new spend decision.
func (r *PostgresKeyResolver) Lookup(ctx context.Context, tenantID string) (*budget.Tenant, error) {
	var (
		hourNanos  int64
		monthNanos int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT max_spend_hour_nanos, max_spend_month_nanos
		FROM service_keys
		WHERE tenant_id = $1 AND revoked = FALSE
		ORDER BY max_spend_month_nanos DESC
		LIMIT 1
	`, tenantID).Scan(&hourNanos, &monthNanos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up tenant: %w", err)
	}

	return &budget.Tenant{
		ID: tenantID,
		Limits: budget.Limits{
			MaxSpendPerHour:  credit.Credit(hourNanos),
			MaxSpendPerMonth: credit.Credit(monthNanos),
		},
	}, nil
}
