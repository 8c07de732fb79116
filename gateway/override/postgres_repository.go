// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package override

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new rate override.
func (r *PostgresRepository) Create(ctx context.Context, o *RateOverride) error {
	query := `
		INSERT INTO rate_overrides (
			id, adapter_id, discount_percent, starts_at, ends_at,
			status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.AdapterID, o.DiscountPercent, o.StartsAt, o.EndsAt,
		o.Status, nullString(o.CreatedBy), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrExists
		}
		return fmt.Errorf("failed to create rate override: %w", err)
	}

	return nil
}

// Get retrieves a rate override by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*RateOverride, error) {
	query := `
		SELECT id, adapter_id, discount_percent, starts_at, ends_at,
		       status, created_by, created_at, updated_at
		FROM rate_overrides
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Update rewrites an existing rate override.
func (r *PostgresRepository) Update(ctx context.Context, o *RateOverride) error {
	query := `
		UPDATE rate_overrides
		SET adapter_id = $2, discount_percent = $3, starts_at = $4,
		    ends_at = $5, status = $6, updated_at = $7
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		o.ID, o.AdapterID, o.DiscountPercent, o.StartsAt, o.EndsAt,
		o.Status, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rate override: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Cancel marks an override cancelled.
func (r *PostgresRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE rate_overrides
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, StatusCancelled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to cancel rate override: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns overrides for an adapter, newest first. An empty adapterID
// returns all overrides.
func (r *PostgresRepository) List(ctx context.Context, adapterID string) ([]RateOverride, error) {
	query := `
		SELECT id, adapter_id, discount_percent, starts_at, ends_at,
		       status, created_by, created_at, updated_at
		FROM rate_overrides
	`
	args := []interface{}{}
	if adapterID != "" {
		query += " WHERE adapter_id = $1"
		args = append(args, adapterID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate overrides: %w", err)
	}
	defer rows.Close()

	var out []RateOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ActiveForAdapter returns the override active for the adapter at the given
// instant, preferring the most recently created one.
func (r *PostgresRepository) ActiveForAdapter(ctx context.Context, adapterID string, at time.Time) (*RateOverride, error) {
	query := `
		SELECT id, adapter_id, discount_percent, starts_at, ends_at,
		       status, created_by, created_at, updated_at
		FROM rate_overrides
		WHERE adapter_id = $1
		  AND status = $2
		  AND starts_at <= $3
		  AND (ends_at IS NULL OR ends_at > $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, adapterID, StatusActive, at))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresRepository) scanOne(row rowScanner) (*RateOverride, error) {
	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate override: %w", err)
	}
	return o, nil
}

func scanOverride(row rowScanner) (*RateOverride, error) {
	var o RateOverride
	var endsAt sql.NullTime
	var createdBy sql.NullString

	err := row.Scan(
		&o.ID, &o.AdapterID, &o.DiscountPercent, &o.StartsAt, &endsAt,
		&o.Status, &createdBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endsAt.Valid {
		t := endsAt.Time
		o.EndsAt = &t
	}
	o.CreatedBy = createdBy.String
	return &o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
