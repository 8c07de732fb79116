// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package budget implements the pre-flight spend gate and post-call ledger
// settlement for metered requests. Two independent checks compose: a spend
// limit check against the tenant's hourly and monthly aggregates, and a
// credit floor check against the tenant's ledger balance. The gate is
// advisory: it reads recent aggregates rather than reserving funds, so a
// burst of concurrent requests against a thin balance can over-debit
// slightly past zero.
package budget

import (
	"context"
	"fmt"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/shared/logger"
)

// DefaultMinimumCharge is the floor used when a capability's estimated cost
// rounds to a sub-unit amount. It keeps zero-balance tenants from unbounded
// free usage.
var DefaultMinimumCharge = credit.FromCents(1)

// Limits are a tenant's configured spend ceilings. A zero limit means the
// window is unlimited.
type Limits struct {
	MaxSpendPerHour  credit.Credit `json:"max_spend_per_hour"`
	MaxSpendPerMonth credit.Credit `json:"max_spend_per_month"`
}

// Tenant is the resolved identity behind a service key. The gateway treats
// it as opaque beyond its id and limits.
type Tenant struct {
	ID     string `json:"id"`
	Limits Limits `json:"limits"`
}

// SpendReader reports a tenant's recent spend aggregates.
type SpendReader interface {
	SpentInHour(ctx context.Context, tenantID string) (credit.Credit, error)
	SpentInMonth(ctx context.Context, tenantID string) (credit.Credit, error)
}

// Ledger is the tenant credit balance collaborator.
type Ledger interface {
	Balance(ctx context.Context, tenantID string) (credit.Credit, error)
	Debit(ctx context.Context, tenantID string, amount credit.Credit) error
	Credit(ctx context.Context, tenantID string, amount credit.Credit) error
}

// Gate runs the pre-flight checks and the post-call settlement. A nil ledger
// disables the credit floor check; the spend limit check always runs.
type Gate struct {
	spend     SpendReader
	ledger    Ledger
	minCharge credit.Credit
	log       *logger.Logger
}

// NewGate creates a budget gate. minCharge zero falls back to
// DefaultMinimumCharge.
func NewGate(spend SpendReader, ledger Ledger, minCharge credit.Credit, log *logger.Logger) *Gate {
	if minCharge.IsZero() {
		minCharge = DefaultMinimumCharge
	}
	if log == nil {
		log = logger.New("budget-gate")
	}
	return &Gate{spend: spend, ledger: ledger, minCharge: minCharge, log: log}
}

// Check runs the fixed pre-flight sequence: hourly spend limit, monthly
// spend limit, then credit floor. The estimate is raised to the minimum
// charge so a sub-unit estimate cannot slip past a zero balance or an
// exactly-consumed limit.
func (g *Gate) Check(ctx context.Context, tenant Tenant, estimate credit.Credit) error {
	floor := estimate
	if floor < g.minCharge {
		floor = g.minCharge
	}

	if err := g.checkWindow(ctx, tenant, floor); err != nil {
		return err
	}

	if g.ledger == nil {
		return nil
	}

	balance, err := g.ledger.Balance(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("failed to read ledger balance: %w", err)
	}
	if balance < floor {
		g.log.Warn(tenant.ID, "", "Request blocked: insufficient credits", map[string]interface{}{
			"balance":  balance.String(),
			"required": floor.String(),
		})
		return fmt.Errorf("%w: balance %s below minimum %s", ErrInsufficientCredits, balance, floor)
	}
	return nil
}

func (g *Gate) checkWindow(ctx context.Context, tenant Tenant, floor credit.Credit) error {
	if limit := tenant.Limits.MaxSpendPerHour; !limit.IsZero() {
		spent, err := g.spend.SpentInHour(ctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("failed to read hourly spend: %w", err)
		}
		if spent.Add(floor) > limit {
			g.log.Warn(tenant.ID, "", "Request blocked: hourly budget exceeded", map[string]interface{}{
				"spent": spent.String(),
				"limit": limit.String(),
			})
			return fmt.Errorf("%w: hourly spend %s at limit %s", ErrBudgetExceeded, spent, limit)
		}
	}

	if limit := tenant.Limits.MaxSpendPerMonth; !limit.IsZero() {
		spent, err := g.spend.SpentInMonth(ctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("failed to read monthly spend: %w", err)
		}
		if spent.Add(floor) > limit {
			g.log.Warn(tenant.ID, "", "Request blocked: monthly budget exceeded", map[string]interface{}{
				"spent": spent.String(),
				"limit": limit.String(),
			})
			return fmt.Errorf("%w: monthly spend %s at limit %s", ErrBudgetExceeded, spent, limit)
		}
	}
	return nil
}

// Settle debits the tenant ledger by the billed charge, never the wholesale
// cost. It runs after meter emission on the success path only. A nil ledger
// makes settlement a no-op.
func (g *Gate) Settle(ctx context.Context, tenantID string, charge credit.Credit) error {
	if g.ledger == nil || charge.IsZero() {
		return nil
	}
	if err := g.ledger.Debit(ctx, tenantID, charge); err != nil {
		g.log.Error(tenantID, "", "Ledger debit failed", map[string]interface{}{
			"charge": charge.String(),
			"error":  err.Error(),
		})
		return fmt.Errorf("failed to debit ledger: %w", err)
	}
	return nil
}
