// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package gateway is the metered provider gateway: the HTTP boundary that
// authenticates tenant service keys, enforces spend budgets, forwards
// requests to upstream AI and telephony providers, applies margin and
// discount policy, emits usage events, and settles the tenant ledger.
//
// Every request runs the same fixed stage order: spend limit check, credit
// floor check, upstream call, margin and override resolution, meter
// emission, ledger debit. A failure at any checked stage short-circuits all
// later stages, so no meter event and no debit ever occur for a rejected or
// upstream-failed request. Outbound phone calls are the one deferred path:
// they bill from the signed status callback, not at initiation.
package gateway

import (
	"context"

	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/budget"
	"botfleet/platform/gateway/credit"
	"botfleet/platform/gateway/meter"
	"botfleet/platform/gateway/override"
	"botfleet/platform/gateway/webhook"
	"botfleet/platform/shared/logger"
)

// Gateway wires the capability handlers to their collaborators. All
// dependencies are injected at construction; there is no ambient state.
type Gateway struct {
	keys      KeyResolver
	tenants   TenantResolver
	gate      *budget.Gate
	recorder  *meter.Recorder
	overrides *override.Service
	guard     *webhook.Guard

	openrouter *adapters.OpenRouter
	replicate  *adapters.Replicate
	elevenlabs *adapters.ElevenLabs
	whisper    *adapters.Whisper
	twilio     *adapters.Twilio

	publicBaseURL string
	adminSecret   []byte
	log           *logger.Logger
}

// Deps are the gateway's collaborators. Keys, Gate, and Recorder are
// required; adapters left nil make their capabilities respond 503; a nil
// Overrides disables discounts; a nil Guard leaves webhook routes
// unauthenticated and is only acceptable in tests.
type Deps struct {
	Keys      KeyResolver
	Tenants   TenantResolver
	Gate      *budget.Gate
	Recorder  *meter.Recorder
	Overrides *override.Service
	Guard     *webhook.Guard

	OpenRouter *adapters.OpenRouter
	Replicate  *adapters.Replicate
	ElevenLabs *adapters.ElevenLabs
	Whisper    *adapters.Whisper
	Twilio     *adapters.Twilio

	// PublicBaseURL is the externally visible base URL, used to build and
	// verify signed webhook callback URLs.
	PublicBaseURL string

	// AdminSecret signs the admin JWTs accepted on override routes.
	AdminSecret []byte

	Log *logger.Logger
}

// New creates a gateway from its collaborators.
func New(deps Deps) *Gateway {
	log := deps.Log
	if log == nil {
		log = logger.New("gateway")
	}
	return &Gateway{
		keys:          deps.Keys,
		tenants:       deps.Tenants,
		gate:          deps.Gate,
		recorder:      deps.Recorder,
		overrides:     deps.Overrides,
		guard:         deps.Guard,
		openrouter:    deps.OpenRouter,
		replicate:     deps.Replicate,
		elevenlabs:    deps.ElevenLabs,
		whisper:       deps.Whisper,
		twilio:        deps.Twilio,
		publicBaseURL: deps.PublicBaseURL,
		adminSecret:   deps.AdminSecret,
		log:           log,
	}
}

// billing is the success-path accounting block returned alongside provider
// payloads.
type billing struct {
	Cost   string `json:"cost"`
	Charge string `json:"charge"`
}

// finalCharge applies any active rate override discount to the resolved
// charge. Overrides reduce charge below the margin result; they never touch
// wholesale cost.
func (g *Gateway) finalCharge(ctx context.Context, adapterID string, charge credit.Credit) credit.Credit {
	if g.overrides == nil {
		return charge
	}
	return g.overrides.ApplyDiscount(ctx, adapterID, charge)
}

// bill runs the final two stages for a successful upstream result: meter
// emission, then ledger debit of the charge. A meter failure aborts the
// debit and fails the request; a debit failure is logged and absorbed since
// the usage event is already durable.
func (g *Gateway) bill(ctx context.Context, tenant budget.Tenant, capability, provider, model string, cost, charge credit.Credit) error {
	if err := g.recorder.Record(ctx, tenant.ID, capability, provider, model, cost, charge); err != nil {
		return err
	}
	promChargedNanos.WithLabelValues(capability).Add(float64(charge))

	if err := g.gate.Settle(ctx, tenant.ID, charge); err != nil {
		g.log.Error(tenant.ID, "", "Settlement failed after meter emission", map[string]interface{}{
			"capability": capability,
			"charge":     charge.String(),
			"error":      err.Error(),
		})
	}
	return nil
}
