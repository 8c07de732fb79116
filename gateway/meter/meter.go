// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package meter emits immutable usage events for billed operations. An
// event is written once per successfully completed, successfully billed
// operation and never mutated afterward. Failed or rejected requests emit
// nothing. The Postgres sink doubles as the spend aggregate reader the
// budget gate consumes.
package meter

import (
	"context"
	"time"

	"botfleet/platform/gateway/credit"
)

// Capability names events carry. They match the gateway's route surface.
const (
	CapabilityChat          = "chat"
	CapabilityCompletion    = "completion"
	CapabilityEmbeddings    = "embeddings"
	CapabilityTranscription = "transcription"
	CapabilitySpeech        = "speech"
	CapabilityImage         = "image"
	CapabilityVideo         = "video"
	CapabilityPhoneOutbound = "phone_outbound"
	CapabilityPhoneInbound  = "phone_inbound"
	CapabilitySMS           = "sms"
	CapabilityNumbers       = "numbers"
)

// Event is one immutable usage record. Cost is the wholesale amount owed
// upstream; Charge is what the tenant was billed.
type Event struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenant_id"`
	Capability string        `json:"capability"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model,omitempty"`
	Cost       credit.Credit `json:"cost"`
	Charge     credit.Credit `json:"charge"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Sink persists usage events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}
