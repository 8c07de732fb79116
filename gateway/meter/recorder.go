// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package meter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/shared/logger"
)

// Recorder fills in event identity and timestamps before handing events to
// the sink, and logs each emission. Safe for concurrent use.
type Recorder struct {
	sink Sink
	log  *logger.Logger
	now  func() time.Time
}

// NewRecorder creates a recorder over a sink.
func NewRecorder(sink Sink, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.New("meter")
	}
	return &Recorder{sink: sink, log: log, now: time.Now}
}

// Record stamps and emits one usage event. The caller supplies tenant,
// capability, provider, model, and amounts; id and timestamp are assigned
// here.
func (r *Recorder) Record(ctx context.Context, tenantID, capability, provider, model string, cost, charge credit.Credit) error {
	event := Event{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Capability: capability,
		Provider:   provider,
		Model:      model,
		Cost:       cost,
		Charge:     charge,
		Timestamp:  r.now().UTC(),
	}

	if err := r.sink.Emit(ctx, event); err != nil {
		r.log.Error(tenantID, event.ID, "Failed to emit usage event", map[string]interface{}{
			"capability": capability,
			"provider":   provider,
			"error":      err.Error(),
		})
		return err
	}

	r.log.Info(tenantID, event.ID, "Usage recorded", map[string]interface{}{
		"capability": capability,
		"provider":   provider,
		"model":      model,
		"cost":       cost.String(),
		"charge":     charge.String(),
	})
	return nil
}
