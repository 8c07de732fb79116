// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"net/http"

	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/meter"
)

// handleImageGeneration proxies an image generation request through the
// poll-to-completion provider.
func (g *Gateway) handleImageGeneration(w http.ResponseWriter, r *http.Request) {
	g.handleMediaGeneration(w, r, meter.CapabilityImage)
}

// handleVideoGeneration proxies a video generation request.
func (g *Gateway) handleVideoGeneration(w http.ResponseWriter, r *http.Request) {
	g.handleMediaGeneration(w, r, meter.CapabilityVideo)
}

func (g *Gateway) handleMediaGeneration(w http.ResponseWriter, r *http.Request, capability string) {
	if g.replicate == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "media provider not configured")
		return
	}

	var req adapters.MediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeMissingField(w, "model")
		return
	}
	if len(req.Input) == 0 {
		writeMissingField(w, "input")
		return
	}

	tenant := tenantFrom(r.Context())
	if err := g.gate.Check(r.Context(), tenant, 0); err != nil {
		g.rejectBudget(w, err)
		return
	}

	res, err := g.replicate.Generate(r.Context(), req)
	if err != nil {
		g.rejectUpstream(w, adapters.ReplicateID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.ReplicateID, res.Charge)
	if err := g.bill(r.Context(), tenant, capability, adapters.ReplicateID, req.Model, res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prediction": res.Value,
		"billing":    billing{Cost: res.Cost.String(), Charge: charge.String()},
	})
}
