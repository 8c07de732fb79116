// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"net/http"

	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/meter"
)

// handleChat proxies a chat completion request. Billing is inline: the
// upstream response reports the wholesale cost.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if g.openrouter == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "chat provider not configured")
		return
	}

	var req adapters.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeMissingField(w, "model")
		return
	}
	if len(req.Messages) == 0 {
		writeMissingField(w, "messages")
		return
	}

	tenant := tenantFrom(r.Context())
	if err := g.gate.Check(r.Context(), tenant, 0); err != nil {
		g.rejectBudget(w, err)
		return
	}

	res, err := g.openrouter.GenerateChat(r.Context(), req)
	if err != nil {
		g.rejectUpstream(w, adapters.OpenRouterID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.OpenRouterID, res.Charge)
	if err := g.bill(r.Context(), tenant, meter.CapabilityChat, adapters.OpenRouterID, req.Model, res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response": res.Value,
		"billing":  billing{Cost: res.Cost.String(), Charge: charge.String()},
	})
}

// handleCompletion proxies a plain text completion request.
func (g *Gateway) handleCompletion(w http.ResponseWriter, r *http.Request) {
	if g.openrouter == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "completion provider not configured")
		return
	}

	var req adapters.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeMissingField(w, "model")
		return
	}
	if req.Prompt == "" {
		writeMissingField(w, "prompt")
		return
	}

	tenant := tenantFrom(r.Context())
	if err := g.gate.Check(r.Context(), tenant, 0); err != nil {
		g.rejectBudget(w, err)
		return
	}

	res, err := g.openrouter.GenerateText(r.Context(), req)
	if err != nil {
		g.rejectUpstream(w, adapters.OpenRouterID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.OpenRouterID, res.Charge)
	if err := g.bill(r.Context(), tenant, meter.CapabilityCompletion, adapters.OpenRouterID, req.Model, res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response": res.Value,
		"billing":  billing{Cost: res.Cost.String(), Charge: charge.String()},
	})
}

// handleEmbeddings proxies an embeddings request.
func (g *Gateway) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	if g.openrouter == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "embeddings provider not configured")
		return
	}

	var req adapters.EmbeddingsRequest
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

	res, err := g.openrouter.GenerateEmbeddings(r.Context(), req)
	if err != nil {
		g.rejectUpstream(w, adapters.OpenRouterID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.OpenRouterID, res.Charge)
	if err := g.bill(r.Context(), tenant, meter.CapabilityEmbeddings, adapters.OpenRouterID, req.Model, res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response": res.Value,
		"billing":  billing{Cost: res.Cost.String(), Charge: charge.String()},
	})
}

// rejectBudget maps a budget gate rejection and counts it.
func (g *Gateway) rejectBudget(w http.ResponseWriter, err error) {
	promBudgetBlocks.WithLabelValues(budgetReason(err)).Inc()
	writeMappedError(w, err)
}

// rejectUpstream maps an upstream failure and counts it.
func (g *Gateway) rejectUpstream(w http.ResponseWriter, provider string, err error) {
	promUpstreamErrors.WithLabelValues(provider).Inc()
	writeMappedError(w, err)
}
