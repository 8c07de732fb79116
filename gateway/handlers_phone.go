// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/meter"
)

// outboundCallRequest initiates an outbound call.
type outboundCallRequest struct {
	To       string `json:"to"`
	From     string `json:"from"`
	TwimlURL string `json:"twiml_url,omitempty"`
}

// inboundCallRequest reports an inbound call the platform has already
// completed, with duration known.
type inboundCallRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	DurationSeconds int    `json:"duration_seconds"`
}

// handleOutboundCall initiates an outbound call. Billing is deferred: the
// response carries the provider call id and no meter event is emitted until
// the signed status callback reports duration.
func (g *Gateway) handleOutboundCall(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "telephony provider not configured")
		return
	}

	var req outboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeMissingField(w, "to")
		return
	}
	if req.From == "" {
		writeMissingField(w, "from")
		return
	}

	tenant := tenantFrom(r.Context())
	if err := g.gate.Check(r.Context(), tenant, g.twilio.MinimumCallEstimate()); err != nil {
		g.rejectBudget(w, err)
		return
	}

	call, err := g.twilio.StartCall(r.Context(), adapters.CallRequest{
		To:             req.To,
		From:           req.From,
		TwimlURL:       req.TwimlURL,
		StatusCallback: g.publicBaseURL + "/v1/phone/outbound/status/" + tenant.ID,
	})
	if err != nil {
		g.rejectUpstream(w, adapters.TwilioID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"call_sid": call.SID,
		"status":   call.Status,
	})
}

// handleInboundCall bills an inbound call immediately: duration is already
// known at request time, so there is no callback round-trip.
func (g *Gateway) handleInboundCall(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "telephony provider not configured")
		return
	}

	var req inboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.From == "" {
		writeMissingField(w, "from")
		return
	}
	if req.DurationSeconds <= 0 {
		writeMissingField(w, "duration_seconds")
		return
	}

	cost, resolved, minutes := g.twilio.PriceCall(req.DurationSeconds)

	tenant := tenantFrom(r.Context())
	if err := g.gate.Check(r.Context(), tenant, resolved); err != nil {
		g.rejectBudget(w, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.TwilioID, resolved)
	if err := g.bill(r.Context(), tenant, meter.CapabilityPhoneInbound, adapters.TwilioID, "voice", cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"billed_minutes": minutes,
		"billing":        billing{Cost: cost.String(), Charge: charge.String()},
	})
}

// handleCallStatus is the signed status callback that completes the
// deferred billing flow for outbound calls. It emits exactly one meter
// event, for the terminal "completed" status carrying the true duration.
func (g *Gateway) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "telephony provider not configured")
		return
	}

	tenant, ok := g.verifyCallback(w, r, "call-status")
	if !ok {
		return
	}

	if r.PostForm.Get("CallStatus") != "completed" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	seconds, err := strconv.Atoi(r.PostForm.Get("CallDuration"))
	if err != nil || seconds < 0 {
		writeMissingField(w, "CallDuration")
		return
	}

	cost, resolved, minutes := g.twilio.PriceCall(seconds)
	charge := g.finalCharge(r.Context(), adapters.TwilioID, resolved)
	if err := g.bill(r.Context(), *tenant, meter.CapabilityPhoneOutbound, adapters.TwilioID, "voice", cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	g.log.Info(tenant.ID, requestIDFrom(r.Context()), "Deferred call billing settled", map[string]interface{}{
		"call_sid":       r.PostForm.Get("CallSid"),
		"billed_minutes": minutes,
		"charge":         charge.String(),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"billed_minutes": minutes,
		"billing":        billing{Cost: cost.String(), Charge: charge.String()},
	})
}

// handleProvisionNumber buys a phone number, billing the provisioning fee.
func (g *Gateway) handleProvisionNumber(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "telephony provider not configured")
		return
	}

	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		writeMissingField(w, "phone_number")
		return
	}

	tenant := tenantFrom(r.Context())
	if err := g.gate.Check(r.Context(), tenant, g.twilio.ProvisionEstimate()); err != nil {
		g.rejectBudget(w, err)
		return
	}

	res, err := g.twilio.ProvisionNumber(r.Context(), req.PhoneNumber)
	if err != nil {
		g.rejectUpstream(w, adapters.TwilioID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.TwilioID, res.Charge)
	if err := g.bill(r.Context(), tenant, meter.CapabilityNumbers, adapters.TwilioID, "numbers", res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"number":  res.Value,
		"billing": billing{Cost: res.Cost.String(), Charge: charge.String()},
	})
}

// handleSearchNumbers lists provisionable numbers. No charge.
func (g *Gateway) handleSearchNumbers(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "telephony provider not configured")
		return
	}

	numbers, err := g.twilio.SearchAvailableNumbers(r.Context(), r.URL.Query().Get("area_code"))
	if err != nil {
		g.rejectUpstream(w, adapters.TwilioID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"available_numbers": numbers})
}

// handleListNumbers lists the tenant's provisioned numbers. No charge.
func (g *Gateway) handleListNumbers(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "telephony provider not configured")
		return
	}

	numbers, err := g.twilio.ListNumbers(r.Context())
	if err != nil {
		g.rejectUpstream(w, adapters.TwilioID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"numbers": numbers})
}

// handleReleaseNumber releases a provisioned number. No charge.
func (g *Gateway) handleReleaseNumber(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "telephony provider not configured")
		return
	}

	sid := mux.Vars(r)["sid"]
	if err := g.twilio.ReleaseNumber(r.Context(), sid); err != nil {
		g.rejectUpstream(w, adapters.TwilioID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
