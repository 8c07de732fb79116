// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/budget"
	"botfleet/platform/gateway/meter"
	"botfleet/platform/gateway/webhook"
)

// sendSMSRequest sends an outbound message.
type sendSMSRequest struct {
	To        string   `json:"to"`
	From      string   `json:"from"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// handleSendSMS sends an SMS or MMS and bills the flat per-message rate.
// Media presence moves the message to the MMS tier.
func (g *Gateway) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "messaging provider not configured")
		return
	}

	var req sendSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeMissingField(w, "to")
		return
	}
	if req.Body == "" {
		writeMissingField(w, "body")
		return
	}

	tenant := tenantFrom(r.Context())
	_, estimate := g.twilio.PriceMessage(len(req.MediaURLs) > 0)
	if err := g.gate.Check(r.Context(), tenant, estimate); err != nil {
		g.rejectBudget(w, err)
		return
	}

	res, err := g.twilio.SendSMS(r.Context(), adapters.SMSRequest{
		To:        req.To,
		From:      req.From,
		Body:      req.Body,
		MediaURLs: req.MediaURLs,
	})
	if err != nil {
		g.rejectUpstream(w, adapters.TwilioID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.TwilioID, res.Charge)
	if err := g.bill(r.Context(), tenant, meter.CapabilitySMS, adapters.TwilioID, "messaging", res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": res.Value,
		"billing": billing{Cost: res.Cost.String(), Charge: charge.String()},
	})
}

// handleInboundSMS receives a signed inbound-message webhook and bills the
// tenant the flat per-message rate immediately.
func (g *Gateway) handleInboundSMS(w http.ResponseWriter, r *http.Request) {
	if g.twilio == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "messaging provider not configured")
		return
	}

	tenant, ok := g.verifyCallback(w, r, "sms-inbound")
	if !ok {
		return
	}

	hasMedia := r.PostForm.Get("NumMedia") != "" && r.PostForm.Get("NumMedia") != "0"
	cost, resolved := g.twilio.PriceMessage(hasMedia)
	charge := g.finalCharge(r.Context(), adapters.TwilioID, resolved)

	if err := g.bill(r.Context(), *tenant, meter.CapabilitySMS, adapters.TwilioID, "messaging", cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"billing": billing{Cost: cost.String(), Charge: charge.String()},
	})
}

// handleSMSStatus acknowledges a signed delivery-status callback. No
// billing.
func (g *Gateway) handleSMSStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := g.verifyCallback(w, r, "sms-status"); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// verifyCallback authenticates a signed provider webhook and resolves the
// tenant named in the callback path. Blocked sources and bad signatures are
// rejected with 401; an unknown tenant is a 404. The parsed form is left on
// the request for the caller.
func (g *Gateway) verifyCallback(w http.ResponseWriter, r *http.Request, source string) (*budget.Tenant, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid form body")
		return nil, false
	}

	if g.guard != nil {
		callbackURL := g.publicBaseURL + r.URL.Path
		signature := r.Header.Get(webhook.SignatureHeader)
		err := g.guard.Verify(r.Context(), sourceIP(r), source, callbackURL, r.PostForm, signature)
		if err != nil {
			reason := "invalid_signature"
			if errors.Is(err, webhook.ErrBlocked) {
				reason = "blocked"
			}
			promWebhookRejections.WithLabelValues(reason).Inc()
			writeMappedError(w, err)
			return nil, false
		}
	}

	tenantID := mux.Vars(r)["tenant_id"]
	tenant, err := g.tenants.Lookup(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "tenant store unavailable")
		return nil, false
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown tenant")
		return nil, false
	}
	return tenant, true
}
