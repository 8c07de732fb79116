// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/budget"
	"botfleet/platform/gateway/webhook"
)

// Stable machine-readable error codes returned in response bodies.
const (
	CodeUnauthorized        = "unauthorized"
	CodeInsufficientCredits = "insufficient_credits"
	CodeBudgetExceeded      = "budget_exceeded"
	CodeMissingField        = "missing_field"
	CodeInvalidRequest      = "invalid_request"
	CodeUpstreamError       = "upstream_error"
	CodeServiceUnavailable  = "service_unavailable"
	CodeNoNumbersAvailable  = "no_numbers_available"
	CodeNotFound            = "not_found"
	CodeInternalError       = "internal_error"
)

// writeError writes the stable {"error":{"code","message"}} body.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorContext(w, status, code, message, nil)
}

// writeErrorContext writes an error body with extra context fields merged
// alongside code and message.
func writeErrorContext(w http.ResponseWriter, status int, code, message string, context map[string]interface{}) {
	detail := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	for k, v := range context {
		detail[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": detail})
}

// writeMissingField rejects a request missing a required body field.
func writeMissingField(w http.ResponseWriter, field string) {
	writeErrorContext(w, http.StatusBadRequest, CodeMissingField,
		"missing required field", map[string]interface{}{"field": field})
}

// writeMappedError translates pipeline errors to their stable code and
// status: budget rejections, upstream failures, and webhook auth failures
// each keep their own status class.
func writeMappedError(w http.ResponseWriter, err error) {
	var upstream *adapters.UpstreamError
	switch {
	case errors.Is(err, budget.ErrBudgetExceeded):
		writeError(w, http.StatusTooManyRequests, CodeBudgetExceeded, err.Error())
	case errors.Is(err, budget.ErrInsufficientCredits), errors.Is(err, budget.ErrNoAccount):
		writeError(w, http.StatusPaymentRequired, CodeInsufficientCredits, err.Error())
	case errors.Is(err, adapters.ErrNoNumbersAvailable):
		writeError(w, http.StatusNotFound, CodeNoNumbersAvailable, err.Error())
	case errors.Is(err, adapters.ErrPollTimeout):
		writeError(w, http.StatusGatewayTimeout, CodeUpstreamError, err.Error())
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		context := map[string]interface{}{"provider": upstream.Provider}
		if upstream.RetryAfter > 0 {
			context["retry_after_seconds"] = int(upstream.RetryAfter.Seconds())
		}
		writeErrorContext(w, status, CodeUpstreamError, upstream.Error(), context)
	case errors.Is(err, webhook.ErrBlocked), errors.Is(err, webhook.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeInternalError, err.Error())
	}
}

// budgetReason labels a budget gate rejection for metrics.
func budgetReason(err error) string {
	switch {
	case errors.Is(err, budget.ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.Is(err, budget.ErrInsufficientCredits), errors.Is(err, budget.ErrNoAccount):
		return "insufficient_credits"
	default:
		return "gate_error"
	}
}

// writeJSON writes a success payload.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
