// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package adapters normalizes upstream provider request, response, and
// billing shapes to the gateway's common contract. Each adapter encodes the
// billing model of its upstream exactly: inline cost read from the response,
// unit-counted cost computed from the request, duration-derived cost from
// reported usage, or compute-time cost from a polled prediction. Every
// adapter applies margin through the shared margin helpers, never inline.
package adapters

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"botfleet/platform/gateway/credit"
)

// HTTPClient is the injectable transport for upstream calls. Tests substitute
// a fake; production wires *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result pairs a provider response with its billing outcome. Cost is the
// wholesale amount owed upstream; Charge is what the tenant is billed, cost
// inflated by the resolved margin. Charge >= Cost always holds here; capped
// discount flows are handled by rate overrides at the gateway layer, not by
// adapters.
type Result[T any] struct {
	Value  T
	Cost   credit.Credit
	Charge credit.Credit
}

// UpstreamError carries the HTTP status of a failed provider call and, where
// the provider supplied one, a retry-after hint.
type UpstreamError struct {
	Provider   string
	Status     int
	RetryAfter time.Duration
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s upstream error (status=%d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s upstream error (status=%d)", e.Provider, e.Status)
}

// ErrPollTimeout is returned when a poll-to-completion prediction never
// reaches a terminal status within the configured attempt limit.
var ErrPollTimeout = errors.New("prediction polling timed out")

// upstreamError builds an UpstreamError from a non-2xx provider response,
// reading the Retry-After header when present.
func upstreamError(provider string, resp *http.Response) *UpstreamError {
	e := &UpstreamError{Provider: provider, Status: resp.StatusCode}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	// Error bodies are capped at 4KiB.
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && len(body) > 0 {
		e.Message = string(body)
	}
	return e
}

// transportError wraps a network-level failure as a 502 so the gateway maps
// all upstream failures uniformly.
func transportError(provider string, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Status: http.StatusBadGateway, Message: err.Error()}
}
