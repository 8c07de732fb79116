// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package webhook authenticates inbound provider callbacks. Callbacks carry
// an HMAC signature over the canonical callback URL and the sorted form
// parameters; verification failures feed a Redis-backed penalty store so
// repeated forgery attempts from one source are locked out.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader is the request header carrying the provider signature.
const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature returns the expected signature for a callback: HMAC-SHA1
// over the callback URL concatenated with each form parameter as key+value
// in sorted key order, base64 encoded.
func ComputeSignature(authToken, callbackURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(callbackURL)
	for _, k := range keys {
		for _, v := range params[k] {
			payload.WriteString(k)
			payload.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature reports whether the provided signature matches the expected
// one. The comparison is constant time.
func ValidSignature(authToken, callbackURL string, params url.Values, provided string) bool {
	expected := ComputeSignature(authToken, callbackURL, params)
	return hmac.Equal([]byte(expected), []byte(provided))
}
