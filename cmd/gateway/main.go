// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the BotFleet metered provider gateway.
//
// The gateway fronts every paid upstream provider the fleet talks to:
// - Authenticates tenant service keys and enforces spend budgets
// - Proxies chat, media, speech, transcription, and telephony requests
// - Applies margin and discount rules to compute the tenant charge
// - Meters usage and settles the credit ledger
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - PostgreSQL connection string
//	REDIS_URL - Redis connection string for webhook lockout tracking
//	PUBLIC_BASE_URL - externally visible base URL for webhook callbacks
//	ADMIN_JWT_SECRET - signing secret for override administration
package main

import (
	"botfleet/platform/gateway"
)

func main() {
	gateway.Run()
}
