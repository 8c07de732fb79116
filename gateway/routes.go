// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"botfleet/platform/gateway/meter"
)

// Routes builds the gateway's HTTP handler: the versioned capability
// surface, the signature-authenticated webhook routes, and the operational
// endpoints. Service-key authentication applies to every capability route;
// webhook routes are authenticated by signature instead.
func (g *Gateway) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", g.handleHealth).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// LLM capabilities (inline-cost billing).
	v1.HandleFunc("/chat/completions",
		g.authenticate(g.instrument(meter.CapabilityChat, g.handleChat))).Methods("POST")
	v1.HandleFunc("/completions",
		g.authenticate(g.instrument(meter.CapabilityCompletion, g.handleCompletion))).Methods("POST")
	v1.HandleFunc("/embeddings",
		g.authenticate(g.instrument(meter.CapabilityEmbeddings, g.handleEmbeddings))).Methods("POST")

	// Audio capabilities.
	v1.HandleFunc("/audio/transcriptions",
		g.authenticate(g.instrument(meter.CapabilityTranscription, g.handleTranscription))).Methods("POST")
	v1.HandleFunc("/audio/speech",
		g.authenticate(g.instrument(meter.CapabilitySpeech, g.handleSpeech))).Methods("POST")

	// Media generation (compute-time billing).
	v1.HandleFunc("/images/generations",
		g.authenticate(g.instrument(meter.CapabilityImage, g.handleImageGeneration))).Methods("POST")
	v1.HandleFunc("/video/generations",
		g.authenticate(g.instrument(meter.CapabilityVideo, g.handleVideoGeneration))).Methods("POST")

	// Telephony. Outbound billing is deferred to the status callback.
	v1.HandleFunc("/phone/outbound",
		g.authenticate(g.instrument(meter.CapabilityPhoneOutbound, g.handleOutboundCall))).Methods("POST")
	v1.HandleFunc("/phone/inbound",
		g.authenticate(g.instrument(meter.CapabilityPhoneInbound, g.handleInboundCall))).Methods("POST")
	v1.HandleFunc("/phone/outbound/status/{tenant_id}",
		g.instrument(meter.CapabilityPhoneOutbound, g.handleCallStatus)).Methods("POST")

	// Number lifecycle.
	v1.HandleFunc("/phone/numbers",
		g.authenticate(g.instrument(meter.CapabilityNumbers, g.handleProvisionNumber))).Methods("POST")
	v1.HandleFunc("/phone/numbers",
		g.authenticate(g.instrument(meter.CapabilityNumbers, g.handleListNumbers))).Methods("GET")
	v1.HandleFunc("/phone/numbers/available",
		g.authenticate(g.instrument(meter.CapabilityNumbers, g.handleSearchNumbers))).Methods("GET")
	v1.HandleFunc("/phone/numbers/{sid}",
		g.authenticate(g.instrument(meter.CapabilityNumbers, g.handleReleaseNumber))).Methods("DELETE")

	// Messaging. Inbound and status routes are signature-authenticated.
	v1.HandleFunc("/messages/sms",
		g.authenticate(g.instrument(meter.CapabilitySMS, g.handleSendSMS))).Methods("POST")
	v1.HandleFunc("/messages/sms/inbound/{tenant_id}",
		g.instrument(meter.CapabilitySMS, g.handleInboundSMS)).Methods("POST")
	v1.HandleFunc("/messages/sms/status/{tenant_id}",
		g.instrument(meter.CapabilitySMS, g.handleSMSStatus)).Methods("POST")

	// Rate override administration.
	if g.overrides != nil {
		g.registerOverrideRoutes(v1)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// handleHealth reports liveness and which adapters are wired.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"adapters": map[string]bool{
			"openrouter": g.openrouter != nil,
			"replicate":  g.replicate != nil,
			"elevenlabs": g.elevenlabs != nil,
			"whisper":    g.whisper != nil,
			"twilio":     g.twilio != nil,
		},
	})
}
