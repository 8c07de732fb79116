// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/meter"
)

// maxAudioUpload caps transcription uploads at 25MiB, matching the
// upstream limit.
const maxAudioUpload = 25 << 20

// handleTranscription proxies a speech-to-text request. Billing is
// duration-derived from the upstream response.
func (g *Gateway) handleTranscription(w http.ResponseWriter, r *http.Request) {
	if g.whisper == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "transcription provider not configured")
		return
	}

	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMissingField(w, "file")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "failed to read audio upload")
		return
	}

	tenant := tenantFrom(r.Context())
	if err := g.gate.Check(r.Context(), tenant, 0); err != nil {
		g.rejectBudget(w, err)
		return
	}

	req := adapters.TranscriptionRequest{
		Audio:    audio,
		Filename: header.Filename,
		Model:    r.FormValue("model"),
		Language: r.FormValue("language"),
	}
	res, err := g.whisper.Transcribe(r.Context(), req)
	if err != nil {
		g.rejectUpstream(w, adapters.WhisperID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.WhisperID, res.Charge)
	if err := g.bill(r.Context(), tenant, meter.CapabilityTranscription, adapters.WhisperID, req.Model, res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcript": res.Value,
		"billing":    billing{Cost: res.Cost.String(), Charge: charge.String()},
	})
}

// handleSpeech proxies a text-to-speech request. Cost is deterministic from
// the request text, so the budget gate sees the exact amount before the
// upstream call.
func (g *Gateway) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if g.elevenlabs == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "speech provider not configured")
		return
	}

	var req adapters.SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeMissingField(w, "text")
		return
	}
	if req.VoiceID == "" {
		writeMissingField(w, "voice_id")
		return
	}

	tenant := tenantFrom(r.Context())
	estimate := g.elevenlabs.SynthesisCost(req.Text)
	if err := g.gate.Check(r.Context(), tenant, estimate); err != nil {
		g.rejectBudget(w, err)
		return
	}

	res, err := g.elevenlabs.Synthesize(r.Context(), req)
	if err != nil {
		g.rejectUpstream(w, adapters.ElevenLabsID, err)
		return
	}

	charge := g.finalCharge(r.Context(), adapters.ElevenLabsID, res.Charge)
	if err := g.bill(r.Context(), tenant, meter.CapabilitySpeech, adapters.ElevenLabsID, req.Model, res.Cost, charge); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record usage")
		return
	}

	w.Header().Set("Content-Type", res.Value.ContentType)
	w.Header().Set("X-Billing-Cost", res.Cost.String())
	w.Header().Set("X-Billing-Charge", charge.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Value.Audio)
}
