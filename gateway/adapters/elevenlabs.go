// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/gateway/margin"
)

const (
	// ElevenLabsID is the adapter identifier used for margin rules and rate
	// overrides.
	ElevenLabsID = "elevenlabs"

	// DefaultElevenLabsBaseURL is the default ElevenLabs API endpoint.
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
)

// ElevenLabs synthesizes speech. It is a unit-counted adapter: cost is the
// request text's character count multiplied by the per-character rate, so the
// wholesale cost is known deterministically before the network call returns.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	client  HTTPClient
	margins *margin.Config
	perChar credit.Credit
}

// ElevenLabsConfig configures the ElevenLabs adapter.
type ElevenLabsConfig struct {
	APIKey      string
	BaseURL     string        // Optional: defaults to DefaultElevenLabsBaseURL
	PerCharRate credit.Credit // Wholesale rate per synthesized character
}

// NewElevenLabs creates the adapter.
func NewElevenLabs(cfg ElevenLabsConfig, client HTTPClient, margins *margin.Config) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ElevenLabs{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  client,
		margins: margins,
		perChar: cfg.PerCharRate,
	}, nil
}

// SpeechRequest is a speech synthesis request.
type SpeechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Model   string `json:"model_id,omitempty"`
}

// SpeechAudio is the synthesized audio payload.
type SpeechAudio struct {
	Audio       []byte
	ContentType string
}

// SynthesisCost returns the wholesale cost for a text, independent of any
// network call: character count times the per-character rate. Empty text
// costs zero.
func (a *ElevenLabs) SynthesisCost(text string) credit.Credit {
	n := int64(utf8.RuneCountInString(text))
	return a.perChar.MulRatio(credit.Ratio{Num: n, Den: 1})
}

// Synthesize converts text to speech and bills by request character count.
func (a *ElevenLabs) Synthesize(ctx context.Context, req SpeechRequest) (*Result[SpeechAudio], error) {
	cost := a.SynthesisCost(req.Text)

	payload, err := json.Marshal(map[string]string{
		"text":     req.Text,
		"model_id": req.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/text-to-speech/"+req.VoiceID, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ElevenLabsID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(ElevenLabsID, resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}

	charge := margin.WithConfig(cost, a.margins, ElevenLabsID, req.Model)
	return &Result[SpeechAudio]{
		Value:  SpeechAudio{Audio: audio, ContentType: resp.Header.Get("Content-Type")},
		Cost:   cost,
		Charge: charge,
	}, nil
}
