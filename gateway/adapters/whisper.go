// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/gateway/margin"
)

const (
	// WhisperID is the adapter identifier used for margin rules and rate
	// overrides.
	WhisperID = "whisper"

	// DefaultWhisperBaseURL is the default transcription API endpoint.
	DefaultWhisperBaseURL = "https://api.openai.com/v1"
)

// Whisper transcribes audio. It is a duration-counted adapter: cost is
// derived from the reported audio duration at the per-minute rate. When the
// response lacks an explicit duration field, duration comes from the end
// timestamp of the last segment.
type Whisper struct {
	apiKey    string
	baseURL   string
	client    HTTPClient
	margins   *margin.Config
	perMinute credit.Credit
}

// WhisperConfig configures the Whisper adapter.
type WhisperConfig struct {
	APIKey        string
	BaseURL       string        // Optional: defaults to DefaultWhisperBaseURL
	PerMinuteRate credit.Credit // Wholesale rate per audio minute
}

// NewWhisper creates the adapter.
func NewWhisper(cfg WhisperConfig, client HTTPClient, margins *margin.Config) (*Whisper, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("whisper API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWhisperBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Whisper{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		client:    client,
		margins:   margins,
		perMinute: cfg.PerMinuteRate,
	}, nil
}

// TranscriptionRequest is a speech-to-text request.
type TranscriptionRequest struct {
	Audio    []byte
	Filename string
	Model    string
	Language string
}

// TranscriptSegment is one timestamped segment in a verbose transcription.
type TranscriptSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the upstream transcription response.
type Transcript struct {
	Text     string              `json:"text"`
	Duration float64             `json:"duration,omitempty"`
	Segments []TranscriptSegment `json:"segments,omitempty"`
}

// BilledSeconds returns the audio duration used for billing: the explicit
// duration field when present, otherwise the end timestamp of the last
// segment.
func (t *Transcript) BilledSeconds() float64 {
	if t.Duration > 0 {
		return t.Duration
	}
	if n := len(t.Segments); n > 0 {
		return t.Segments[n-1].End
	}
	return 0
}

// Transcribe sends audio for transcription and bills by reported duration.
func (a *Whisper) Transcribe(ctx context.Context, req TranscriptionRequest) (*Result[Transcript], error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(req.Audio)); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}

	model := req.Model
	if model == "" {
		model = "whisper-1"
	}
	_ = w.WriteField("model", model)
	_ = w.WriteField("response_format", "verbose_json")
	if req.Language != "" {
		_ = w.WriteField("language", req.Language)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, transportError(WhisperID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(WhisperID, resp)
	}

	var transcript Transcript
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}

	// Bill at millisecond granularity against the per-minute rate.
	millis := int64(transcript.BilledSeconds() * 1000)
	cost := a.perMinute.MulRatio(credit.Ratio{Num: millis, Den: 60_000})
	charge := margin.WithConfig(cost, a.margins, WhisperID, model)

	return &Result[Transcript]{Value: transcript, Cost: cost, Charge: charge}, nil
}
