// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/gateway/margin"
)

const (
	// ReplicateID is the adapter identifier used for margin rules and rate
	// overrides.
	ReplicateID = "replicate"

	// DefaultReplicateBaseURL is the default Replicate API endpoint.
	DefaultReplicateBaseURL = "https://api.replicate.com/v1"

	// DefaultMaxPollAttempts bounds the poll-to-completion wait.
	DefaultMaxPollAttempts = 60

	// DefaultPollDelay is the fixed delay between poll attempts.
	DefaultPollDelay = 2 * time.Second
)

// Replicate runs image and video generation through an async prediction API:
// submit a job, then poll until a terminal status or the attempt limit.
// Cost is the reported compute time multiplied by a configured per-second
// rate.
type Replicate struct {
	apiToken     string
	baseURL      string
	client       HTTPClient
	margins      *margin.Config
	perSecond    credit.Credit
	maxAttempts  int
	pollDelay    time.Duration
}

// ReplicateConfig configures the Replicate adapter.
type ReplicateConfig struct {
	APIToken        string
	BaseURL         string        // Optional: defaults to DefaultReplicateBaseURL
	PerSecondRate   credit.Credit // Wholesale compute rate per second
	MaxPollAttempts int           // Optional: defaults to DefaultMaxPollAttempts
	PollDelay       time.Duration // Optional: defaults to DefaultPollDelay; tests set 0
}

// NewReplicate creates the adapter.
func NewReplicate(cfg ReplicateConfig, client HTTPClient, margins *margin.Config) (*Replicate, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("replicate API token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultReplicateBaseURL
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if cfg.PollDelay < 0 {
		cfg.PollDelay = DefaultPollDelay
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Replicate{
		apiToken:    cfg.APIToken,
		baseURL:     cfg.BaseURL,
		client:      client,
		margins:     margins,
		perSecond:   cfg.PerSecondRate,
		maxAttempts: cfg.MaxPollAttempts,
		pollDelay:   cfg.PollDelay,
	}, nil
}

// MediaRequest is an image or video generation request.
type MediaRequest struct {
	Model string                 `json:"model"`
	Input map[string]interface{} `json:"input"`
}

// PredictionMetrics is the compute-time usage a finished prediction reports.
type PredictionMetrics struct {
	PredictTime float64 `json:"predict_time"`
}

// Prediction is the upstream prediction resource.
type Prediction struct {
	ID      string            `json:"id"`
	Model   string            `json:"model"`
	Status  string            `json:"status"`
	Output  json.RawMessage   `json:"output,omitempty"`
	Error   string            `json:"error,omitempty"`
	Metrics PredictionMetrics `json:"metrics"`
}

// Terminal prediction statuses.
const (
	predictionSucceeded = "succeeded"
	predictionFailed    = "failed"
	predictionCanceled  = "canceled"
)

// Generate submits a prediction and polls it to completion. A prediction
// that never leaves a running status within the attempt limit fails with
// ErrPollTimeout rather than looping forever.
func (a *Replicate) Generate(ctx context.Context, req MediaRequest) (*Result[Prediction], error) {
	pred, err := a.create(ctx, req)
	if err != nil {
		return nil, err
	}

	// Every fetched prediction is examined, the create response included,
	// so a terminal status on the final allowed poll still resolves.
	for attempt := 0; ; attempt++ {
		switch pred.Status {
		case predictionSucceeded:
			return a.bill(pred, req.Model)
		case predictionFailed, predictionCanceled:
			return nil, &UpstreamError{
				Provider: ReplicateID,
				Status:   http.StatusBadGateway,
				Message:  fmt.Sprintf("prediction %s: %s", pred.Status, pred.Error),
			}
		}

		if attempt >= a.maxAttempts {
			return nil, fmt.Errorf("%w: prediction %s after %d attempts", ErrPollTimeout, pred.ID, a.maxAttempts)
		}

		if a.pollDelay > 0 {
			select {
			case <-time.After(a.pollDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		pred, err = a.get(ctx, pred.ID)
		if err != nil {
			return nil, err
		}
	}
}

// bill converts reported compute time to cost at millisecond granularity and
// applies margin through the shared helper.
func (a *Replicate) bill(pred *Prediction, model string) (*Result[Prediction], error) {
	millis := int64(pred.Metrics.PredictTime * 1000)
	cost := a.perSecond.MulRatio(credit.Ratio{Num: millis, Den: 1000})
	charge := margin.WithConfig(cost, a.margins, ReplicateID, model)
	return &Result[Prediction]{Value: *pred, Cost: cost, Charge: charge}, nil
}

func (a *Replicate) create(ctx context.Context, req MediaRequest) (*Prediction, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model": req.Model,
		"input": req.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/predictions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return a.do(httpReq)
}

func (a *Replicate) get(ctx context.Context, id string) (*Prediction, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return a.do(httpReq)
}

func (a *Replicate) do(req *http.Request) (*Prediction, error) {
	req.Header.Set("Authorization", "Token "+a.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(ReplicateID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(ReplicateID, resp)
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	return &pred, nil
}
