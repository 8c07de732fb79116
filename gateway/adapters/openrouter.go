// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/gateway/margin"
)

const (
	// OpenRouterID is the adapter identifier used for margin rules and rate
	// overrides.
	OpenRouterID = "openrouter"

	// DefaultOpenRouterBaseURL is the default OpenRouter API endpoint.
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// CostHeader carries the wholesale request cost in decimal dollars.
	CostHeader = "X-Usage-Cost"
)

// OpenRouter proxies chat, text completion, and embedding requests. It is an
// inline-cost adapter: the upstream response itself reports the wholesale
// cost (response header, falling back to the usage block in the body), so the
// adapter reads it rather than computing it.
type OpenRouter struct {
	apiKey  string
	baseURL string
	client  HTTPClient
	margins *margin.Config
}

// OpenRouterConfig configures the OpenRouter adapter.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string // Optional: defaults to DefaultOpenRouterBaseURL
}

// NewOpenRouter creates the adapter. The HTTP client is injectable for tests.
func NewOpenRouter(cfg OpenRouterConfig, client HTTPClient, margins *margin.Config) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenRouter{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  client,
		margins: margins,
	}, nil
}

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// CompletionRequest is a plain text completion request.
type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// EmbeddingsRequest is an embeddings request.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Usage is the token usage block upstream responses carry. Cost is the
// provider-reported wholesale cost in decimal dollars.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

// ChatChoice is one completion choice.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message,omitempty"`
	Text         string      `json:"text,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatResponse is the upstream response shape shared by chat and text
// completions.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// Embedding is a single embedding vector.
type Embedding struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse is the upstream embeddings response.
type EmbeddingsResponse struct {
	Model string      `json:"model"`
	Data  []Embedding `json:"data"`
	Usage Usage       `json:"usage"`
}

// GenerateChat forwards a chat completion request and bills from the inline
// cost the response reports.
func (a *OpenRouter) GenerateChat(ctx context.Context, req ChatRequest) (*Result[ChatResponse], error) {
	var out ChatResponse
	cost, err := a.post(ctx, "/chat/completions", req, &out)
	if err != nil {
		return nil, err
	}
	if cost.IsZero() {
		cost = credit.FromDollars(out.Usage.Cost)
	}
	return a.result(out, cost, req.Model)
}

// GenerateText forwards a plain completion request.
func (a *OpenRouter) GenerateText(ctx context.Context, req CompletionRequest) (*Result[ChatResponse], error) {
	var out ChatResponse
	cost, err := a.post(ctx, "/completions", req, &out)
	if err != nil {
		return nil, err
	}
	if cost.IsZero() {
		cost = credit.FromDollars(out.Usage.Cost)
	}
	return a.result(out, cost, req.Model)
}

// GenerateEmbeddings forwards an embeddings request.
func (a *OpenRouter) GenerateEmbeddings(ctx context.Context, req EmbeddingsRequest) (*Result[EmbeddingsResponse], error) {
	var out EmbeddingsResponse
	cost, err := a.post(ctx, "/embeddings", req, &out)
	if err != nil {
		return nil, err
	}
	if cost.IsZero() {
		cost = credit.FromDollars(out.Usage.Cost)
	}
	charge := margin.WithConfig(cost, a.margins, OpenRouterID, req.Model)
	return &Result[EmbeddingsResponse]{Value: out, Cost: cost, Charge: charge}, nil
}

func (a *OpenRouter) result(out ChatResponse, cost credit.Credit, model string) (*Result[ChatResponse], error) {
	charge := margin.WithConfig(cost, a.margins, OpenRouterID, model)
	return &Result[ChatResponse]{Value: out, Cost: cost, Charge: charge}, nil
}

// post sends a JSON request and decodes the response, returning the cost
// reported by the cost header (zero when absent).
func (a *OpenRouter) post(ctx context.Context, path string, body, out interface{}) (credit.Credit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, transportError(OpenRouterID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, upstreamError(OpenRouterID, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	var cost credit.Credit
	if raw := resp.Header.Get(CostHeader); raw != "" {
		if dollars, err := strconv.ParseFloat(raw, 64); err == nil {
			cost = credit.FromDollars(dollars)
		}
	}
	return cost, nil
}
