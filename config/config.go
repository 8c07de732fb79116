// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package config loads gateway configuration from the environment and from
// the YAML rate file. Environment variables carry deployment wiring; the
// rate file carries the wholesale unit rates that change with provider
// contracts, not with deployments.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"botfleet/platform/gateway/credit"
)

// Config is the gateway's deployment configuration.
type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	PublicBaseURL string
	AdminSecret   string

	MarginConfigPath string
	RatesPath        string

	OpenRouterAPIKey  string
	ReplicateAPIToken string
	ElevenLabsAPIKey  string
	WhisperAPIKey     string
	TwilioAccountSID  string
	TwilioAuthToken   string
}

// FromEnv reads the deployment configuration.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8080)
//   - DATABASE_URL: PostgreSQL connection string
//   - REDIS_URL: Redis connection string for the penalty store
//   - PUBLIC_BASE_URL: externally visible base URL for webhook callbacks
//   - ADMIN_JWT_SECRET: signing secret for override administration
//   - MARGIN_CONFIG_PATH: margin rules YAML (default: config/margins.yaml)
//   - RATES_PATH: wholesale rates YAML (default: config/rates.yaml)
//   - OPENROUTER_API_KEY, REPLICATE_API_TOKEN, ELEVENLABS_API_KEY,
//     WHISPER_API_KEY, TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN: provider
//     credentials; an unset credential leaves that capability unwired
func FromEnv() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		AdminSecret:   os.Getenv("ADMIN_JWT_SECRET"),

		MarginConfigPath: getEnv("MARGIN_CONFIG_PATH", "config/margins.yaml"),
		RatesPath:        getEnv("RATES_PATH", "config/rates.yaml"),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		WhisperAPIKey:     os.Getenv("WHISPER_API_KEY"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
	}
}

// Rates are the wholesale unit rates, in decimal dollars, for the providers
// that compute cost locally. Inline-cost providers need no entry.
type Rates struct {
	ReplicatePerSecond float64 `yaml:"replicate_per_second"`
	ElevenLabsPerChar  float64 `yaml:"elevenlabs_per_char"`
	WhisperPerMinute   float64 `yaml:"whisper_per_minute"`

	Twilio TwilioRates `yaml:"twilio"`
}

// TwilioRates are the telephony unit rates in decimal dollars.
type TwilioRates struct {
	PerMinute    float64 `yaml:"per_minute"`
	PerSMS       float64 `yaml:"per_sms"`
	PerMMS       float64 `yaml:"per_mms"`
	ProvisionFee float64 `yaml:"provision_fee"`
}

// LoadRates reads the rate file.
func LoadRates(path string) (*Rates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}

	var rates Rates
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("failed to parse rates file: %w", err)
	}
	return &rates, nil
}

// ReplicateRate returns the per-second compute rate as credit.
func (r *Rates) ReplicateRate() credit.Credit {
	return credit.FromDollars(r.ReplicatePerSecond)
}

// ElevenLabsRate returns the per-character synthesis rate as credit.
func (r *Rates) ElevenLabsRate() credit.Credit {
	return credit.FromDollars(r.ElevenLabsPerChar)
}

// WhisperRate returns the per-minute transcription rate as credit.
func (r *Rates) WhisperRate() credit.Credit {
	return credit.FromDollars(r.WhisperPerMinute)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
