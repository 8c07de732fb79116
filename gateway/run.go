// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver

	"botfleet/platform/config"
	"botfleet/platform/gateway/adapters"
	"botfleet/platform/gateway/budget"
	"botfleet/platform/gateway/credit"
	"botfleet/platform/gateway/margin"
	"botfleet/platform/gateway/meter"
	"botfleet/platform/gateway/override"
	"botfleet/platform/gateway/webhook"
	"botfleet/platform/shared/logger"
)

// Run is the exported entry point for the gateway service. It wires the
// collaborators from configuration, mounts the routes, and serves until
// shut down. Adapters whose credentials are unset stay unwired and their
// capabilities respond 503.
func Run() {
	cfg := config.FromEnv()
	appLog := logger.New("gateway")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	margins, err := margin.Load(cfg.MarginConfigPath)
	if err != nil {
		log.Fatalf("Failed to load margin config: %v", err)
	}
	rates, err := config.LoadRates(cfg.RatesPath)
	if err != nil {
		log.Fatalf("Failed to load rates: %v", err)
	}

	sink := meter.NewPostgresSink(db)
	gate := budget.NewGate(sink, budget.NewPostgresLedger(db), 0, appLog)
	recorder := meter.NewRecorder(sink, appLog)
	keys := NewPostgresKeyResolver(db)

	overrides := override.NewService(
		override.NewPostgresRepository(db),
		override.NewCache(override.DefaultCacheTTL),
		appLog,
	)

	deps := Deps{
		Keys:          keys,
		Tenants:       keys,
		Gate:          gate,
		Recorder:      recorder,
		Overrides:     overrides,
		PublicBaseURL: cfg.PublicBaseURL,
		AdminSecret:   []byte(cfg.AdminSecret),
		Log:           appLog,
	}

	if cfg.OpenRouterAPIKey != "" {
		deps.OpenRouter, err = adapters.NewOpenRouter(adapters.OpenRouterConfig{
			APIKey: cfg.OpenRouterAPIKey,
		}, nil, margins)
		if err != nil {
			log.Fatalf("Failed to configure openrouter adapter: %v", err)
		}
	}
	if cfg.ReplicateAPIToken != "" {
		deps.Replicate, err = adapters.NewReplicate(adapters.ReplicateConfig{
			APIToken:      cfg.ReplicateAPIToken,
			PerSecondRate: rates.ReplicateRate(),
		}, nil, margins)
		if err != nil {
			log.Fatalf("Failed to configure replicate adapter: %v", err)
		}
	}
	if cfg.ElevenLabsAPIKey != "" {
		deps.ElevenLabs, err = adapters.NewElevenLabs(adapters.ElevenLabsConfig{
			APIKey:      cfg.ElevenLabsAPIKey,
			PerCharRate: rates.ElevenLabsRate(),
		}, nil, margins)
		if err != nil {
			log.Fatalf("Failed to configure elevenlabs adapter: %v", err)
		}
	}
	if cfg.WhisperAPIKey != "" {
		deps.Whisper, err = adapters.NewWhisper(adapters.WhisperConfig{
			APIKey:        cfg.WhisperAPIKey,
			PerMinuteRate: rates.WhisperRate(),
		}, nil, margins)
		if err != nil {
			log.Fatalf("Failed to configure whisper adapter: %v", err)
		}
	}
	if cfg.TwilioAccountSID != "" {
		deps.Twilio, err = adapters.NewTwilio(adapters.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			Rates: adapters.TwilioRates{
				PerMinute:    credit.FromDollars(rates.Twilio.PerMinute),
				PerSMS:       credit.FromDollars(rates.Twilio.PerSMS),
				PerMMS:       credit.FromDollars(rates.Twilio.PerMMS),
				ProvisionFee: credit.FromDollars(rates.Twilio.ProvisionFee),
			},
		}, nil, margins)
		if err != nil {
			log.Fatalf("Failed to configure twilio adapter: %v", err)
		}

		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				log.Fatalf("Failed to parse Redis URL: %v", err)
			}
			penalties := webhook.NewPenaltyStore(redis.NewClient(opts), webhook.PenaltyConfig{}, appLog)
			deps.Guard = webhook.NewGuard(cfg.TwilioAuthToken, penalties)
		} else {
			deps.Guard = webhook.NewGuard(cfg.TwilioAuthToken, nil)
			log.Println("REDIS_URL not set: webhook lockout tracking disabled")
		}
	}

	g := New(deps)

	log.Printf("BotFleet gateway listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, g.Routes()))
}
