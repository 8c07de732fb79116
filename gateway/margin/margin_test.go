// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package margin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/platform/gateway/credit"
)

func TestMatchModel(t *testing.T) {
	tests := []struct {
		pattern string
		model   string
		want    bool
	}{
		{"anthropic/claude-opus-*", "anthropic/claude-opus-4", true},
		{"anthropic/claude-opus-*", "anthropic/claude-sonnet-4", false},
		{"*", "anything-at-all", true},
		{"*", "", true},
		{"gpt-4o", "gpt-4o", true},
		{"gpt-4o", "gpt-4o-mini", false},
		{"gpt-4o*", "gpt-4o-mini", true},
		// Everything after the star is ignored.
		{"gpt-*-turbo", "gpt-999", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchModel(tt.pattern, tt.model), "%s vs %s", tt.pattern, tt.model)
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	cfg := &Config{
		DefaultMargin: credit.MustParseRatio("1.2"),
		Rules: []Rule{
			{Provider: "openrouter", Model: "gpt-*", Margin: credit.MustParseRatio("1.5")},
			// More specific, but later: must lose to the rule above.
			{Provider: "openrouter", Model: "gpt-4o", Margin: credit.MustParseRatio("2")},
		},
	}

	assert.Equal(t, credit.MustParseRatio("1.5"), cfg.Resolve("openrouter", "gpt-4o"))
}

func TestResolveProviderScoped(t *testing.T) {
	cfg := &Config{
		DefaultMargin: credit.MustParseRatio("1.2"),
		Rules: []Rule{
			{Provider: "openrouter", Model: "*", Margin: credit.MustParseRatio("1.5")},
			{Provider: "elevenlabs", Model: "*", Margin: credit.MustParseRatio("1.3")},
		},
	}

	assert.Equal(t, credit.MustParseRatio("1.5"), cfg.Resolve("openrouter", "whatever"))
	assert.Equal(t, credit.MustParseRatio("1.3"), cfg.Resolve("elevenlabs", "whatever"))
	// Unknown provider falls back to the default.
	assert.Equal(t, credit.MustParseRatio("1.2"), cfg.Resolve("replicate", "whatever"))
}

func TestResolveDefaultWhenNoRuleMatches(t *testing.T) {
	cfg := &Config{
		DefaultMargin: credit.MustParseRatio("1.25"),
		Rules: []Rule{
			{Provider: "openrouter", Model: "gpt-4*", Margin: credit.MustParseRatio("1.5")},
		},
	}

	assert.Equal(t, credit.MustParseRatio("1.25"), cfg.Resolve("openrouter", "llama-3"))
}

func TestWithMargin(t *testing.T) {
	cost := credit.FromDollars(0.40)
	assert.Equal(t, credit.FromDollars(0.50), WithMargin(cost, credit.MustParseRatio("1.25")))
	assert.Equal(t, cost, WithMargin(cost, credit.One()))
}

func TestWithConfig(t *testing.T) {
	cfg := &Config{
		DefaultMargin: credit.One(),
		Rules: []Rule{
			{Provider: "elevenlabs", Model: "*", Margin: credit.MustParseRatio("2")},
		},
	}

	cost := credit.FromDollars(0.10)
	assert.Equal(t, credit.FromDollars(0.20), WithConfig(cost, cfg, "elevenlabs", "turbo-v2"))
	assert.Equal(t, cost, WithConfig(cost, cfg, "openrouter", "gpt-4o"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "margins.yaml")
	data := `
default_margin: "1.2"
rules:
  - provider: openrouter
    model: "anthropic/claude-opus-*"
    margin: "1.6"
  - provider: openrouter
    model: "*"
    margin: "1.4"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, credit.MustParseRatio("1.2"), cfg.DefaultMargin)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, credit.MustParseRatio("1.6"), cfg.Resolve("openrouter", "anthropic/claude-opus-4"))
	assert.Equal(t, credit.MustParseRatio("1.4"), cfg.Resolve("openrouter", "anthropic/claude-sonnet-4"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
