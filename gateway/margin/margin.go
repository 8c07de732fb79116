// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package margin resolves the multiplier applied to wholesale provider cost
// to produce the tenant-facing charge. Rules are scoped by provider and
// matched against the model name with a suffix wildcard; rule order is
// significant and first match wins, so rule authors control precedence by
// placement rather than pattern specificity.
package margin

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"botfleet/platform/gateway/credit"
)

// Rule maps a (provider, model pattern) pair to a margin multiplier.
type Rule struct {
	Provider string       `yaml:"provider"`
	Model    string       `yaml:"model"`
	Margin   credit.Ratio `yaml:"margin"`
}

// Config holds the ordered margin rule list and the fallback multiplier.
type Config struct {
	DefaultMargin credit.Ratio `yaml:"default_margin"`
	Rules         []Rule       `yaml:"rules"`
}

// NewConfig returns a config with no rules and the given default margin.
func NewConfig(defaultMargin credit.Ratio) *Config {
	return &Config{DefaultMargin: defaultMargin}
}

// Load reads a margin config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read margin config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse margin config: %w", err)
	}
	if cfg.DefaultMargin.Den == 0 {
		cfg.DefaultMargin = credit.One()
	}
	return &cfg, nil
}

// Resolve scans the rules in order and returns the margin of the first rule
// whose provider matches exactly and whose model pattern matches. If no rule
// matches, the default margin is returned.
func (c *Config) Resolve(provider, model string) credit.Ratio {
	for _, rule := range c.Rules {
		if rule.Provider != provider {
			continue
		}
		if matchModel(rule.Model, model) {
			return rule.Margin
		}
	}
	return c.DefaultMargin
}

// WithMargin applies a margin multiplier to a cost through the shared credit
// arithmetic. All adapters charge through this helper, never by inline
// multiplication.
func WithMargin(cost credit.Credit, m credit.Ratio) credit.Credit {
	return cost.MulRatio(m)
}

// WithConfig resolves the margin for (provider, model) and applies it to cost.
func WithConfig(cost credit.Credit, cfg *Config, provider, model string) credit.Credit {
	return WithMargin(cost, cfg.Resolve(provider, model))
}

// matchModel matches a model name against a pattern. The pattern is a literal
// prefix up to the first '*'; anything after the '*' is ignored. A pattern
// without '*' must match exactly, and a bare "*" matches every model.
func matchModel(pattern, model string) bool {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return pattern == model
	}
	return strings.HasPrefix(model, pattern[:star])
}
