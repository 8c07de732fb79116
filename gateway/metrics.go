// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the metered gateway.
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botfleet_gateway_requests_total",
			Help: "Total number of gateway requests by capability and status",
		},
		[]string{"capability", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botfleet_gateway_request_duration_milliseconds",
			Help:    "Gateway request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"capability"},
	)
	promBudgetBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botfleet_gateway_budget_blocks_total",
			Help: "Total number of requests rejected by the budget gate",
		},
		[]string{"reason"},
	)
	promUpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botfleet_gateway_upstream_errors_total",
			Help: "Total number of upstream provider failures",
		},
		[]string{"provider"},
	)
	promWebhookRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botfleet_gateway_webhook_rejections_total",
			Help: "Total number of rejected inbound webhooks",
		},
		[]string{"reason"},
	)
	promChargedNanos = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botfleet_gateway_charged_nanodollars_total",
			Help: "Total tenant charges in nanodollars by capability",
		},
		[]string{"capability"},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promBudgetBlocks)
	prometheus.MustRegister(promUpstreamErrors)
	prometheus.MustRegister(promWebhookRejections)
	prometheus.MustRegister(promChargedNanos)
}
