// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"botfleet/platform/gateway/budget"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	ctxKeyTenant    contextKey = "tenant"
	ctxKeyRequestID contextKey = "request_id"
)

// tenantFrom returns the authenticated tenant stored by the auth
// middleware.
func tenantFrom(ctx context.Context) budget.Tenant {
	tenant, _ := ctx.Value(ctxKeyTenant).(budget.Tenant)
	return tenant
}

// requestIDFrom returns the request id assigned by the middleware.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// authenticate resolves the bearer service key to a tenant and stores it in
// the request context. Missing or unknown keys are rejected with 401 before
// the handler runs.
func (g *Gateway) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing bearer service key")
			return
		}
		serviceKey := strings.TrimPrefix(header, "Bearer ")

		tenant, err := g.keys.Resolve(r.Context(), serviceKey)
		if err != nil {
			g.log.ErrorWithCode("", "", "Service key resolution failed", http.StatusServiceUnavailable, err, nil)
			writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "service key store unavailable")
			return
		}
		if tenant == nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid service key")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyTenant, *tenant)
		next(w, r.WithContext(ctx))
	}
}

// statusRecorder captures the response status for metrics and logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument assigns a request id, times the request, and feeds the
// per-capability metrics and the request log.
func (g *Gateway) instrument(capability string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(recorder, r.WithContext(ctx))
		elapsed := time.Since(start)

		promRequestsTotal.WithLabelValues(capability, strconv.Itoa(recorder.status)).Inc()
		promRequestDuration.WithLabelValues(capability).Observe(float64(elapsed.Milliseconds()))

		g.log.InfoWithDuration(tenantFrom(r.Context()).ID, requestID, "Request completed",
			float64(elapsed.Milliseconds()), map[string]interface{}{
				"capability": capability,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     recorder.status,
			})
	}
}

// sourceIP extracts the caller address for penalty tracking, preferring the
// forwarded header set by the edge proxy.
func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
