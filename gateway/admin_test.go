// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/platform/gateway/budget"
	"botfleet/platform/gateway/meter"
	"botfleet/platform/gateway/override"
	"botfleet/platform/shared/logger"
)

var testAdminSecret = []byte("admin-signing-secret")

// mockOverrideRepo is an in-memory override.Repository.
type mockOverrideRepo struct {
	overrides map[string]override.RateOverride
}

func newMockOverrideRepo() *mockOverrideRepo {
	return &mockOverrideRepo{overrides: make(map[string]override.RateOverride)}
}

func (m *mockOverrideRepo) Create(ctx context.Context, o *override.RateOverride) error {
	if _, ok := m.overrides[o.ID]; ok {
		return override.ErrExists
	}
	m.overrides[o.ID] = *o
	return nil
}

func (m *mockOverrideRepo) Get(ctx context.Context, id string) (*override.RateOverride, error) {
	o, ok := m.overrides[id]
	if !ok {
		return nil, override.ErrNotFound
	}
	return &o, nil
}

func (m *mockOverrideRepo) Update(ctx context.Context, o *override.RateOverride) error {
	if _, ok := m.overrides[o.ID]; !ok {
		return override.ErrNotFound
	}
	m.overrides[o.ID] = *o
	return nil
}

func (m *mockOverrideRepo) Cancel(ctx context.Context, id string) error {
	o, ok := m.overrides[id]
	if !ok {
		return override.ErrNotFound
	}
	o.Status = override.StatusCancelled
	m.overrides[id] = o
	return nil
}

func (m *mockOverrideRepo) List(ctx context.Context, adapterID string) ([]override.RateOverride, error) {
	var out []override.RateOverride
	for _, o := range m.overrides {
		if adapterID == "" || o.AdapterID == adapterID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOverrideRepo) ActiveForAdapter(ctx context.Context, adapterID string, at time.Time) (*override.RateOverride, error) {
	for _, o := range m.overrides {
		if o.AdapterID == adapterID && o.ActiveAt(at) {
			active := o
			return &active, nil
		}
	}
	return nil, override.ErrNotFound
}

func newAdminEnv(t *testing.T) (http.Handler, *mockOverrideRepo) {
	t.Helper()

	log := logger.New("gateway-test")
	repo := newMockOverrideRepo()
	g := New(Deps{
		Keys:        &mockDirectory{},
		Tenants:     &mockDirectory{},
		Gate:        budget.NewGate(&mockSpend{}, nil, 0, log),
		Recorder:    meter.NewRecorder(&mockSink{}, log),
		Overrides:   override.NewService(repo, nil, log),
		AdminSecret: testAdminSecret,
		Log:         log,
	})
	return g.Routes(), repo
}

func adminToken(t *testing.T, role string, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": role,
		"sub":  "ops@botfleet.test",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestAdminOverridesRequireToken(t *testing.T) {
	handler, _ := newAdminEnv(t)

	req := httptest.NewRequest("GET", "/v1/admin/overrides", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthorized, errorCode(t, rec))
}

func TestAdminOverridesRejectForgedToken(t *testing.T) {
	handler, _ := newAdminEnv(t)

	req := httptest.NewRequest("GET", "/v1/admin/overrides", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", []byte("wrong-secret")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOverridesRejectUnexpectedSigningMethod(t *testing.T) {
	handler, _ := newAdminEnv(t)

	// Correct secret, wrong algorithm: only HS256 tokens are accepted.
	token := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testAdminSecret)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/v1/admin/overrides", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOverridesRejectNonAdminRole(t *testing.T) {
	handler, _ := newAdminEnv(t)

	req := httptest.NewRequest("GET", "/v1/admin/overrides", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "developer", testAdminSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreateAndCancelOverride(t *testing.T) {
	handler, repo := newAdminEnv(t)
	token := adminToken(t, "admin", testAdminSecret)

	body := `{
		"adapter_id": "openrouter",
		"discount_percent": 20,
		"starts_at": "2026-09-01T00:00:00Z",
		"ends_at": "2026-10-01T00:00:00Z"
	}`
	req := httptest.NewRequest("POST", "/v1/admin/overrides", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Len(t, repo.overrides, 1)

	req = httptest.NewRequest("DELETE", "/v1/admin/overrides/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, override.StatusCancelled, repo.overrides[id].Status)
}

func TestAdminGetUnknownOverride(t *testing.T) {
	handler, _ := newAdminEnv(t)

	req := httptest.NewRequest("GET", "/v1/admin/overrides/ov-missing", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin", testAdminSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, rec))
}
