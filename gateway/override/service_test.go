// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package override

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/platform/gateway/credit"
)

// MockRepository implements Repository for testing
type MockRepository struct {
	mu        sync.RWMutex
	overrides map[string]*RateOverride

	activeCalls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{overrides: make(map[string]*RateOverride)}
}

func (m *MockRepository) Create(ctx context.Context, o *RateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.overrides[o.ID]; exists {
		return ErrExists
	}
	cp := *o
	m.overrides[o.ID] = &cp
	return nil
}

func (m *MockRepository) Get(ctx context.Context, id string) (*RateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.overrides[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MockRepository) Update(ctx context.Context, o *RateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overrides[o.ID]; !ok {
		return ErrNotFound
	}
	cp := *o
	m.overrides[o.ID] = &cp
	return nil
}

func (m *MockRepository) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = StatusCancelled
	return nil
}

func (m *MockRepository) List(ctx context.Context, adapterID string) ([]RateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RateOverride
	for _, o := range m.overrides {
		if adapterID == "" || o.AdapterID == adapterID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *MockRepository) ActiveForAdapter(ctx context.Context, adapterID string, at time.Time) (*RateOverride, error) {
	m.mu.Lock()
	m.activeCalls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.overrides {
		if o.AdapterID == adapterID && o.ActiveAt(at) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func activeOverride(id, adapter string, discount int) *RateOverride {
	return &RateOverride{
		ID:              id,
		AdapterID:       adapter,
		DiscountPercent: discount,
		StartsAt:        time.Now().Add(-time.Hour),
		Status:          StatusActive,
	}
}

func TestActiveAt(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)

	o := &RateOverride{
		Status:   StatusActive,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   &end,
	}

	assert.True(t, o.ActiveAt(now))
	assert.False(t, o.ActiveAt(now.Add(-2*time.Hour)), "before window")
	assert.False(t, o.ActiveAt(end), "window end is exclusive")

	o.Status = StatusCancelled
	assert.False(t, o.ActiveAt(now), "cancelled override is never active")

	// Open-ended override has no upper bound.
	open := &RateOverride{Status: StatusActive, StartsAt: now.Add(-time.Hour)}
	assert.True(t, open.ActiveAt(now.Add(24*365*time.Hour)))
}

func TestValidate(t *testing.T) {
	o := activeOverride("ov-1", "replicate", 10)
	require.NoError(t, o.Validate())

	bad := activeOverride("", "replicate", 10)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidID)

	bad = activeOverride("ov-1", "", 10)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAdapterID)

	bad = activeOverride("ov-1", "replicate", 0)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDiscount)

	bad = activeOverride("ov-1", "replicate", 101)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDiscount)

	bad = activeOverride("ov-1", "replicate", 10)
	ends := bad.StartsAt.Add(-time.Minute)
	bad.EndsAt = &ends
	assert.ErrorIs(t, bad.Validate(), ErrInvalidWindow)
}

func TestServiceActiveForCaches(t *testing.T) {
	repo := NewMockRepository()
	require.NoError(t, repo.Create(context.Background(), activeOverride("ov-1", "replicate", 20)))

	svc := NewService(repo, NewCache(time.Minute), nil)

	for i := 0; i < 5; i++ {
		o := svc.ActiveFor(context.Background(), "replicate")
		require.NotNil(t, o)
		assert.Equal(t, 20, o.DiscountPercent)
	}

	assert.Equal(t, 1, repo.activeCalls, "repeated lookups should hit the cache")
}

func TestServiceActiveForCachesNegative(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, NewCache(time.Minute), nil)

	for i := 0; i < 3; i++ {
		assert.Nil(t, svc.ActiveFor(context.Background(), "twilio"))
	}
	assert.Equal(t, 1, repo.activeCalls)
}

func TestServiceCreateInvalidatesCache(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, NewCache(time.Hour), nil)

	// Prime the cache with a negative result.
	assert.Nil(t, svc.ActiveFor(context.Background(), "replicate"))

	require.NoError(t, svc.Create(context.Background(), activeOverride("ov-1", "replicate", 25)))

	// The mutation must be visible immediately, without waiting out the TTL.
	o := svc.ActiveFor(context.Background(), "replicate")
	require.NotNil(t, o)
	assert.Equal(t, 25, o.DiscountPercent)
}

func TestServiceCancelInvalidatesCache(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, NewCache(time.Hour), nil)

	require.NoError(t, svc.Create(context.Background(), activeOverride("ov-1", "elevenlabs", 30)))
	require.NotNil(t, svc.ActiveFor(context.Background(), "elevenlabs"))

	require.NoError(t, svc.Cancel(context.Background(), "ov-1"))

	assert.Nil(t, svc.ActiveFor(context.Background(), "elevenlabs"))
}

func TestServiceUpdateInvalidatesBothAdapters(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, NewCache(time.Hour), nil)

	require.NoError(t, svc.Create(context.Background(), activeOverride("ov-1", "replicate", 10)))
	require.NotNil(t, svc.ActiveFor(context.Background(), "replicate"))

	moved := activeOverride("ov-1", "openrouter", 10)
	require.NoError(t, svc.Update(context.Background(), moved))

	assert.Nil(t, svc.ActiveFor(context.Background(), "replicate"))
	require.NotNil(t, svc.ActiveFor(context.Background(), "openrouter"))
}

func TestApplyDiscount(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, NewCache(time.Minute), nil)

	require.NoError(t, svc.Create(context.Background(), activeOverride("ov-1", "replicate", 20)))

	charge := credit.FromDollars(1.00)
	assert.Equal(t, credit.FromDollars(0.80), svc.ApplyDiscount(context.Background(), "replicate", charge))

	// No override: charge passes through untouched.
	assert.Equal(t, charge, svc.ApplyDiscount(context.Background(), "twilio", charge))
}

func TestServiceCreateRejectsInvalid(t *testing.T) {
	svc := NewService(NewMockRepository(), nil, nil)

	err := svc.Create(context.Background(), activeOverride("ov-1", "", 10))
	assert.ErrorIs(t, err, ErrInvalidAdapterID)
}
