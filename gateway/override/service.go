// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package override

import (
	"context"
	"time"

	"github.com/google/uuid"

	"botfleet/platform/gateway/credit"
	"botfleet/platform/shared/logger"
)

// Service layers the TTL cache over the repository and owns override
// lifecycle mutations. Every mutation invalidates the adapter's cache entry
// so policy changes do not wait out the TTL.
type Service struct {
	repo  Repository
	cache *Cache
	log   *logger.Logger
	now   func() time.Time
}

// NewService creates a new override service.
func NewService(repo Repository, cache *Cache, log *logger.Logger) *Service {
	if cache == nil {
		cache = NewCache(DefaultCacheTTL)
	}
	if log == nil {
		log = logger.New("override")
	}
	return &Service{repo: repo, cache: cache, log: log, now: time.Now}
}

// ActiveFor returns the override currently active for an adapter, or nil when
// none applies. Repository errors degrade to "no override" rather than
// failing the request: a discount lookup must never take the billing path
// down.
func (s *Service) ActiveFor(ctx context.Context, adapterID string) *RateOverride {
	now := s.now().UTC()

	if o, ok := s.cache.Get(adapterID); ok {
		if o != nil && !o.ActiveAt(now) {
			// Cached override aged out of its window before the TTL did.
			return nil
		}
		return o
	}

	o, err := s.repo.ActiveForAdapter(ctx, adapterID, now)
	if err == ErrNotFound {
		s.cache.Put(adapterID, nil)
		return nil
	}
	if err != nil {
		s.log.Error("", "", "rate override lookup failed", map[string]interface{}{
			"adapter_id": adapterID,
			"error":      err.Error(),
		})
		return nil
	}

	s.cache.Put(adapterID, o)
	return o
}

// ApplyDiscount reduces a resolved charge by the adapter's active override,
// if any. This layers on top of the static margin config lookup rather than
// replacing it.
func (s *Service) ApplyDiscount(ctx context.Context, adapterID string, charge credit.Credit) credit.Credit {
	o := s.ActiveFor(ctx, adapterID)
	if o == nil {
		return charge
	}
	return charge.MulRatio(o.Multiplier())
}

// Create validates and persists a new override.
func (s *Service) Create(ctx context.Context, o *RateOverride) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusActive
	}
	if err := o.Validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.repo.Create(ctx, o); err != nil {
		return err
	}
	s.cache.Invalidate(o.AdapterID)

	s.log.Info("", "", "rate override created", map[string]interface{}{
		"override_id": o.ID,
		"adapter_id":  o.AdapterID,
		"discount":    o.DiscountPercent,
	})
	return nil
}

// Get retrieves an override by ID.
func (s *Service) Get(ctx context.Context, id string) (*RateOverride, error) {
	return s.repo.Get(ctx, id)
}

// Update validates and rewrites an override.
func (s *Service) Update(ctx context.Context, o *RateOverride) error {
	if err := o.Validate(); err != nil {
		return err
	}

	// The adapter may change in an update; invalidate the old entry too.
	prev, err := s.repo.Get(ctx, o.ID)
	if err != nil {
		return err
	}

	o.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, o); err != nil {
		return err
	}

	s.cache.Invalidate(o.AdapterID)
	if prev.AdapterID != o.AdapterID {
		s.cache.Invalidate(prev.AdapterID)
	}
	return nil
}

// Cancel marks an override cancelled and invalidates its adapter's cache
// entry.
func (s *Service) Cancel(ctx context.Context, id string) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(o.AdapterID)

	s.log.Info("", "", "rate override cancelled", map[string]interface{}{
		"override_id": id,
		"adapter_id":  o.AdapterID,
	})
	return nil
}

// List returns overrides for an adapter (all overrides when adapterID is
// empty).
func (s *Service) List(ctx context.Context, adapterID string) ([]RateOverride, error) {
	return s.repo.List(ctx, adapterID)
}
