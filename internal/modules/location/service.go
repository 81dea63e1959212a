// README: Location service handles high-frequency position updates: a TTL
// cache for ranking reads and an optional realtime mirror for clients.
package location

import (
	"context"
	"log/slog"
	"time"

	"ridecore/internal/types"
)

// Cache is the fast last-known-location store. *Store implements it.
type Cache interface {
	Set(ctx context.Context, kind UserType, id types.ID, loc types.Location, ttl time.Duration) error
	Get(ctx context.Context, kind UserType, id types.ID) (types.Location, bool, error)
}

// GeoIndex answers radius queries over cached driver positions. *Store
// implements it.
type GeoIndex interface {
	DriversWithin(ctx context.Context, origin types.Location, radiusKm float64) ([]types.ID, error)
}

// Mirror publishes positions for clients. *FirebaseMirror implements it.
type Mirror interface {
	Publish(ctx context.Context, kind UserType, id types.ID, loc types.Location) error
}

type Config struct {
	DriverTTL    time.Duration
	PassengerTTL time.Duration
}

type Service struct {
	cache  Cache
	mirror Mirror
	cfg    Config
	log    *slog.Logger
}

// NewService accepts a nil cache or mirror; the missing side becomes a no-op.
func NewService(cache Cache, mirror Mirror, cfg Config, log *slog.Logger) *Service {
	if cfg.DriverTTL <= 0 {
		cfg.DriverTTL = 10 * time.Second
	}
	if cfg.PassengerTTL <= 0 {
		cfg.PassengerTTL = 60 * time.Second
	}
	return &Service{cache: cache, mirror: mirror, cfg: cfg, log: log}
}

func (s *Service) UpdateDriver(ctx context.Context, id types.ID, loc types.Location) error {
	return s.update(ctx, UserDriver, id, loc, s.cfg.DriverTTL)
}

func (s *Service) UpdatePassenger(ctx context.Context, id types.ID, loc types.Location) error {
	return s.update(ctx, UserPassenger, id, loc, s.cfg.PassengerTTL)
}

func (s *Service) update(ctx context.Context, kind UserType, id types.ID, loc types.Location, ttl time.Duration) error {
	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, kind, id, loc); err != nil {
			s.log.Warn("location mirror publish failed", "user_type", kind, "user_id", id, "error", err)
		}
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, kind, id, loc, ttl)
}

// LatestDriver returns the cached driver position. Misses and cache errors
// both report false; callers fall back to the repository.
func (s *Service) LatestDriver(ctx context.Context, id types.ID) (types.Location, bool) {
	if s.cache == nil {
		return types.Location{}, false
	}
	loc, ok, err := s.cache.Get(ctx, UserDriver, id)
	if err != nil {
		s.log.Warn("location cache read failed", "driver_id", id, "error", err)
		return types.Location{}, false
	}
	return loc, ok
}

// DriversWithin lists drivers whose cached position lies within radiusKm of
// origin. ok is false when the cache cannot answer radius queries or fails.
func (s *Service) DriversWithin(ctx context.Context, origin types.Location, radiusKm float64) ([]types.ID, bool) {
	geo, isGeo := s.cache.(GeoIndex)
	if !isGeo {
		return nil, false
	}
	ids, err := geo.DriversWithin(ctx, origin, radiusKm)
	if err != nil {
		s.log.Warn("driver radius search failed", "radius_km", radiusKm, "error", err)
		return nil, false
	}
	return ids, true
}
