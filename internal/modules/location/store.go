// README: Location store backed by Redis keys with TTL and a driver GEO set.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/types"
)

const driverGeoKey = "geo:drivers"

type Store struct {
	redis *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{redis: rdb}
}

func locationKey(kind UserType, id types.ID) string {
	return fmt.Sprintf("loc:%s:%s", kind, id)
}

// Set writes the last-known position with a TTL. Drivers are also added to
// the GEO set used for radius lookups.
func (s *Store) Set(ctx context.Context, kind UserType, id types.ID, loc types.Location, ttl time.Duration) error {
	raw, err := json.Marshal(entryFrom(loc))
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, locationKey(kind, id), raw, ttl)
	if kind == UserDriver {
		pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{Name: string(id), Longitude: loc.Lng, Latitude: loc.Lat})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the cached position; a miss or an expired key is (false, nil).
func (s *Store) Get(ctx context.Context, kind UserType, id types.ID) (types.Location, bool, error) {
	raw, err := s.redis.Get(ctx, locationKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Location{}, false, nil
	}
	if err != nil {
		return types.Location{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return types.Location{}, false, err
	}
	return types.Location{Lat: e.Lat, Lng: e.Lng, CapturedAt: time.UnixMilli(e.Timestamp).UTC()}, true, nil
}

// DriversWithin lists driver ids in the GEO set within radiusKm of origin,
// closest first. GEO members do not expire, so callers still confirm
// freshness with Get.
func (s *Store) DriversWithin(ctx context.Context, origin types.Location, radiusKm float64) ([]types.ID, error) {
	res, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  origin.Lng,
		Latitude:   origin.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(res))
	for i, m := range res {
		ids[i] = types.ID(m)
	}
	return ids, nil
}
