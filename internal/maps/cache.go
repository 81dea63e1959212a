package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/types"
)

const distanceKeyFormat = "distance:%.5f,%.5f:%.5f,%.5f"

// CachedProvider memoises estimates in Redis. Cache errors are logged and
// bypassed; only the inner provider can fail a request.
type CachedProvider struct {
	inner Provider
	redis *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, redis: rdb, ttl: ttl, log: log}
}

func (p *CachedProvider) Estimate(ctx context.Context, origin, destination types.Location) (Estimate, error) {
	if est, ok := p.get(ctx, origin, destination); ok {
		return est, nil
	}
	est, err := p.inner.Estimate(ctx, origin, destination)
	if err != nil {
		return Estimate{}, err
	}
	p.set(ctx, origin, destination, est)
	return est, nil
}

func (p *CachedProvider) EstimateMany(ctx context.Context, origins, destinations []types.Location) ([][]Result, error) {
	out := newMatrix(len(origins), len(destinations))
	var missOrigins []int
	for i := range origins {
		hit := true
		for j := range destinations {
			est, ok := p.get(ctx, origins[i], destinations[j])
			if !ok {
				hit = false
				break
			}
			out[i][j] = Result{Estimate: est}
		}
		if !hit {
			missOrigins = append(missOrigins, i)
		}
	}
	if len(missOrigins) == 0 {
		return out, nil
	}

	sub := make([]types.Location, len(missOrigins))
	for k, i := range missOrigins {
		sub[k] = origins[i]
	}
	m, err := EstimateMany(ctx, p.inner, sub, destinations)
	if err != nil {
		return nil, err
	}
	for k, i := range missOrigins {
		out[i] = m[k]
		for j, r := range m[k] {
			if r.Err == nil {
				p.set(ctx, origins[i], destinations[j], r.Estimate)
			}
		}
	}
	return out, nil
}

func (p *CachedProvider) get(ctx context.Context, o, d types.Location) (Estimate, bool) {
	val, err := p.redis.Get(ctx, cacheKey(o, d)).Bytes()
	if err == redis.Nil {
		return Estimate{}, false
	}
	if err != nil {
		p.log.Warn("distance cache read failed", "error", err)
		return Estimate{}, false
	}
	var est Estimate
	if err := json.Unmarshal(val, &est); err != nil {
		return Estimate{}, false
	}
	return est, true
}

func (p *CachedProvider) set(ctx context.Context, o, d types.Location, est Estimate) {
	b, err := json.Marshal(est)
	if err != nil {
		return
	}
	if err := p.redis.Set(ctx, cacheKey(o, d), b, p.ttl).Err(); err != nil {
		p.log.Warn("distance cache write failed", "error", err)
	}
}

func cacheKey(o, d types.Location) string {
	return fmt.Sprintf(distanceKeyFormat, o.Lat, o.Lng, d.Lat, d.Lng)
}
