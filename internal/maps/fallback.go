package maps

import (
	"context"
	"log/slog"

	"ridecore/internal/types"
)

// FallbackProvider asks Primary first and answers failed pairs from Secondary.
// Context cancellation is not masked: a caller timeout stays a failure.
type FallbackProvider struct {
	Primary   Provider
	Secondary Provider
	Log       *slog.Logger
}

func (p *FallbackProvider) Estimate(ctx context.Context, origin, destination types.Location) (Estimate, error) {
	est, err := p.Primary.Estimate(ctx, origin, destination)
	if err == nil || ctx.Err() != nil {
		return est, err
	}
	p.logFallback(err)
	return p.Secondary.Estimate(ctx, origin, destination)
}

func (p *FallbackProvider) EstimateMany(ctx context.Context, origins, destinations []types.Location) ([][]Result, error) {
	m, err := EstimateMany(ctx, p.Primary, origins, destinations)
	if ctx.Err() != nil {
		return nil, upstreamErr("%v", ctx.Err())
	}
	if err != nil {
		p.logFallback(err)
		return EstimateMany(ctx, p.Secondary, origins, destinations)
	}
	for i := range m {
		for j := range m[i] {
			if m[i][j].Err == nil {
				continue
			}
			p.logFallback(m[i][j].Err)
			est, err := p.Secondary.Estimate(ctx, origins[i], destinations[j])
			m[i][j] = Result{Estimate: est, Err: err}
		}
	}
	return m, nil
}

func (p *FallbackProvider) logFallback(err error) {
	if p.Log != nil {
		p.Log.Warn("distance provider fallback", "error", err)
	}
}
