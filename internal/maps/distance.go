// README: Distance/ETA provider contract consumed by ranking and booking.
package maps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ridecore/internal/types"
)

// Estimate is road distance and travel time between two points.
type Estimate struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_minutes"`
}

// Result is one cell of a distance matrix.
type Result struct {
	Estimate
	Err error
}

// Provider returns a single bounded-latency estimate. Implementations must
// honour ctx cancellation and wrap failures with types.ErrUpstreamUnavailable.
type Provider interface {
	Estimate(ctx context.Context, origin, destination types.Location) (Estimate, error)
}

// BatchProvider answers a whole origins x destinations matrix in one call.
// A per-cell failure is reported in Result.Err; a returned error fails every cell.
// The matrix must have one row per origin and one column per destination.
type BatchProvider interface {
	Provider
	EstimateMany(ctx context.Context, origins, destinations []types.Location) ([][]Result, error)
}

// maxPairConcurrency bounds the fan-out used for providers without a batch form.
const maxPairConcurrency = 8

// EstimateMany uses the batch form when p has one and otherwise issues one
// request per pair. Both paths return the same matrix shape; a batch answer
// of any other shape is an upstream failure.
func EstimateMany(ctx context.Context, p Provider, origins, destinations []types.Location) ([][]Result, error) {
	if bp, ok := p.(BatchProvider); ok {
		m, err := bp.EstimateMany(ctx, origins, destinations)
		if err != nil {
			return nil, err
		}
		if err := checkShape(m, len(origins), len(destinations)); err != nil {
			return nil, err
		}
		return m, nil
	}
	return estimateEach(ctx, p, origins, destinations), nil
}

func checkShape(m [][]Result, rows, cols int) error {
	if len(m) != rows {
		return upstreamErr("distance matrix has %d rows, want %d", len(m), rows)
	}
	for i, row := range m {
		if len(row) != cols {
			return upstreamErr("distance matrix row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	return nil
}

func estimateEach(ctx context.Context, p Provider, origins, destinations []types.Location) [][]Result {
	out := newMatrix(len(origins), len(destinations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPairConcurrency)
	for i := range origins {
		for j := range destinations {
			g.Go(func() error {
				est, err := p.Estimate(gctx, origins[i], destinations[j])
				out[i][j] = Result{Estimate: est, Err: err}
				return nil
			})
		}
	}
	_ = g.Wait()
	return out
}

func newMatrix(rows, cols int) [][]Result {
	out := make([][]Result, rows)
	for i := range out {
		out[i] = make([]Result, cols)
	}
	return out
}

func upstreamErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrUpstreamUnavailable, fmt.Sprintf(format, args...))
}
