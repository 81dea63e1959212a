package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"ridecore/internal/observability"
	"ridecore/internal/types"
)

// GoogleProvider is backed by the Distance Matrix API.
type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Estimate(ctx context.Context, origin, destination types.Location) (Estimate, error) {
	m, err := p.EstimateMany(ctx, []types.Location{origin}, []types.Location{destination})
	if err != nil {
		return Estimate{}, err
	}
	return m[0][0].Estimate, m[0][0].Err
}

func (p *GoogleProvider) EstimateMany(ctx context.Context, origins, destinations []types.Location) ([][]Result, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return newMatrix(len(origins), len(destinations)), nil
	}
	req := &maps.DistanceMatrixRequest{
		Origins:      latLngStrings(origins),
		Destinations: latLngStrings(destinations),
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}

	started := time.Now()
	resp, err := p.client.DistanceMatrix(ctx, req)
	observability.ObserveProvider("google", started, err)
	if err != nil {
		return nil, upstreamErr("distance matrix: %v", err)
	}
	if len(resp.Rows) != len(origins) {
		return nil, upstreamErr("distance matrix returned %d rows for %d origins", len(resp.Rows), len(origins))
	}

	out := newMatrix(len(origins), len(destinations))
	for i, row := range resp.Rows {
		for j := range destinations {
			if j >= len(row.Elements) {
				out[i][j].Err = upstreamErr("distance matrix row %d is short", i)
				continue
			}
			el := row.Elements[j]
			if el.Status != "OK" {
				out[i][j].Err = upstreamErr("no route from %s to %s: %s", origins[i], destinations[j], el.Status)
				continue
			}
			out[i][j].Estimate = Estimate{
				DistanceKm:  float64(el.Distance.Meters) / 1000.0,
				DurationMin: el.Duration.Minutes(),
			}
		}
	}
	return out, nil
}

func latLngStrings(locs []types.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.String()
	}
	return out
}
