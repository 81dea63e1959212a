package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"ridecore/internal/observability"
	"ridecore/internal/types"
)

// Route is a driving route summary for client display.
type Route struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_minutes"`
	Polyline    string  `json:"polyline"`
	Summary     string  `json:"summary"`
}

// RouteService handles interactions with the Google Directions API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Directions returns the first driving route between origin and destination.
func (s *RouteService) Directions(ctx context.Context, origin, destination types.Location) (Route, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeDriving,
		Units:       maps.UnitsMetric,
	}

	started := time.Now()
	routes, _, err := s.client.Directions(ctx, r)
	observability.ObserveProvider("google_directions", started, err)
	if err != nil {
		return Route{}, upstreamErr("directions: %v", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, upstreamErr("no route found")
	}

	var meters int
	var dur time.Duration
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		dur += leg.Duration
	}
	return Route{
		DistanceKm:  float64(meters) / 1000.0,
		DurationMin: dur.Minutes(),
		Polyline:    routes[0].OverviewPolyline.Points,
		Summary:     routes[0].Summary,
	}, nil
}
