// README: Driver ranking: orders candidates by pickup ETA and attaches the
// pickup to destination trip estimate and fare quote.
package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ridecore/internal/maps"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/observability"
	"ridecore/internal/types"
)

type Pricing interface {
	FareWithSurge(distanceKm, durationMin float64, passengerCount, driverCount int) (pricing.Quote, error)
}

type Service struct {
	distance maps.Provider
	pricing  Pricing
	timeout  time.Duration
	log      *slog.Logger

	directory Directory
	locations LocationSource
}

func NewService(distance maps.Provider, pricing Pricing, timeout time.Duration, log *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{distance: distance, pricing: pricing, timeout: timeout, log: log}
}

// Rank estimates every candidate against the pickup and sorts by ETA, then
// distance, then driver id. Candidates the provider cannot estimate are
// dropped and the result is marked degraded. A failed trip estimate is an
// error: a quote is never produced from a fallback.
func (s *Service) Rank(ctx context.Context, req Request) (Result, error) {
	if len(req.Candidates) == 0 {
		return Result{}, fmt.Errorf("%w: at least one candidate is required", types.ErrValidation)
	}
	if err := req.Pickup.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	if req.Destination != nil {
		if err := req.Destination.Validate(); err != nil {
			return Result{}, err
		}
		trip, quote, err := s.quoteTrip(ctx, req)
		if err != nil {
			observability.RankingRequests.WithLabelValues("failed").Inc()
			return Result{}, err
		}
		res.Trip, res.Quote = &trip, &quote
	}

	origins := make([]types.Location, len(req.Candidates))
	for i, c := range req.Candidates {
		origins[i] = c.Location
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	matrix, err := maps.EstimateMany(pctx, s.distance, origins, []types.Location{req.Pickup})
	cancel()
	if err != nil {
		s.log.Warn("pickup estimates unavailable", "candidates", len(req.Candidates), "error", err)
		matrix = nil
	}

	for i, c := range req.Candidates {
		if matrix == nil || matrix[i][0].Err != nil {
			res.Dropped = append(res.Dropped, c.DriverID)
			continue
		}
		est := matrix[i][0].Estimate
		res.Entries = append(res.Entries, Entry{
			DriverID:         c.DriverID,
			Location:         c.Location,
			PickupDistanceKm: est.DistanceKm,
			PickupETAMin:     est.DurationMin,
			Trip:             res.Trip,
			Quote:            res.Quote,
		})
	}
	sortEntries(res.Entries)

	res.Degraded = len(res.Dropped) > 0
	outcome := "ok"
	if res.Degraded {
		outcome = "degraded"
		s.log.Warn("ranking degraded", "dropped", len(res.Dropped), "ranked", len(res.Entries))
	}
	observability.RankingRequests.WithLabelValues(outcome).Inc()
	return res, nil
}

func (s *Service) quoteTrip(ctx context.Context, req Request) (maps.Estimate, pricing.Quote, error) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	trip, err := s.distance.Estimate(tctx, req.Pickup, *req.Destination)
	if err != nil {
		return maps.Estimate{}, pricing.Quote{}, fmt.Errorf("%w: trip estimate: %v", types.ErrUpstreamUnavailable, err)
	}
	quote, err := s.pricing.FareWithSurge(trip.DistanceKm, trip.DurationMin, req.PassengerCount, req.DriverCount)
	if err != nil {
		return maps.Estimate{}, pricing.Quote{}, err
	}
	return trip, quote, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.PickupETAMin != b.PickupETAMin {
			return a.PickupETAMin < b.PickupETAMin
		}
		if a.PickupDistanceKm != b.PickupDistanceKm {
			return a.PickupDistanceKm < b.PickupDistanceKm
		}
		return a.DriverID < b.DriverID
	})
}
