// README: Fare engine: surge, ride fare and cancellation fee. Pure; no I/O.
package pricing

import (
	"fmt"
	"math"
	"time"

	"ridecore/internal/types"
)

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) Config() Config {
	return s.cfg
}

// MinimumFare is the fare floor used when a booking has no quoted fare yet.
func (s *Service) MinimumFare() float64 {
	return s.cfg.MinimumFare
}

// SurgeMultiplier maps the passenger/driver demand ratio onto the surge ladder.
func (s *Service) SurgeMultiplier(passengerCount, driverCount int) (float64, error) {
	if passengerCount < 0 || driverCount < 0 {
		return 0, fmt.Errorf("%w: demand counts must be non-negative", types.ErrValidation)
	}
	sc := s.cfg.Surge
	if driverCount == 0 {
		return sc.Ceiling, nil
	}
	ratio := float64(passengerCount) / float64(driverCount)
	switch {
	case ratio < 1.0:
		return 1.0, nil
	case ratio < 1.5:
		return capSurge(round2(lerp(sc.MildMin, sc.MildMax, (ratio-1.0)/0.5)), sc.Ceiling), nil
	case ratio < 1.8:
		return capSurge(round2(lerp(sc.MediumMin, sc.MediumMax, (ratio-1.5)/0.3)), sc.Ceiling), nil
	default:
		return capSurge(sc.High, sc.Ceiling), nil
	}
}

// Fare computes (base + km*rate + min*rate) * surge rounded to cents.
func (s *Service) Fare(distanceKm, durationMin, surge float64) (float64, error) {
	if err := checkNonNegative("distance", distanceKm); err != nil {
		return 0, err
	}
	if err := checkNonNegative("duration", durationMin); err != nil {
		return 0, err
	}
	if err := checkNonNegative("surge multiplier", surge); err != nil {
		return 0, err
	}
	c := s.cfg
	return round2((c.BaseFare + distanceKm*c.RatePerKm + durationMin*c.RatePerMin) * surge), nil
}

// FareWithSurge is the single pricing entry point for booking creation and
// dropoff re-pricing.
func (s *Service) FareWithSurge(distanceKm, durationMin float64, passengerCount, driverCount int) (Quote, error) {
	surge, err := s.SurgeMultiplier(passengerCount, driverCount)
	if err != nil {
		return Quote{}, err
	}
	fare, err := s.Fare(distanceKm, durationMin, surge)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Fare: fare, Surge: surge}, nil
}

// CancellationFee prices a passenger cancellation. totalFare must already be
// resolved by the caller; a nil createdAt counts as zero elapsed time.
func (s *Service) CancellationFee(totalFare float64, vt types.VehicleType, createdAt *time.Time, now time.Time) (CancellationFee, error) {
	if err := checkNonNegative("total fare", totalFare); err != nil {
		return CancellationFee{}, err
	}
	cc := s.cfg.Cancellation
	category, ok := cc.CategoryFees[vt]
	if !ok {
		return CancellationFee{}, fmt.Errorf("%w: no cancellation fee for vehicle type %q", types.ErrValidation, vt)
	}

	var elapsed time.Duration
	if createdAt != nil {
		elapsed = max(0, now.Sub(*createdAt))
	}

	base := math.Min(totalFare*cc.Percent, cc.Cap)
	before := base
	if elapsed >= cc.TimeThreshold {
		before = math.Max(base, category)
	}
	before = round2(before)
	return CancellationFee{
		BeforeGST: before,
		AfterGST:  round2(before * (1 + cc.GSTRate)),
	}, nil
}

func lerp(lo, hi, t float64) float64 {
	return lo + t*(hi-lo)
}

func capSurge(v, ceiling float64) float64 {
	return math.Min(v, ceiling)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", types.ErrValidation, name)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must not be negative (got %.2f)", types.ErrValidation, name, v)
	}
	return nil
}
