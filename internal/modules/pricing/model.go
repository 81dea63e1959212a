// README: Fare engine configuration and quote types.
package pricing

import (
	"fmt"
	"time"

	"ridecore/internal/types"
)

// SurgeConfig holds the piecewise surge breakpoints. Ceiling is the
// regulatory limit and caps every result, including the no-driver case.
type SurgeConfig struct {
	MildMin   float64
	MildMax   float64
	MediumMin float64
	MediumMax float64
	High      float64
	Ceiling   float64
}

type CancellationConfig struct {
	Percent       float64
	Cap           float64
	TimeThreshold time.Duration
	CategoryFees  map[types.VehicleType]float64
	GSTRate       float64
}

type Config struct {
	BaseFare     float64
	RatePerKm    float64
	RatePerMin   float64
	MinimumFare  float64
	Surge        SurgeConfig
	Cancellation CancellationConfig
}

// DefaultConfig is the canonical tariff.
func DefaultConfig() Config {
	return Config{
		BaseFare:    50,
		RatePerKm:   10,
		RatePerMin:  2,
		MinimumFare: 50,
		Surge: SurgeConfig{
			MildMin:   1.0,
			MildMax:   1.4,
			MediumMin: 1.5,
			MediumMax: 1.8,
			High:      2.0,
			Ceiling:   2.0,
		},
		Cancellation: CancellationConfig{
			Percent:       0.10,
			Cap:           100,
			TimeThreshold: 5 * time.Minute,
			CategoryFees: map[types.VehicleType]float64{
				types.VehicleHatchback: 60,
				types.VehicleSedan:     90,
				types.VehicleSUV:       100,
				types.VehiclePremium:   90,
			},
			GSTRate: 0.06,
		},
	}
}

// Validate checks that the surge ladder is ordered, which is what keeps the
// multiplier monotone in the demand ratio.
func (c Config) Validate() error {
	if c.BaseFare < 0 || c.RatePerKm < 0 || c.RatePerMin < 0 || c.MinimumFare < 0 {
		return fmt.Errorf("%w: fare rates must be non-negative", types.ErrValidation)
	}
	s := c.Surge
	ladder := []float64{1, s.MildMin, s.MildMax, s.MediumMin, s.MediumMax, s.High, s.Ceiling}
	for i := 1; i < len(ladder); i++ {
		if ladder[i] < ladder[i-1] {
			return fmt.Errorf("%w: surge breakpoints must be non-decreasing from 1.0 to the ceiling", types.ErrValidation)
		}
	}
	cc := c.Cancellation
	if cc.Percent < 0 || cc.Cap < 0 || cc.GSTRate < 0 || cc.TimeThreshold < 0 {
		return fmt.Errorf("%w: cancellation settings must be non-negative", types.ErrValidation)
	}
	for _, v := range types.VehicleTypes {
		fee, ok := cc.CategoryFees[v]
		if !ok {
			return fmt.Errorf("%w: missing cancellation fee for %s", types.ErrValidation, v)
		}
		if fee < 0 {
			return fmt.Errorf("%w: negative cancellation fee for %s", types.ErrValidation, v)
		}
	}
	return nil
}

// Quote is a priced ride.
type Quote struct {
	Fare  float64 `json:"fare"`
	Surge float64 `json:"surge_multiplier"`
}

type CancellationFee struct {
	BeforeGST float64 `json:"cancellation_fee_before_gst"`
	AfterGST  float64 `json:"cancellation_fee"`
}

// GST is the tax component of the charged amount.
func (f CancellationFee) GST() float64 {
	return round2(f.AfterGST - f.BeforeGST)
}
