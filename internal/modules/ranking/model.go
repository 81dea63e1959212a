// README: Ranking request and result types.
package ranking

import (
	"ridecore/internal/maps"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/types"
)

type Candidate struct {
	DriverID types.ID
	Location types.Location
}

type Request struct {
	Pickup      types.Location
	Destination *types.Location
	// Candidates is pre-filtered by the caller and must not be empty.
	Candidates []Candidate
	// Demand counts feed the surge multiplier of the trip quote.
	PassengerCount int
	DriverCount    int
}

// Entry is one ranked driver. Pickup figures are driver to pickup and are
// display-only; Trip and Quote are pickup to destination and shared by every
// entry of a result.
type Entry struct {
	DriverID         types.ID       `json:"driver_id"`
	Location         types.Location `json:"location"`
	PickupDistanceKm float64        `json:"distance_km"`
	PickupETAMin     float64        `json:"eta_minutes"`
	Trip             *maps.Estimate `json:"trip,omitempty"`
	Quote            *pricing.Quote `json:"quote,omitempty"`
}

type Result struct {
	Entries []Entry        `json:"drivers"`
	Trip    *maps.Estimate `json:"trip,omitempty"`
	Quote   *pricing.Quote `json:"quote,omitempty"`
	Dropped []types.ID     `json:"dropped,omitempty"`
	// Degraded is set when at least one candidate could not be estimated.
	Degraded bool `json:"degraded"`
}
