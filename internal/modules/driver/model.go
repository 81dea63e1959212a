// README: Driver aggregate and registry filters.
package driver

import (
	"time"

	"ridecore/internal/types"
)

// Driver availability implies online; the lifecycle engine and SetAvailability
// keep that invariant, storage does not.
type Driver struct {
	ID            types.ID          `json:"driver_id"`
	Name          string            `json:"name"`
	PhoneNumber   string            `json:"phone_number"`
	VehicleType   types.VehicleType `json:"vehicle_type"`
	VehicleNumber string            `json:"vehicle_number,omitempty"`
	IsOnline      bool              `json:"is_online"`
	IsAvailable   bool              `json:"is_available"`
	Location      *types.Location   `json:"current_location,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Filter selects drivers for availability scans. Zero fields match anything.
type Filter struct {
	Online      *bool
	Available   *bool
	VehicleType types.VehicleType
}

func AvailableFilter() Filter {
	t := true
	return Filter{Online: &t, Available: &t}
}

func (f Filter) Match(d Driver) bool {
	if f.Online != nil && d.IsOnline != *f.Online {
		return false
	}
	if f.Available != nil && d.IsAvailable != *f.Available {
		return false
	}
	if f.VehicleType != "" && d.VehicleType != f.VehicleType {
		return false
	}
	return true
}
