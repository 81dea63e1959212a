// README: Passenger aggregate.
package passenger

import (
	"time"

	"ridecore/internal/types"
)

type Passenger struct {
	ID                types.ID           `json:"user_id"`
	Name              string             `json:"name"`
	PhoneNumber       string             `json:"phone_number"`
	VehiclePreference *types.VehicleType `json:"vehicle_preference,omitempty"`
	Location          *types.Location    `json:"current_location,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Name              *string
	PhoneNumber       *string
	VehiclePreference *types.VehicleType
	Location          *types.Location
}

func (p Patch) Apply(ps *Passenger, at time.Time) {
	if p.Name != nil {
		ps.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		ps.PhoneNumber = *p.PhoneNumber
	}
	if p.VehiclePreference != nil {
		v := *p.VehiclePreference
		ps.VehiclePreference = &v
	}
	if p.Location != nil {
		l := *p.Location
		ps.Location = &l
	}
	ps.UpdatedAt = at
}
