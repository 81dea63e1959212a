package passenger

import (
	"context"

	"ridecore/internal/types"
)

type Store interface {
	GetPassenger(ctx context.Context, id types.ID) (*Passenger, error)
	CreatePassenger(ctx context.Context, p *Passenger) error
	UpdatePassenger(ctx context.Context, id types.ID, patch Patch) error
	CountPassengers(ctx context.Context) (int, error)
}

type LocationCache interface {
	UpdatePassenger(ctx context.Context, id types.ID, loc types.Location) error
}
