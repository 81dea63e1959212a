package driver

import (
	"context"

	"ridecore/internal/types"
)

// Store is the driver half of the repository.
type Store interface {
	GetDriver(ctx context.Context, id types.ID) (*Driver, error)
	CreateDriver(ctx context.Context, d *Driver) error
	UpdateDriverLocation(ctx context.Context, id types.ID, loc types.Location) error
	// SetDriverAvailability sets is_online and is_available together. Going
	// available fails with types.ErrInvalidState while the driver has a ride
	// in progress; the check and the write are one atomic step.
	SetDriverAvailability(ctx context.Context, id types.ID, available bool) error
	ListDrivers(ctx context.Context, f Filter) ([]Driver, error)
}

// LocationCache receives fresh positions for fast ranking lookups.
type LocationCache interface {
	UpdateDriver(ctx context.Context, id types.ID, loc types.Location) error
}
