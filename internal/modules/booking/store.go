package booking

import (
	"context"
	"fmt"

	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/types"
)

// Transition is one compare-and-set write of a booking. The store applies it
// only when the stored booking still has FromStatus and FromVersion, and
// returns types.ErrConflict otherwise. Driver guards and flips happen in the
// same atomic step as the booking write, and Event is appended with it.
type Transition struct {
	Next        *Booking
	FromStatus  Status
	FromVersion int

	// RequireDriverAvailable re-checks that Next.DriverID is online and
	// available at commit time.
	RequireDriverAvailable bool
	// DriverAvailable, when set, flips the assigned driver's is_available.
	// Setting true never makes an offline driver available, nor one with
	// another booking in progress.
	DriverAvailable *bool

	Event *Event
}

type Store interface {
	GetBooking(ctx context.Context, id types.ID) (*Booking, error)
	// CreateBooking inserts b with ev after re-checking, atomically, that the
	// driver is online and available and that the passenger holds no active
	// booking.
	CreateBooking(ctx context.Context, b *Booking, ev *Event) error
	ApplyTransition(ctx context.Context, t Transition) error
	ListBookings(ctx context.Context, f Filter) ([]Booking, error)
	ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error)

	GetDriver(ctx context.Context, id types.ID) (*driver.Driver, error)
	ListDrivers(ctx context.Context, f driver.Filter) ([]driver.Driver, error)
	GetPassenger(ctx context.Context, id types.ID) (*passenger.Passenger, error)
	CountPassengers(ctx context.Context) (int, error)
}

// Guard errors shared by the service and the store implementations so both
// report the same precondition.

func DriverUnavailableError(id types.ID) error {
	return fmt.Errorf("%w: driver %s is not available", types.ErrInvalidState, id)
}

func ActiveBookingError(passengerID types.ID) error {
	return fmt.Errorf("%w: passenger %s already has an active booking", types.ErrInvalidState, passengerID)
}

func NotFoundError(id types.ID) error {
	return fmt.Errorf("%w: booking %s", types.ErrNotFound, id)
}
