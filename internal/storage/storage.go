// README: Repository contract shared by every storage backend.
package storage

import (
	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
)

// Repository is the union of the per-module store contracts. Each backend
// package asserts it at compile time.
type Repository interface {
	driver.Store
	passenger.Store
	booking.Store
}
