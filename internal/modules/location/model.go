// README: Last-known location records cached per user.
package location

import (
	"ridecore/internal/types"
)

type UserType string

const (
	UserDriver    UserType = "driver"
	UserPassenger UserType = "passenger"
)

// Entry is the cached form of a position; Timestamp is unix milliseconds.
type Entry struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

func entryFrom(loc types.Location) Entry {
	return Entry{Lat: loc.Lat, Lng: loc.Lng, Timestamp: loc.CapturedAt.UnixMilli()}
}
