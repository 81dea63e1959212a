// README: Booking aggregate, lifecycle statuses and audit events.
package booking

import (
	"time"

	"ridecore/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusDriverAccepted Status = "driver_accepted"
	StatusConfirmed      Status = "confirmed"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active statuses hold a driver and block a second booking for the passenger.
func (s Status) Active() bool {
	return !s.Terminal()
}

func ParseStatus(v string) (Status, error) {
	switch st := Status(v); st {
	case StatusPending, StatusDriverAccepted, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", types.ErrValidation
}

type ActorType string

const (
	ActorPassenger ActorType = "passenger"
	ActorDriver    ActorType = "driver"
)

type Booking struct {
	ID          types.ID          `json:"booking_id"`
	PassengerID types.ID          `json:"passenger_id"`
	DriverID    *types.ID         `json:"driver_id,omitempty"`
	Pickup      types.Location    `json:"pickup_location"`
	Dropoff     *types.Location   `json:"dropoff_location,omitempty"`
	VehicleType types.VehicleType `json:"vehicle_type"`
	Status      Status            `json:"status"`
	Version     int               `json:"version"`

	Fare            *float64 `json:"fare,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	DurationMin     *float64 `json:"duration_min,omitempty"`
	SurgeMultiplier float64  `json:"surge_multiplier"`

	CancellationFee          *float64   `json:"cancellation_fee,omitempty"`
	CancellationFeeBeforeGST *float64   `json:"cancellation_fee_before_gst,omitempty"`
	CancelledBy              *ActorType `json:"cancelled_by,omitempty"`

	DriverAccepted     bool `json:"driver_accepted"`
	PassengerConfirmed bool `json:"passenger_confirmed"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// AssignedTo reports whether the booking is held by the given driver.
func (b *Booking) AssignedTo(driverID types.ID) bool {
	return b.DriverID != nil && *b.DriverID == driverID
}

// Clone returns a deep copy so stores never share pointers with callers.
func (b *Booking) Clone() *Booking {
	c := *b
	c.DriverID = clonePtr(b.DriverID)
	c.Dropoff = clonePtr(b.Dropoff)
	c.Fare = clonePtr(b.Fare)
	c.DistanceKm = clonePtr(b.DistanceKm)
	c.DurationMin = clonePtr(b.DurationMin)
	c.CancellationFee = clonePtr(b.CancellationFee)
	c.CancellationFeeBeforeGST = clonePtr(b.CancellationFeeBeforeGST)
	c.CancelledBy = clonePtr(b.CancelledBy)
	c.AcceptedAt = clonePtr(b.AcceptedAt)
	c.ConfirmedAt = clonePtr(b.ConfirmedAt)
	c.StartedAt = clonePtr(b.StartedAt)
	c.CompletedAt = clonePtr(b.CompletedAt)
	c.CancelledAt = clonePtr(b.CancelledAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Event is one row of the per-booking audit log.
type Event struct {
	ID         types.ID  `json:"event_id"`
	BookingID  types.ID  `json:"booking_id"`
	Operation  string    `json:"operation"`
	FromStatus Status    `json:"from_status,omitempty"`
	ToStatus   Status    `json:"to_status"`
	ActorType  ActorType `json:"actor_type"`
	ActorID    types.ID  `json:"actor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter selects bookings for listings. Zero fields match anything.
type Filter struct {
	PassengerID types.ID
	DriverID    types.ID
	Statuses    []Status
}

func (f Filter) Match(b *Booking) bool {
	if f.PassengerID != "" && b.PassengerID != f.PassengerID {
		return false
	}
	if f.DriverID != "" && !b.AssignedTo(f.DriverID) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// ActiveStatuses lists every non-terminal status.
var ActiveStatuses = []Status{StatusPending, StatusDriverAccepted, StatusConfirmed, StatusInProgress}
