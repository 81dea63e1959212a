package firestore

import (
	"time"

	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/types"
)

// Document shapes. Ids live in the document name, not in the body.

type locationDoc struct {
	Lat       float64   `firestore:"latitude"`
	Lng       float64   `firestore:"longitude"`
	Timestamp time.Time `firestore:"timestamp"`
}

func toLocationDoc(l *types.Location) *locationDoc {
	if l == nil {
		return nil
	}
	return &locationDoc{Lat: l.Lat, Lng: l.Lng, Timestamp: l.CapturedAt}
}

func (d *locationDoc) location() *types.Location {
	if d == nil {
		return nil
	}
	return &types.Location{Lat: d.Lat, Lng: d.Lng, CapturedAt: d.Timestamp}
}

type driverDoc struct {
	Name          string       `firestore:"name"`
	PhoneNumber   string       `firestore:"phone_number"`
	VehicleType   string       `firestore:"vehicle_type"`
	VehicleNumber string       `firestore:"vehicle_number"`
	IsOnline      bool         `firestore:"is_online"`
	IsAvailable   bool         `firestore:"is_available"`
	Location      *locationDoc `firestore:"current_location"`
	CreatedAt     time.Time    `firestore:"created_at"`
	UpdatedAt     time.Time    `firestore:"updated_at"`
}

func toDriverDoc(d *driver.Driver) driverDoc {
	return driverDoc{
		Name: d.Name, PhoneNumber: d.PhoneNumber,
		VehicleType: string(d.VehicleType), VehicleNumber: d.VehicleNumber,
		IsOnline: d.IsOnline, IsAvailable: d.IsAvailable,
		Location:  toLocationDoc(d.Location),
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (d driverDoc) driver(id string) *driver.Driver {
	return &driver.Driver{
		ID: types.ID(id), Name: d.Name, PhoneNumber: d.PhoneNumber,
		VehicleType: types.VehicleType(d.VehicleType), VehicleNumber: d.VehicleNumber,
		IsOnline: d.IsOnline, IsAvailable: d.IsAvailable,
		Location:  d.Location.location(),
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

type passengerDoc struct {
	Name              string       `firestore:"name"`
	PhoneNumber       string       `firestore:"phone_number"`
	VehiclePreference *string      `firestore:"vehicle_preference"`
	Location          *locationDoc `firestore:"current_location"`
	CreatedAt         time.Time    `firestore:"created_at"`
	UpdatedAt         time.Time    `firestore:"updated_at"`
}

func toPassengerDoc(p *passenger.Passenger) passengerDoc {
	doc := passengerDoc{
		Name: p.Name, PhoneNumber: p.PhoneNumber,
		Location:  toLocationDoc(p.Location),
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
	if p.VehiclePreference != nil {
		v := string(*p.VehiclePreference)
		doc.VehiclePreference = &v
	}
	return doc
}

func (d passengerDoc) passenger(id string) *passenger.Passenger {
	p := &passenger.Passenger{
		ID: types.ID(id), Name: d.Name, PhoneNumber: d.PhoneNumber,
		Location:  d.Location.location(),
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	if d.VehiclePreference != nil {
		vt := types.VehicleType(*d.VehiclePreference)
		p.VehiclePreference = &vt
	}
	return p
}

type bookingDoc struct {
	PassengerID string       `firestore:"passenger_id"`
	DriverID    *string      `firestore:"driver_id"`
	Pickup      locationDoc  `firestore:"pickup_location"`
	Dropoff     *locationDoc `firestore:"dropoff_location"`
	VehicleType string       `firestore:"vehicle_type"`
	Status      string       `firestore:"status"`
	Version     int          `firestore:"version"`

	Fare            *float64 `firestore:"fare"`
	DistanceKm      *float64 `firestore:"distance_km"`
	DurationMin     *float64 `firestore:"duration_minutes"`
	SurgeMultiplier float64  `firestore:"surge_multiplier"`

	CancellationFee          *float64 `firestore:"cancellation_fee"`
	CancellationFeeBeforeGST *float64 `firestore:"cancellation_fee_before_gst"`
	CancelledBy              *string  `firestore:"cancelled_by"`

	DriverAccepted     bool `firestore:"driver_accepted"`
	PassengerConfirmed bool `firestore:"passenger_confirmed"`

	CreatedAt   time.Time  `firestore:"created_at"`
	AcceptedAt  *time.Time `firestore:"accepted_at"`
	ConfirmedAt *time.Time `firestore:"confirmed_at"`
	StartedAt   *time.Time `firestore:"started_at"`
	CompletedAt *time.Time `firestore:"completed_at"`
	CancelledAt *time.Time `firestore:"cancelled_at"`
}

func toBookingDoc(b *booking.Booking) bookingDoc {
	doc := bookingDoc{
		PassengerID: string(b.PassengerID),
		Pickup:      *toLocationDoc(&b.Pickup),
		Dropoff:     toLocationDoc(b.Dropoff),
		VehicleType: string(b.VehicleType),
		Status:      string(b.Status),
		Version:     b.Version,

		Fare: b.Fare, DistanceKm: b.DistanceKm, DurationMin: b.DurationMin,
		SurgeMultiplier: b.SurgeMultiplier,

		CancellationFee:          b.CancellationFee,
		CancellationFeeBeforeGST: b.CancellationFeeBeforeGST,

		DriverAccepted:     b.DriverAccepted,
		PassengerConfirmed: b.PassengerConfirmed,

		CreatedAt: b.CreatedAt, AcceptedAt: b.AcceptedAt, ConfirmedAt: b.ConfirmedAt,
		StartedAt: b.StartedAt, CompletedAt: b.CompletedAt, CancelledAt: b.CancelledAt,
	}
	if b.DriverID != nil {
		v := string(*b.DriverID)
		doc.DriverID = &v
	}
	if b.CancelledBy != nil {
		v := string(*b.CancelledBy)
		doc.CancelledBy = &v
	}
	return doc
}

func (d bookingDoc) booking(id string) *booking.Booking {
	b := &booking.Booking{
		ID:          types.ID(id),
		PassengerID: types.ID(d.PassengerID),
		Pickup:      *d.Pickup.location(),
		Dropoff:     d.Dropoff.location(),
		VehicleType: types.VehicleType(d.VehicleType),
		Status:      booking.Status(d.Status),
		Version:     d.Version,

		Fare: d.Fare, DistanceKm: d.DistanceKm, DurationMin: d.DurationMin,
		SurgeMultiplier: d.SurgeMultiplier,

		CancellationFee:          d.CancellationFee,
		CancellationFeeBeforeGST: d.CancellationFeeBeforeGST,

		DriverAccepted:     d.DriverAccepted,
		PassengerConfirmed: d.PassengerConfirmed,

		CreatedAt: d.CreatedAt, AcceptedAt: d.AcceptedAt, ConfirmedAt: d.ConfirmedAt,
		StartedAt: d.StartedAt, CompletedAt: d.CompletedAt, CancelledAt: d.CancelledAt,
	}
	if d.DriverID != nil {
		v := types.ID(*d.DriverID)
		b.DriverID = &v
	}
	if d.CancelledBy != nil {
		a := booking.ActorType(*d.CancelledBy)
		b.CancelledBy = &a
	}
	return b
}

type eventDoc struct {
	Operation  string    `firestore:"operation"`
	FromStatus string    `firestore:"from_status"`
	ToStatus   string    `firestore:"to_status"`
	ActorType  string    `firestore:"actor_type"`
	ActorID    string    `firestore:"actor_id"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func toEventDoc(e *booking.Event) eventDoc {
	return eventDoc{
		Operation: e.Operation, FromStatus: string(e.FromStatus), ToStatus: string(e.ToStatus),
		ActorType: string(e.ActorType), ActorID: string(e.ActorID), CreatedAt: e.CreatedAt,
	}
}

func (d eventDoc) event(id, bookingID string) booking.Event {
	return booking.Event{
		ID: types.ID(id), BookingID: types.ID(bookingID), Operation: d.Operation,
		FromStatus: booking.Status(d.FromStatus), ToStatus: booking.Status(d.ToStatus),
		ActorType: booking.ActorType(d.ActorType), ActorID: types.ID(d.ActorID),
		CreatedAt: d.CreatedAt,
	}
}
