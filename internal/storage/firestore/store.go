// README: Repository backed by Cloud Firestore. Booking writes run inside
// RunTransaction so the version check, driver flip and audit event commit
// together.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/storage"
	"ridecore/internal/types"
)

var _ storage.Repository = (*Store)(nil)

const (
	driversCollection    = "drivers"
	passengersCollection = "passengers"
	bookingsCollection   = "bookings"
	eventsCollection     = "events"
)

type Store struct {
	client *fs.Client
}

func NewStore(client *fs.Client) *Store {
	return &Store{client: client}
}

func (s *Store) drivers() *fs.CollectionRef    { return s.client.Collection(driversCollection) }
func (s *Store) passengers() *fs.CollectionRef { return s.client.Collection(passengersCollection) }
func (s *Store) bookings() *fs.CollectionRef   { return s.client.Collection(bookingsCollection) }

func (s *Store) events(bookingID types.ID) *fs.CollectionRef {
	return s.bookings().Doc(string(bookingID)).Collection(eventsCollection)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// ---- drivers ----

func (s *Store) GetDriver(ctx context.Context, id types.ID) (*driver.Driver, error) {
	snap, err := s.drivers().Doc(string(id)).Get(ctx)
	return decodeDriver(id, snap, err)
}

func decodeDriver(id types.ID, snap *fs.DocumentSnapshot, err error) (*driver.Driver, error) {
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: driver %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var doc driverDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.driver(snap.Ref.ID), nil
}

func (s *Store) CreateDriver(ctx context.Context, d *driver.Driver) error {
	_, err := s.drivers().Doc(string(d.ID)).Create(ctx, toDriverDoc(d))
	if isAlreadyExists(err) {
		return fmt.Errorf("%w: driver %s already exists", types.ErrInvalidState, d.ID)
	}
	return err
}

func (s *Store) UpdateDriverLocation(ctx context.Context, id types.ID, loc types.Location) error {
	_, err := s.drivers().Doc(string(id)).Update(ctx, []fs.Update{
		{Path: "current_location", Value: toLocationDoc(&loc)},
		{Path: "updated_at", Value: fs.ServerTimestamp},
	})
	if isNotFound(err) {
		return fmt.Errorf("%w: driver %s", types.ErrNotFound, id)
	}
	return err
}

func (s *Store) SetDriverAvailability(ctx context.Context, id types.ID, available bool) error {
	ref := s.drivers().Doc(string(id))
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if _, err := decodeDriver(id, snap, err); err != nil {
			return err
		}
		if available {
			busy, err := tx.Documents(s.bookings().
				Where("driver_id", "==", string(id)).
				Where("status", "==", string(booking.StatusInProgress)).
				Limit(1)).GetAll()
			if err != nil {
				return err
			}
			if len(busy) > 0 {
				return fmt.Errorf("%w: driver %s has a ride in progress", types.ErrInvalidState, id)
			}
		}
		return tx.Update(ref, []fs.Update{
			{Path: "is_online", Value: available},
			{Path: "is_available", Value: available},
			{Path: "updated_at", Value: fs.ServerTimestamp},
		})
	})
}

func (s *Store) ListDrivers(ctx context.Context, f driver.Filter) ([]driver.Driver, error) {
	q := s.drivers().Query
	if f.Online != nil {
		q = q.Where("is_online", "==", *f.Online)
	}
	if f.Available != nil {
		q = q.Where("is_available", "==", *f.Available)
	}
	if f.VehicleType != "" {
		q = q.Where("vehicle_type", "==", string(f.VehicleType))
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []driver.Driver
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc driverDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.driver(snap.Ref.ID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- passengers ----

func (s *Store) GetPassenger(ctx context.Context, id types.ID) (*passenger.Passenger, error) {
	snap, err := s.passengers().Doc(string(id)).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: passenger %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var doc passengerDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.passenger(snap.Ref.ID), nil
}

func (s *Store) CreatePassenger(ctx context.Context, p *passenger.Passenger) error {
	_, err := s.passengers().Doc(string(p.ID)).Create(ctx, toPassengerDoc(p))
	if isAlreadyExists(err) {
		return fmt.Errorf("%w: passenger %s already exists", types.ErrInvalidState, p.ID)
	}
	return err
}

func (s *Store) UpdatePassenger(ctx context.Context, id types.ID, patch passenger.Patch) error {
	updates := []fs.Update{{Path: "updated_at", Value: fs.ServerTimestamp}}
	if patch.Name != nil {
		updates = append(updates, fs.Update{Path: "name", Value: *patch.Name})
	}
	if patch.PhoneNumber != nil {
		updates = append(updates, fs.Update{Path: "phone_number", Value: *patch.PhoneNumber})
	}
	if patch.VehiclePreference != nil {
		updates = append(updates, fs.Update{Path: "vehicle_preference", Value: string(*patch.VehiclePreference)})
	}
	if patch.Location != nil {
		updates = append(updates, fs.Update{Path: "current_location", Value: toLocationDoc(patch.Location)})
	}
	_, err := s.passengers().Doc(string(id)).Update(ctx, updates)
	if isNotFound(err) {
		return fmt.Errorf("%w: passenger %s", types.ErrNotFound, id)
	}
	return err
}

func (s *Store) CountPassengers(ctx context.Context) (int, error) {
	refs, err := s.passengers().DocumentRefs(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

// ---- bookings ----

func decodeBooking(id types.ID, snap *fs.DocumentSnapshot, err error) (*booking.Booking, error) {
	if isNotFound(err) {
		return nil, booking.NotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	var doc bookingDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.booking(snap.Ref.ID), nil
}

func (s *Store) GetBooking(ctx context.Context, id types.ID) (*booking.Booking, error) {
	snap, err := s.bookings().Doc(string(id)).Get(ctx)
	return decodeBooking(id, snap, err)
}

func activeStatusValues() []string {
	out := make([]string, len(booking.ActiveStatuses))
	for i, st := range booking.ActiveStatuses {
		out[i] = string(st)
	}
	return out
}

func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking, ev *booking.Event) error {
	ref := s.bookings().Doc(string(b.ID))
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		if b.DriverID != nil {
			snap, err := tx.Get(s.drivers().Doc(string(*b.DriverID)))
			d, err := decodeDriver(*b.DriverID, snap, err)
			if err != nil {
				return err
			}
			if !d.IsOnline || !d.IsAvailable {
				return booking.DriverUnavailableError(d.ID)
			}
		}
		active, err := tx.Documents(s.bookings().
			Where("passenger_id", "==", string(b.PassengerID)).
			Where("status", "in", activeStatusValues()).
			Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return booking.ActiveBookingError(b.PassengerID)
		}

		if err := tx.Create(ref, toBookingDoc(b)); err != nil {
			return err
		}
		if ev != nil {
			return tx.Create(s.events(b.ID).Doc(string(ev.ID)), toEventDoc(ev))
		}
		return nil
	})
}

func (s *Store) ApplyTransition(ctx context.Context, t booking.Transition) error {
	next := t.Next
	ref := s.bookings().Doc(string(next.ID))
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		// Firestore requires every read before the first write.
		snap, err := tx.Get(ref)
		cur, err := decodeBooking(next.ID, snap, err)
		if err != nil {
			return err
		}
		if cur.Version != t.FromVersion || cur.Status != t.FromStatus {
			return types.ErrConflict
		}

		var d *driver.Driver
		if next.DriverID != nil && (t.RequireDriverAvailable || t.DriverAvailable != nil) {
			dsnap, err := tx.Get(s.drivers().Doc(string(*next.DriverID)))
			d, err = decodeDriver(*next.DriverID, dsnap, err)
			if err != nil {
				return err
			}
		}
		if t.RequireDriverAvailable && (d == nil || !d.IsOnline || !d.IsAvailable) {
			if d == nil {
				return booking.DriverUnavailableError("")
			}
			return booking.DriverUnavailableError(d.ID)
		}
		available := false
		if d != nil && t.DriverAvailable != nil && *t.DriverAvailable && d.IsOnline {
			riding, err := tx.Documents(s.bookings().
				Where("driver_id", "==", string(d.ID)).
				Where("status", "==", string(booking.StatusInProgress))).GetAll()
			if err != nil {
				return err
			}
			available = true
			for _, doc := range riding {
				if doc.Ref.ID != string(next.ID) {
					available = false
					break
				}
			}
		}

		if err := tx.Set(ref, toBookingDoc(next)); err != nil {
			return err
		}
		if d != nil && t.DriverAvailable != nil {
			if err := tx.Update(s.drivers().Doc(string(d.ID)), []fs.Update{
				{Path: "is_available", Value: available},
				{Path: "updated_at", Value: fs.ServerTimestamp},
			}); err != nil {
				return err
			}
		}
		if t.Event != nil {
			return tx.Create(s.events(next.ID).Doc(string(t.Event.ID)), toEventDoc(t.Event))
		}
		return nil
	})
}

func (s *Store) ListBookings(ctx context.Context, f booking.Filter) ([]booking.Booking, error) {
	q := s.bookings().Query
	if f.PassengerID != "" {
		q = q.Where("passenger_id", "==", string(f.PassengerID))
	}
	if f.DriverID != "" {
		q = q.Where("driver_id", "==", string(f.DriverID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status", "in", statuses)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]booking.Booking, 0, len(snaps))
	for _, snap := range snaps {
		var doc bookingDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.booking(snap.Ref.ID))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListEvents(ctx context.Context, bookingID types.ID) ([]booking.Event, error) {
	snaps, err := s.events(bookingID).OrderBy("created_at", fs.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]booking.Event, 0, len(snaps))
	for _, snap := range snaps {
		var doc eventDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.event(snap.Ref.ID, string(bookingID)))
	}
	return out, nil
}
