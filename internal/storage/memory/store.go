// README: In-memory repository guarded by one mutex. Used for tests, local
// runs and the demo seed.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/storage"
	"ridecore/internal/types"
)

var _ storage.Repository = (*Store)(nil)

type Store struct {
	mu         sync.RWMutex
	drivers    map[types.ID]driver.Driver
	passengers map[types.ID]passenger.Passenger
	bookings   map[types.ID]*booking.Booking
	events     map[types.ID][]booking.Event
	now        func() time.Time
}

func NewStore() *Store {
	return &Store{
		drivers:    map[types.ID]driver.Driver{},
		passengers: map[types.ID]passenger.Passenger{},
		bookings:   map[types.ID]*booking.Booking{},
		events:     map[types.ID][]booking.Event{},
		now:        time.Now,
	}
}

func (s *Store) GetDriver(_ context.Context, id types.ID) (*driver.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: driver %s", types.ErrNotFound, id)
	}
	return copyDriver(d), nil
}

func (s *Store) CreateDriver(_ context.Context, d *driver.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drivers[d.ID]; ok {
		return fmt.Errorf("%w: driver %s already exists", types.ErrInvalidState, d.ID)
	}
	s.drivers[d.ID] = *copyDriver(*d)
	return nil
}

func (s *Store) UpdateDriverLocation(_ context.Context, id types.ID, loc types.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return fmt.Errorf("%w: driver %s", types.ErrNotFound, id)
	}
	d.Location = &loc
	d.UpdatedAt = s.now()
	s.drivers[id] = d
	return nil
}

func (s *Store) SetDriverAvailability(_ context.Context, id types.ID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return fmt.Errorf("%w: driver %s", types.ErrNotFound, id)
	}
	if available {
		for _, b := range s.bookings {
			if b.AssignedTo(id) && b.Status == booking.StatusInProgress {
				return fmt.Errorf("%w: driver %s has a ride in progress", types.ErrInvalidState, id)
			}
		}
	}
	d.IsOnline = available
	d.IsAvailable = available
	d.UpdatedAt = s.now()
	s.drivers[id] = d
	return nil
}

func (s *Store) ListDrivers(_ context.Context, f driver.Filter) ([]driver.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]driver.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		if f.Match(d) {
			out = append(out, *copyDriver(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetPassenger(_ context.Context, id types.ID) (*passenger.Passenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.passengers[id]
	if !ok {
		return nil, fmt.Errorf("%w: passenger %s", types.ErrNotFound, id)
	}
	return copyPassenger(p), nil
}

func (s *Store) CreatePassenger(_ context.Context, p *passenger.Passenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.passengers[p.ID]; ok {
		return fmt.Errorf("%w: passenger %s already exists", types.ErrInvalidState, p.ID)
	}
	s.passengers[p.ID] = *copyPassenger(*p)
	return nil
}

func (s *Store) UpdatePassenger(_ context.Context, id types.ID, patch passenger.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passengers[id]
	if !ok {
		return fmt.Errorf("%w: passenger %s", types.ErrNotFound, id)
	}
	patch.Apply(&p, s.now())
	s.passengers[id] = p
	return nil
}

func (s *Store) CountPassengers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passengers), nil
}

func (s *Store) GetBooking(_ context.Context, id types.ID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.NotFoundError(id)
	}
	return b.Clone(), nil
}

func (s *Store) CreateBooking(_ context.Context, b *booking.Booking, ev *booking.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.DriverID != nil {
		d, ok := s.drivers[*b.DriverID]
		if !ok {
			return fmt.Errorf("%w: driver %s", types.ErrNotFound, *b.DriverID)
		}
		if !d.IsOnline || !d.IsAvailable {
			return booking.DriverUnavailableError(d.ID)
		}
	}
	for _, other := range s.bookings {
		if other.PassengerID == b.PassengerID && other.Status.Active() {
			return booking.ActiveBookingError(b.PassengerID)
		}
	}
	s.bookings[b.ID] = b.Clone()
	if ev != nil {
		s.events[b.ID] = append(s.events[b.ID], *ev)
	}
	return nil
}

func (s *Store) ApplyTransition(_ context.Context, t booking.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[t.Next.ID]
	if !ok {
		return booking.NotFoundError(t.Next.ID)
	}
	if cur.Version != t.FromVersion || cur.Status != t.FromStatus {
		return types.ErrConflict
	}

	var d driver.Driver
	hasDriver := t.Next.DriverID != nil
	if hasDriver {
		d, ok = s.drivers[*t.Next.DriverID]
		if !ok {
			return fmt.Errorf("%w: driver %s", types.ErrNotFound, *t.Next.DriverID)
		}
	}
	if t.RequireDriverAvailable && (!hasDriver || !d.IsOnline || !d.IsAvailable) {
		return booking.DriverUnavailableError(d.ID)
	}

	s.bookings[t.Next.ID] = t.Next.Clone()
	if hasDriver && t.DriverAvailable != nil {
		d.IsAvailable = *t.DriverAvailable && d.IsOnline && !s.ridingElsewhere(d.ID, t.Next.ID)
		d.UpdatedAt = s.now()
		s.drivers[d.ID] = d
	}
	if t.Event != nil {
		s.events[t.Next.ID] = append(s.events[t.Next.ID], *t.Event)
	}
	return nil
}

// ridingElsewhere reports whether driverID has an in-progress booking other
// than exclude. Callers hold s.mu.
func (s *Store) ridingElsewhere(driverID, exclude types.ID) bool {
	for id, b := range s.bookings {
		if id != exclude && b.AssignedTo(driverID) && b.Status == booking.StatusInProgress {
			return true
		}
	}
	return false
}

func (s *Store) ListBookings(_ context.Context, f booking.Filter) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []booking.Booking
	for _, b := range s.bookings {
		if f.Match(b) {
			out = append(out, *b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListEvents(_ context.Context, bookingID types.ID) ([]booking.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[bookingID]
	out := make([]booking.Event, len(evs))
	copy(out, evs)
	return out, nil
}

func copyDriver(d driver.Driver) *driver.Driver {
	if d.Location != nil {
		l := *d.Location
		d.Location = &l
	}
	return &d
}

func copyPassenger(p passenger.Passenger) *passenger.Passenger {
	if p.Location != nil {
		l := *p.Location
		p.Location = &l
	}
	if p.VehiclePreference != nil {
		v := *p.VehiclePreference
		p.VehiclePreference = &v
	}
	return &p
}
