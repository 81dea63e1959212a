// README: Booking lifecycle engine: creation, two-sided confirmation, ride
// start/complete and cancellation with fees. Every transition is a
// compare-and-set on the booking version.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ridecore/internal/maps"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/observability"
	"ridecore/internal/types"
)

type Pricing interface {
	FareWithSurge(distanceKm, durationMin float64, passengerCount, driverCount int) (pricing.Quote, error)
	CancellationFee(totalFare float64, vt types.VehicleType, createdAt *time.Time, now time.Time) (pricing.CancellationFee, error)
	MinimumFare() float64
}

type Config struct {
	// ProviderTimeout bounds each distance provider call.
	ProviderTimeout time.Duration
}

type Service struct {
	store    Store
	pricing  Pricing
	distance maps.Provider
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store Store, pricing Pricing, distance maps.Provider, cfg Config, log *slog.Logger) *Service {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 3 * time.Second
	}
	return &Service{store: store, pricing: pricing, distance: distance, cfg: cfg, log: log, now: time.Now}
}

type CreateCommand struct {
	PassengerID types.ID
	DriverID    types.ID
	Pickup      types.Location
	Dropoff     *types.Location
	// VehicleType is optional; the passenger preference and then the
	// driver's vehicle are used when it is empty.
	VehicleType types.VehicleType
}

type AcceptCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type ConfirmCommand struct {
	BookingID   types.ID
	PassengerID types.ID
}

type StartCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type CompleteCommand struct {
	BookingID types.ID
	DriverID  types.ID
	// Dropoff, when it differs from the booked one, re-prices the ride.
	Dropoff *types.Location
}

type CancelCommand struct {
	BookingID types.ID
	ActorType ActorType
	ActorID   types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (b *Booking, err error) {
	defer func() { observability.ObserveTransition("create", err) }()

	if cmd.PassengerID == "" || cmd.DriverID == "" {
		return nil, fmt.Errorf("%w: passenger_id and driver_id are required", types.ErrValidation)
	}
	if err := cmd.Pickup.Validate(); err != nil {
		return nil, err
	}
	if cmd.Dropoff != nil {
		if err := cmd.Dropoff.Validate(); err != nil {
			return nil, err
		}
	}
	if cmd.VehicleType != "" && !cmd.VehicleType.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle type %q", types.ErrValidation, cmd.VehicleType)
	}

	p, err := s.store.GetPassenger(ctx, cmd.PassengerID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDriver(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !d.IsOnline || !d.IsAvailable {
		return nil, DriverUnavailableError(d.ID)
	}

	vt := cmd.VehicleType
	if vt == "" && p.VehiclePreference != nil {
		vt = *p.VehiclePreference
	}
	if vt == "" {
		vt = d.VehicleType
	}

	now := s.now()
	driverID := d.ID
	b = &Booking{
		ID:              types.ID(uuid.NewString()),
		PassengerID:     p.ID,
		DriverID:        &driverID,
		Pickup:          cmd.Pickup,
		Dropoff:         cmd.Dropoff,
		VehicleType:     vt,
		Status:          StatusPending,
		Version:         1,
		SurgeMultiplier: 1.0,
		CreatedAt:       now,
	}
	if cmd.Dropoff != nil {
		if err := s.price(ctx, b, *cmd.Dropoff); err != nil {
			return nil, err
		}
	}

	ev := s.event(b.ID, "create", "", StatusPending, ActorPassenger, p.ID, now)
	if err := s.store.CreateBooking(ctx, b, ev); err != nil {
		return nil, err
	}
	s.log.Info("booking created",
		"booking_id", b.ID, "passenger_id", b.PassengerID, "driver_id", driverID,
		"vehicle_type", b.VehicleType, "surge", b.SurgeMultiplier,
	)
	return b, nil
}

func (s *Service) DriverAccept(ctx context.Context, cmd AcceptCommand) (*Booking, error) {
	return s.run(ctx, step{
		op:        "driver_accept",
		bookingID: cmd.BookingID,
		actor:     ActorDriver,
		actorID:   cmd.DriverID,
		guard: func(b *Booking) error {
			if !b.AssignedTo(cmd.DriverID) {
				return notAssigned(b.ID)
			}
			if b.Status != StatusPending {
				return fmt.Errorf("%w: booking is already %s", types.ErrInvalidTransition, b.Status)
			}
			return nil
		},
		apply: func(ctx context.Context, cur, next *Booking, now time.Time) error {
			d, err := s.store.GetDriver(ctx, cmd.DriverID)
			if err != nil {
				return err
			}
			if !d.IsOnline || !d.IsAvailable {
				return DriverUnavailableError(d.ID)
			}
			next.Status = StatusDriverAccepted
			next.DriverAccepted = true
			next.AcceptedAt = &now
			return nil
		},
		requireDriverAvailable: true,
	})
}

func (s *Service) PassengerConfirm(ctx context.Context, cmd ConfirmCommand) (*Booking, error) {
	return s.run(ctx, step{
		op:        "passenger_confirm",
		bookingID: cmd.BookingID,
		actor:     ActorPassenger,
		actorID:   cmd.PassengerID,
		guard: func(b *Booking) error {
			if b.PassengerID != cmd.PassengerID {
				return fmt.Errorf("%w: booking %s does not belong to this passenger", types.ErrForbidden, b.ID)
			}
			if b.Status.Terminal() || b.Status == StatusInProgress {
				return fmt.Errorf("%w: cannot confirm a booking that is %s", types.ErrInvalidTransition, b.Status)
			}
			if !b.DriverAccepted {
				return fmt.Errorf("%w: driver must accept the booking first", types.ErrInvalidTransition)
			}
			if b.PassengerConfirmed {
				return fmt.Errorf("%w: booking is already confirmed", types.ErrInvalidTransition)
			}
			return nil
		},
		apply: func(_ context.Context, _, next *Booking, now time.Time) error {
			next.Status = StatusConfirmed
			next.PassengerConfirmed = true
			next.ConfirmedAt = &now
			return nil
		},
	})
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Booking, error) {
	unavailable := false
	return s.run(ctx, step{
		op:        "start",
		bookingID: cmd.BookingID,
		actor:     ActorDriver,
		actorID:   cmd.DriverID,
		guard: func(b *Booking) error {
			if !b.AssignedTo(cmd.DriverID) {
				return notAssigned(b.ID)
			}
			if b.Status.Terminal() || b.Status == StatusInProgress {
				return fmt.Errorf("%w: booking is already %s", types.ErrInvalidTransition, b.Status)
			}
			if !b.DriverAccepted {
				return fmt.Errorf("%w: driver must accept the booking first", types.ErrInvalidTransition)
			}
			if !b.PassengerConfirmed || b.Status != StatusConfirmed {
				return fmt.Errorf("%w: passenger must confirm the booking before the ride can start", types.ErrInvalidTransition)
			}
			return nil
		},
		apply: func(_ context.Context, _, next *Booking, now time.Time) error {
			next.Status = StatusInProgress
			next.StartedAt = &now
			return nil
		},
		requireDriverAvailable: true,
		driverAvailable:        &unavailable,
	})
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Booking, error) {
	if cmd.Dropoff != nil {
		if err := cmd.Dropoff.Validate(); err != nil {
			return nil, err
		}
	}
	available := true
	return s.run(ctx, step{
		op:        "complete",
		bookingID: cmd.BookingID,
		actor:     ActorDriver,
		actorID:   cmd.DriverID,
		guard: func(b *Booking) error {
			if !b.AssignedTo(cmd.DriverID) {
				return notAssigned(b.ID)
			}
			if b.Status != StatusInProgress {
				return fmt.Errorf("%w: ride must be in progress before completing, booking is %s", types.ErrInvalidTransition, b.Status)
			}
			return nil
		},
		apply: func(ctx context.Context, cur, next *Booking, now time.Time) error {
			if cmd.Dropoff != nil && (cur.Dropoff == nil || !cur.Dropoff.SamePoint(*cmd.Dropoff)) {
				next.Dropoff = cmd.Dropoff
				if err := s.price(ctx, next, *cmd.Dropoff); err != nil {
					return err
				}
			}
			next.Status = StatusCompleted
			next.CompletedAt = &now
			return nil
		},
		driverAvailable: &available,
	})
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	if cmd.ActorType != ActorPassenger && cmd.ActorType != ActorDriver {
		return nil, fmt.Errorf("%w: actor_type must be passenger or driver", types.ErrValidation)
	}
	available := true
	return s.run(ctx, step{
		op:        "cancel",
		bookingID: cmd.BookingID,
		actor:     cmd.ActorType,
		actorID:   cmd.ActorID,
		guard: func(b *Booking) error {
			switch cmd.ActorType {
			case ActorPassenger:
				if b.PassengerID != cmd.ActorID {
					return fmt.Errorf("%w: booking %s does not belong to this passenger", types.ErrForbidden, b.ID)
				}
			case ActorDriver:
				if !b.AssignedTo(cmd.ActorID) {
					return notAssigned(b.ID)
				}
			}
			if b.Status.Terminal() {
				return fmt.Errorf("%w: booking is already %s", types.ErrInvalidState, b.Status)
			}
			if b.Status == StatusInProgress {
				return fmt.Errorf("%w: cannot cancel a ride that is in progress", types.ErrInvalidState)
			}
			return nil
		},
		apply: func(_ context.Context, cur, next *Booking, now time.Time) error {
			var fee pricing.CancellationFee
			if cmd.ActorType == ActorPassenger {
				total := s.pricing.MinimumFare()
				if cur.Fare != nil {
					total = *cur.Fare
				}
				created := cur.CreatedAt
				f, err := s.pricing.CancellationFee(total, cur.VehicleType, &created, now)
				if err != nil {
					return err
				}
				fee = f
			}
			actor := cmd.ActorType
			next.Status = StatusCancelled
			next.CancelledBy = &actor
			next.CancelledAt = &now
			next.CancellationFee = &fee.AfterGST
			next.CancellationFeeBeforeGST = &fee.BeforeGST
			return nil
		},
		driverAvailable: &available,
	})
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.store.GetBooking(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}

// ListForDriver returns the driver's bookings, optionally narrowed to one
// status. Bookings without a stored distance get a display-only estimate.
func (s *Service) ListForDriver(ctx context.Context, driverID types.ID, status Status) ([]Booking, error) {
	if _, err := s.store.GetDriver(ctx, driverID); err != nil {
		return nil, err
	}
	f := Filter{DriverID: driverID}
	if status != "" {
		f.Statuses = []Status{status}
	}
	list, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range list {
		b := &list[i]
		if b.DistanceKm != nil || b.Dropoff == nil {
			continue
		}
		est, err := s.estimate(ctx, b.Pickup, *b.Dropoff)
		if err != nil {
			s.log.Debug("display distance unavailable", "booking_id", b.ID, "error", err)
			continue
		}
		b.DistanceKm = &est.DistanceKm
		b.DurationMin = &est.DurationMin
	}
	return list, nil
}

// ActiveForDriver returns the driver's current non-terminal booking, if any.
func (s *Service) ActiveForDriver(ctx context.Context, driverID types.ID) (*Booking, error) {
	list, err := s.store.ListBookings(ctx, Filter{DriverID: driverID, Statuses: ActiveStatuses})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

type step struct {
	op        string
	bookingID types.ID
	actor     ActorType
	actorID   types.ID

	// guard checks ownership and status; it runs on the read and again on
	// the fresh read after a lost compare-and-set.
	guard func(b *Booking) error
	// apply fills next from cur. It may call the distance provider.
	apply func(ctx context.Context, cur, next *Booking, now time.Time) error

	requireDriverAvailable bool
	driverAvailable        *bool
}

func (s *Service) run(ctx context.Context, st step) (b *Booking, err error) {
	defer func() { observability.ObserveTransition(st.op, err) }()

	if st.actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", types.ErrValidation)
	}
	cur, err := s.store.GetBooking(ctx, st.bookingID)
	if err != nil {
		return nil, err
	}
	if err := st.guard(cur); err != nil {
		return nil, err
	}

	now := s.now()
	next := cur.Clone()
	if err := st.apply(ctx, cur, next, now); err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1

	t := Transition{
		Next:                   next,
		FromStatus:             cur.Status,
		FromVersion:            cur.Version,
		RequireDriverAvailable: st.requireDriverAvailable,
		DriverAvailable:        st.driverAvailable,
		Event:                  s.event(cur.ID, st.op, cur.Status, next.Status, st.actor, st.actorID, now),
	}
	if err := s.store.ApplyTransition(ctx, t); err != nil {
		if errors.Is(err, types.ErrConflict) {
			return nil, s.explainConflict(ctx, st, cur.ID)
		}
		return nil, err
	}

	s.log.Info("booking transition",
		"booking_id", next.ID, "operation", st.op,
		"from", cur.Status, "to", next.Status, "version", next.Version,
	)
	return next, nil
}

// explainConflict turns a lost race into the precondition that now fails.
func (s *Service) explainConflict(ctx context.Context, st step, id types.ID) error {
	fresh, err := s.store.GetBooking(ctx, id)
	if err == nil {
		if gerr := st.guard(fresh); gerr != nil {
			return gerr
		}
	}
	return fmt.Errorf("%w: booking %s was modified concurrently", types.ErrInvalidState, id)
}

// price estimates pickup to dropoff and stamps the fare snapshot onto b.
func (s *Service) price(ctx context.Context, b *Booking, dropoff types.Location) error {
	est, err := s.estimate(ctx, b.Pickup, dropoff)
	if err != nil {
		return err
	}
	passengers, err := s.store.CountPassengers(ctx)
	if err != nil {
		return err
	}
	drivers, err := s.store.ListDrivers(ctx, driver.AvailableFilter())
	if err != nil {
		return err
	}
	q, err := s.pricing.FareWithSurge(est.DistanceKm, est.DurationMin, passengers, len(drivers))
	if err != nil {
		return err
	}
	b.DistanceKm = &est.DistanceKm
	b.DurationMin = &est.DurationMin
	b.Fare = &q.Fare
	b.SurgeMultiplier = q.Surge
	return nil
}

func (s *Service) estimate(ctx context.Context, o, d types.Location) (maps.Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	est, err := s.distance.Estimate(ctx, o, d)
	if err != nil {
		if errors.Is(err, types.ErrUpstreamUnavailable) {
			return maps.Estimate{}, err
		}
		return maps.Estimate{}, fmt.Errorf("%w: distance estimate: %v", types.ErrUpstreamUnavailable, err)
	}
	return est, nil
}

func (s *Service) event(bookingID types.ID, op string, from, to Status, actor ActorType, actorID types.ID, at time.Time) *Event {
	return &Event{
		ID:         types.ID(uuid.NewString()),
		BookingID:  bookingID,
		Operation:  op,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor,
		ActorID:    actorID,
		CreatedAt:  at,
	}
}

func notAssigned(id types.ID) error {
	return fmt.Errorf("%w: booking %s is not assigned to this driver", types.ErrForbidden, id)
}
