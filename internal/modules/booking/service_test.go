package booking_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ridecore/internal/logging"
	"ridecore/internal/maps"
	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/storage/memory"
	"ridecore/internal/types"
)

type fixedProvider struct {
	mu  sync.Mutex
	est maps.Estimate
	err error
}

func (p *fixedProvider) Estimate(ctx context.Context, _, _ types.Location) (maps.Estimate, error) {
	if err := ctx.Err(); err != nil {
		return maps.Estimate{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.est, p.err
}

func (p *fixedProvider) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store    *memory.Store
	svc      *booking.Service
	provider *fixedProvider
	clock    *clock
}

var (
	pickup  = types.Location{Lat: 28.6139, Lng: 77.2090}
	dropoff = types.Location{Lat: 28.7041, Lng: 77.1025}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	provider := &fixedProvider{est: maps.Estimate{DistanceKm: 5, DurationMin: 10}}
	svc := booking.NewService(store, pricing.NewService(pricing.DefaultConfig()), provider, booking.Config{ProviderTimeout: time.Second}, logging.Discard())
	c := &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc.SetClock(c.now)

	for _, id := range []types.ID{"p1", "p2"} {
		if err := store.CreatePassenger(ctx, &passenger.Passenger{ID: id, Name: "rider", PhoneNumber: "1"}); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []types.ID{"d1", "d2"} {
		if err := store.CreateDriver(ctx, &driver.Driver{ID: id, Name: "driver", VehicleType: types.VehicleSedan}); err != nil {
			t.Fatal(err)
		}
		if err := store.SetDriverAvailability(ctx, id, true); err != nil {
			t.Fatal(err)
		}
	}
	return &fixture{store: store, svc: svc, provider: provider, clock: c}
}

func (f *fixture) create(t *testing.T, passengerID, driverID types.ID) *booking.Booking {
	t.Helper()
	d := dropoff
	b, err := f.svc.Create(context.Background(), booking.CreateCommand{
		PassengerID: passengerID, DriverID: driverID, Pickup: pickup, Dropoff: &d,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

// confirmed drives a fresh booking to CONFIRMED.
func (f *fixture) confirmed(t *testing.T) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	b := f.create(t, "p1", "d1")
	if _, err := f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	b, err := f.svc.PassengerConfirm(ctx, booking.ConfirmCommand{BookingID: b.ID, PassengerID: "p1"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return b
}

func (f *fixture) driverAvailable(t *testing.T, id types.ID) bool {
	t.Helper()
	d, err := f.store.GetDriver(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return d.IsAvailable
}

func TestCreate_PricesTrip(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "p1", "d1")

	if b.Status != booking.StatusPending || b.DriverAccepted || b.PassengerConfirmed {
		t.Fatalf("unexpected initial state: %+v", b)
	}
	if b.Fare == nil || b.DistanceKm == nil || b.DurationMin == nil {
		t.Fatalf("booking not priced: %+v", b)
	}
	// 2 passengers / 2 available drivers: balanced demand is unsurged.
	if b.SurgeMultiplier != 1.0 || *b.Fare != 120 {
		t.Fatalf("fare = %v surge = %v, want 120 at 1.0", *b.Fare, b.SurgeMultiplier)
	}
	if b.VehicleType != types.VehicleSedan {
		t.Fatalf("vehicle type = %s, want driver's sedan", b.VehicleType)
	}
	if !f.driverAvailable(t, "d1") {
		t.Fatalf("creation must not flip availability")
	}
}

func TestCreate_WithoutDropoffIsUnpriced(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(context.Background(), booking.CreateCommand{PassengerID: "p1", DriverID: "d1", Pickup: pickup})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Fare != nil || b.DistanceKm != nil || b.SurgeMultiplier != 1.0 {
		t.Fatalf("expected unpriced booking, got %+v", b)
	}
}

func TestCreate_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := dropoff

	if err := f.store.SetDriverAvailability(ctx, "d2", false); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		cmd  booking.CreateCommand
		want error
	}{
		{"unknown driver", booking.CreateCommand{PassengerID: "p1", DriverID: "nobody", Pickup: pickup}, types.ErrNotFound},
		{"unknown passenger", booking.CreateCommand{PassengerID: "ghost", DriverID: "d1", Pickup: pickup}, types.ErrNotFound},
		{"offline driver", booking.CreateCommand{PassengerID: "p1", DriverID: "d2", Pickup: pickup}, types.ErrInvalidState},
		{"bad pickup", booking.CreateCommand{PassengerID: "p1", DriverID: "d1", Pickup: types.Location{Lat: 91}}, types.ErrValidation},
		{"missing ids", booking.CreateCommand{Pickup: pickup, Dropoff: &d}, types.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.cmd)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreate_ProviderFailureFailsBooking(t *testing.T) {
	f := newFixture(t)
	f.provider.fail(errors.New("quota exceeded"))
	d := dropoff
	_, err := f.svc.Create(context.Background(), booking.CreateCommand{PassengerID: "p1", DriverID: "d1", Pickup: pickup, Dropoff: &d})
	if !errors.Is(err, types.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	list, _ := f.store.ListBookings(context.Background(), booking.Filter{PassengerID: "p1"})
	if len(list) != 0 {
		t.Fatalf("no booking may be stored after a pricing failure, got %d", len(list))
	}
}

func TestCreate_OneActiveBookingPerPassenger(t *testing.T) {
	f := newFixture(t)
	f.create(t, "p1", "d1")
	_, err := f.svc.Create(context.Background(), booking.CreateCommand{PassengerID: "p1", DriverID: "d2", Pickup: pickup})
	if !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestHappyPath_FlipsDriverAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	if b.Status != booking.StatusConfirmed || !b.DriverAccepted || !b.PassengerConfirmed {
		t.Fatalf("expected confirmed booking, got %+v", b)
	}

	b, err := f.svc.Start(ctx, booking.StartCommand{BookingID: b.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if b.Status != booking.StatusInProgress || b.StartedAt == nil {
		t.Fatalf("unexpected state after start: %+v", b)
	}
	if f.driverAvailable(t, "d1") {
		t.Fatalf("driver must be unavailable during the ride")
	}

	b, err = f.svc.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, DriverID: "d1"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if b.Status != booking.StatusCompleted || b.CompletedAt == nil {
		t.Fatalf("unexpected state after complete: %+v", b)
	}
	if !f.driverAvailable(t, "d1") {
		t.Fatalf("driver must be available after completion")
	}

	events, err := f.svc.Events(ctx, b.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	wantOps := []string{"create", "driver_accept", "passenger_confirm", "start", "complete"}
	if len(events) != len(wantOps) {
		t.Fatalf("got %d events, want %d", len(events), len(wantOps))
	}
	for i, op := range wantOps {
		if events[i].Operation != op {
			t.Fatalf("event %d = %s, want %s", i, events[i].Operation, op)
		}
	}
	if b.Version != 5 {
		t.Fatalf("version = %d, want 5", b.Version)
	}
}

func TestDriverAccept_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "p1", "d1")
	if _, err := f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: "d1"})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("second accept err = %v, want ErrInvalidTransition", err)
	}
}

func TestDriverAccept_WrongDriverAndUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "p1", "d1")

	_, err := f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: "d2"})
	if !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	if err := f.store.SetDriverAvailability(ctx, "d1", false); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: "d1"})
	if !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestStart_NamesPendingSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "p1", "d1")

	_, err := f.svc.Start(ctx, booking.StartCommand{BookingID: b.ID, DriverID: "d1"})
	if !errors.Is(err, types.ErrInvalidTransition) || !strings.Contains(err.Error(), "driver must accept") {
		t.Fatalf("err = %v, want driver-must-accept transition error", err)
	}

	if _, err := f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: "d1"}); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Start(ctx, booking.StartCommand{BookingID: b.ID, DriverID: "d1"})
	if !errors.Is(err, types.ErrInvalidTransition) || !strings.Contains(err.Error(), "passenger must confirm") {
		t.Fatalf("err = %v, want passenger-must-confirm transition error", err)
	}
}

// acceptAndConfirm moves a pending booking to CONFIRMED.
func (f *fixture) acceptAndConfirm(t *testing.T, b *booking.Booking) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: *b.DriverID}); err != nil {
		t.Fatalf("accept %s: %v", b.ID, err)
	}
	if _, err := f.svc.PassengerConfirm(ctx, booking.ConfirmCommand{BookingID: b.ID, PassengerID: b.PassengerID}); err != nil {
		t.Fatalf("confirm %s: %v", b.ID, err)
	}
}

func TestStart_DriverCannotRunTwoRides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, "p1", "d1")
	second := f.create(t, "p2", "d1")
	f.acceptAndConfirm(t, first)
	f.acceptAndConfirm(t, second)

	if _, err := f.svc.Start(ctx, booking.StartCommand{BookingID: first.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("start first: %v", err)
	}
	_, err := f.svc.Start(ctx, booking.StartCommand{BookingID: second.ID, DriverID: "d1"})
	if !errors.Is(err, types.ErrInvalidState) || !strings.Contains(err.Error(), "not available") {
		t.Fatalf("expected driver unavailable, got %v", err)
	}
	got, _ := f.svc.Get(ctx, second.ID)
	if got.Status != booking.StatusConfirmed || got.StartedAt != nil {
		t.Fatalf("second booking changed: %+v", got)
	}

	// Cancelling the waiting booking must not free a driver who is mid-ride.
	if _, err := f.svc.Cancel(ctx, booking.CancelCommand{BookingID: second.ID, ActorType: booking.ActorPassenger, ActorID: "p2"}); err != nil {
		t.Fatalf("cancel second: %v", err)
	}
	if f.driverAvailable(t, "d1") {
		t.Fatal("driver became available while a ride is in progress")
	}

	if _, err := f.svc.Complete(ctx, booking.CompleteCommand{BookingID: first.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("complete first: %v", err)
	}
	if !f.driverAvailable(t, "d1") {
		t.Fatal("driver not freed after completing the ride")
	}
}

func TestPassengerConfirm_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "p1", "d1")

	_, err := f.svc.PassengerConfirm(ctx, booking.ConfirmCommand{BookingID: b.ID, PassengerID: "p2"})
	if !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("other passenger err = %v, want ErrForbidden", err)
	}
	_, err = f.svc.PassengerConfirm(ctx, booking.ConfirmCommand{BookingID: b.ID, PassengerID: "p1"})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("confirm before accept err = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.svc.DriverAccept(ctx, booking.AcceptCommand{BookingID: b.ID, DriverID: "d1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.PassengerConfirm(ctx, booking.ConfirmCommand{BookingID: b.ID, PassengerID: "p1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err = f.svc.PassengerConfirm(ctx, booking.ConfirmCommand{BookingID: b.ID, PassengerID: "p1"})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("second confirm err = %v, want ErrInvalidTransition", err)
	}
}

func TestComplete_RepricesChangedDropoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	if _, err := f.svc.Start(ctx, booking.StartCommand{BookingID: b.ID, DriverID: "d1"}); err != nil {
		t.Fatal(err)
	}
	f.provider.mu.Lock()
	f.provider.est = maps.Estimate{DistanceKm: 10, DurationMin: 20}
	f.provider.mu.Unlock()

	moved := types.Location{Lat: 28.5, Lng: 77.3}
	done, err := f.svc.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, DriverID: "d1", Dropoff: &moved})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	// d1 is busy during the ride: 2 passengers over 1 available driver -> high surge.
	if *done.DistanceKm != 10 || done.SurgeMultiplier != 2.0 || *done.Fare != 380 {
		t.Fatalf("reprice = %v km, %v surge, fare %v", *done.DistanceKm, done.SurgeMultiplier, *done.Fare)
	}
	if !done.Dropoff.SamePoint(moved) {
		t.Fatalf("dropoff not updated")
	}
}

func TestComplete_ProviderFailureKeepsRideInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	if _, err := f.svc.Start(ctx, booking.StartCommand{BookingID: b.ID, DriverID: "d1"}); err != nil {
		t.Fatal(err)
	}
	f.provider.fail(errors.New("down"))
	moved := types.Location{Lat: 28.5, Lng: 77.3}
	_, err := f.svc.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, DriverID: "d1", Dropoff: &moved})
	if !errors.Is(err, types.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	got, _ := f.svc.Get(ctx, b.ID)
	if got.Status != booking.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
}

func TestCancel_PassengerFeeAfterThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := dropoff
	f.provider.mu.Lock()
	f.provider.est = maps.Estimate{DistanceKm: 5, DurationMin: 10}
	f.provider.mu.Unlock()
	// Drop demand to ratio < 1 so the fare is exactly 120.
	if err := f.store.CreateDriver(ctx, &driver.Driver{ID: "d3", VehicleType: types.VehicleSedan}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SetDriverAvailability(ctx, "d3", true); err != nil {
		t.Fatal(err)
	}
	b, err := f.svc.Create(ctx, booking.CreateCommand{PassengerID: "p1", DriverID: "d1", Pickup: pickup, Dropoff: &d, VehicleType: types.VehicleSedan})
	if err != nil {
		t.Fatal(err)
	}
	if *b.Fare != 120 {
		t.Fatalf("fare = %v, want 120", *b.Fare)
	}

	f.clock.advance(6 * time.Minute)
	got, err := f.svc.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, ActorType: booking.ActorPassenger, ActorID: "p1"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if *got.CancellationFeeBeforeGST != 90 || *got.CancellationFee != 95.40 {
		t.Fatalf("fee = %v / %v, want 90 / 95.40", *got.CancellationFeeBeforeGST, *got.CancellationFee)
	}
	if got.CancelledAt == nil || got.CancelledBy == nil || *got.CancelledBy != booking.ActorPassenger {
		t.Fatalf("cancellation fields not set: %+v", got)
	}
}

func TestCancel_UnpricedUsesMinimumFare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, booking.CreateCommand{PassengerID: "p1", DriverID: "d1", Pickup: pickup})
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, ActorType: booking.ActorPassenger, ActorID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	// min(50 * 0.10, 100) = 5 before the threshold.
	if *got.CancellationFeeBeforeGST != 5 || *got.CancellationFee != 5.3 {
		t.Fatalf("fee = %v / %v, want 5 / 5.3", *got.CancellationFeeBeforeGST, *got.CancellationFee)
	}
}

func TestCancel_DriverChargesNothingAndFreesDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	f.clock.advance(30 * time.Minute)
	got, err := f.svc.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, ActorType: booking.ActorDriver, ActorID: "d1"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if *got.CancellationFee != 0 {
		t.Fatalf("driver cancel fee = %v, want 0", *got.CancellationFee)
	}
	if !f.driverAvailable(t, "d1") {
		t.Fatalf("driver must be available after cancel")
	}
}

func TestCancel_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)

	_, err := f.svc.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, ActorType: booking.ActorDriver, ActorID: "d2"})
	if !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("foreign driver err = %v, want ErrForbidden", err)
	}
	_, err = f.svc.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, ActorType: "system", ActorID: "x"})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("bad actor err = %v, want ErrValidation", err)
	}

	if _, err := f.svc.Start(ctx, booking.StartCommand{BookingID: b.ID, DriverID: "d1"}); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, ActorType: booking.ActorPassenger, ActorID: "p1"})
	if !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("in-progress cancel err = %v, want ErrInvalidState", err)
	}
}

// Every operation not in the transition table for a status must be rejected,
// and terminal bookings accept nothing.
func TestStateMachine_RejectsIllegalOperations(t *testing.T) {
	ops := map[string]func(*fixture, types.ID) error{
		"accept": func(f *fixture, id types.ID) error {
			_, err := f.svc.DriverAccept(context.Background(), booking.AcceptCommand{BookingID: id, DriverID: "d1"})
			return err
		},
		"confirm": func(f *fixture, id types.ID) error {
			_, err := f.svc.PassengerConfirm(context.Background(), booking.ConfirmCommand{BookingID: id, PassengerID: "p1"})
			return err
		},
		"start": func(f *fixture, id types.ID) error {
			_, err := f.svc.Start(context.Background(), booking.StartCommand{BookingID: id, DriverID: "d1"})
			return err
		},
		"complete": func(f *fixture, id types.ID) error {
			_, err := f.svc.Complete(context.Background(), booking.CompleteCommand{BookingID: id, DriverID: "d1"})
			return err
		},
		"cancel": func(f *fixture, id types.ID) error {
			_, err := f.svc.Cancel(context.Background(), booking.CancelCommand{BookingID: id, ActorType: booking.ActorPassenger, ActorID: "p1"})
			return err
		},
	}
	// Operations legal from each status; everything else must fail.
	legal := map[booking.Status]map[string]bool{
		booking.StatusPending:        {"accept": true, "cancel": true},
		booking.StatusDriverAccepted: {"confirm": true, "cancel": true},
		booking.StatusConfirmed:      {"start": true, "cancel": true},
		booking.StatusInProgress:     {"complete": true},
		booking.StatusCompleted:      {},
		booking.StatusCancelled:      {},
	}
	reach := map[booking.Status][]string{
		booking.StatusPending:        nil,
		booking.StatusDriverAccepted: {"accept"},
		booking.StatusConfirmed:      {"accept", "confirm"},
		booking.StatusInProgress:     {"accept", "confirm", "start"},
		booking.StatusCompleted:      {"accept", "confirm", "start", "complete"},
		booking.StatusCancelled:      {"cancel"},
	}

	for status, path := range reach {
		for op, run := range ops {
			if legal[status][op] {
				continue
			}
			t.Run(string(status)+"/"+op, func(t *testing.T) {
				f := newFixture(t)
				b := f.create(t, "p1", "d1")
				for _, step := range path {
					if err := ops[step](f, b.ID); err != nil {
						t.Fatalf("reach %s via %s: %v", status, step, err)
					}
				}
				err := run(f, b.ID)
				if !errors.Is(err, types.ErrInvalidTransition) && !errors.Is(err, types.ErrInvalidState) {
					t.Fatalf("%s from %s: err = %v, want InvalidTransition or InvalidState", op, status, err)
				}
				got, _ := f.svc.Get(context.Background(), b.ID)
				if got.Status != status {
					t.Fatalf("status changed to %s after rejected %s", got.Status, op)
				}
			})
		}
	}
}

func TestListForDriver_FillsDisplayDistance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := dropoff
	if _, err := f.svc.Create(ctx, booking.CreateCommand{PassengerID: "p1", DriverID: "d1", Pickup: pickup}); err != nil {
		t.Fatal(err)
	}
	b2, err := f.svc.Create(ctx, booking.CreateCommand{PassengerID: "p2", DriverID: "d1", Pickup: pickup, Dropoff: &d})
	if err != nil {
		t.Fatal(err)
	}
	list, err := f.svc.ListForDriver(ctx, "d1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d bookings, want 2", len(list))
	}
	pending, err := f.svc.ListForDriver(ctx, "d1", booking.StatusPending)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending list = %d, %v", len(pending), err)
	}
	for _, b := range list {
		if b.ID == b2.ID && b.DistanceKm == nil {
			t.Fatalf("priced booking lost its distance")
		}
	}
	if _, err := f.svc.ListForDriver(ctx, "ghost", ""); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown driver err = %v, want ErrNotFound", err)
	}
}
