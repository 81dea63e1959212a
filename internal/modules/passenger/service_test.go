package passenger_test

import (
	"context"
	"errors"
	"testing"

	"ridecore/internal/logging"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/storage/memory"
	"ridecore/internal/types"
)

type recordingCache struct {
	updates int
	err     error
}

func (c *recordingCache) UpdatePassenger(context.Context, types.ID, types.Location) error {
	c.updates++
	return c.err
}

func newService(t *testing.T) (*passenger.Service, *recordingCache) {
	t.Helper()
	cache := &recordingCache{}
	return passenger.NewService(memory.NewStore(), cache, logging.Discard()), cache
}

func strPtr(s string) *string { return &s }

func TestRegister(t *testing.T) {
	svc, cache := newService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, passenger.RegisterCommand{
		PassengerID: "p1", Name: " Rahul ", PhoneNumber: "+919876543210",
		VehiclePreference: "SUV", Lat: 28.6139, Lng: 77.2090,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if p.Name != "Rahul" || p.VehiclePreference == nil || *p.VehiclePreference != types.VehicleSUV {
		t.Fatalf("unexpected passenger %+v", p)
	}
	if p.Location == nil || p.Location.Lat != 28.6139 {
		t.Fatalf("initial location = %+v", p.Location)
	}
	if cache.updates != 1 {
		t.Fatalf("expected the initial location to be cached")
	}

	cases := []struct {
		name string
		cmd  passenger.RegisterCommand
		want error
	}{
		{"duplicate", passenger.RegisterCommand{PassengerID: "p1", Name: "x", PhoneNumber: "1"}, types.ErrInvalidState},
		{"bad preference", passenger.RegisterCommand{PassengerID: "p2", Name: "x", PhoneNumber: "1", VehiclePreference: "boat"}, types.ErrValidation},
		{"bad latitude", passenger.RegisterCommand{PassengerID: "p3", Name: "x", PhoneNumber: "1", Lat: -91}, types.ErrValidation},
		{"missing phone", passenger.RegisterCommand{PassengerID: "p4", Name: "x"}, types.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("Register() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUpdate_PartialPatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, passenger.RegisterCommand{PassengerID: "p1", Name: "Priya", PhoneNumber: "111"}); err != nil {
		t.Fatal(err)
	}

	p, err := svc.Update(ctx, passenger.UpdateCommand{PassengerID: "p1", VehiclePreference: strPtr("premium")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Name != "Priya" || p.PhoneNumber != "111" {
		t.Fatalf("untouched fields changed: %+v", p)
	}
	if p.VehiclePreference == nil || *p.VehiclePreference != types.VehiclePremium {
		t.Fatalf("preference = %v", p.VehiclePreference)
	}

	if _, err := svc.Update(ctx, passenger.UpdateCommand{PassengerID: "p1", Name: strPtr(" ")}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("blank name error = %v", err)
	}
	if _, err := svc.Update(ctx, passenger.UpdateCommand{PassengerID: "ghost", Name: strPtr("x")}); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown passenger error = %v", err)
	}
}

func TestUpdateLocation(t *testing.T) {
	svc, cache := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, passenger.RegisterCommand{PassengerID: "p1", Name: "Amit", PhoneNumber: "222"}); err != nil {
		t.Fatal(err)
	}
	cache.err = errors.New("redis down")

	if err := svc.UpdateLocation(ctx, "p1", 28.5355, 77.3910); err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}
	p, err := svc.Get(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Location == nil || p.Location.Lng != 77.3910 {
		t.Fatalf("location = %+v", p.Location)
	}
	if err := svc.UpdateLocation(ctx, "p1", 0, 200); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("longitude 200 error = %v", err)
	}
}
