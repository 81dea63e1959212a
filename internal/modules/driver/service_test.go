package driver_test

import (
	"context"
	"errors"
	"testing"

	"ridecore/internal/logging"
	"ridecore/internal/modules/driver"
	"ridecore/internal/storage/memory"
	"ridecore/internal/types"
)

type recordingCache struct {
	updates map[types.ID]types.Location
	err     error
}

func (c *recordingCache) UpdateDriver(_ context.Context, id types.ID, loc types.Location) error {
	if c.err != nil {
		return c.err
	}
	c.updates[id] = loc
	return nil
}

func newService(t *testing.T) (*driver.Service, *recordingCache) {
	t.Helper()
	cache := &recordingCache{updates: map[types.ID]types.Location{}}
	return driver.NewService(memory.NewStore(), cache, logging.Discard()), cache
}

func register(t *testing.T, svc *driver.Service, id, vt string) *driver.Driver {
	t.Helper()
	d, err := svc.Register(context.Background(), driver.RegisterCommand{
		DriverID: types.ID(id), Name: "Rajesh", PhoneNumber: "+919123456789", VehicleType: vt,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", id, err)
	}
	return d
}

func TestRegister(t *testing.T) {
	svc, _ := newService(t)
	d := register(t, svc, "d1", "sedan")
	if d.IsOnline || d.IsAvailable {
		t.Fatalf("new drivers start offline, got %+v", d)
	}
	if d.VehicleType != types.VehicleSedan {
		t.Fatalf("vehicle type = %s", d.VehicleType)
	}

	cases := []struct {
		name string
		cmd  driver.RegisterCommand
		want error
	}{
		{"duplicate id", driver.RegisterCommand{DriverID: "d1", Name: "x", PhoneNumber: "1", VehicleType: "suv"}, types.ErrInvalidState},
		{"unknown vehicle", driver.RegisterCommand{DriverID: "d2", Name: "x", PhoneNumber: "1", VehicleType: "rickshaw"}, types.ErrValidation},
		{"blank name", driver.RegisterCommand{DriverID: "d3", Name: "  ", PhoneNumber: "1", VehicleType: "suv"}, types.ErrValidation},
		{"missing id", driver.RegisterCommand{Name: "x", PhoneNumber: "1", VehicleType: "suv"}, types.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("Register() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSetAvailability(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	register(t, svc, "d1", "suv")

	d, err := svc.SetAvailability(ctx, "d1", true)
	if err != nil {
		t.Fatalf("SetAvailability(true) error = %v", err)
	}
	if !d.IsOnline || !d.IsAvailable {
		t.Fatalf("expected online and available, got %+v", d)
	}
	d, err = svc.SetAvailability(ctx, "d1", false)
	if err != nil {
		t.Fatalf("SetAvailability(false) error = %v", err)
	}
	if d.IsOnline || d.IsAvailable {
		t.Fatalf("expected offline, got %+v", d)
	}
	if _, err := svc.SetAvailability(ctx, "ghost", true); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown driver error = %v", err)
	}
}

func TestUpdateLocation(t *testing.T) {
	svc, cache := newService(t)
	ctx := context.Background()
	register(t, svc, "d1", "hatchback")

	if err := svc.UpdateLocation(ctx, "d1", 28.61, 77.20); err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if d.Location == nil || d.Location.Lat != 28.61 {
		t.Fatalf("stored location = %+v", d.Location)
	}
	if got := cache.updates["d1"]; got.Lng != 77.20 {
		t.Fatalf("cached location = %+v", got)
	}

	if err := svc.UpdateLocation(ctx, "d1", 91, 0); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("latitude 91 error = %v", err)
	}
	if err := svc.UpdateLocation(ctx, "d1", 0, -181); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("longitude -181 error = %v", err)
	}
	if err := svc.UpdateLocation(ctx, "ghost", 1, 1); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown driver error = %v", err)
	}
}

func TestUpdateLocation_CacheFailureIsNotFatal(t *testing.T) {
	svc, cache := newService(t)
	ctx := context.Background()
	register(t, svc, "d1", "sedan")
	cache.err = errors.New("redis down")

	if err := svc.UpdateLocation(ctx, "d1", 10, 10); err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if d.Location == nil || d.Location.Lat != 10 {
		t.Fatalf("repository must still hold the position, got %+v", d.Location)
	}
}

func TestListAvailable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	register(t, svc, "sedan-on", "sedan")
	register(t, svc, "suv-on", "suv")
	register(t, svc, "sedan-off", "sedan")
	for _, id := range []types.ID{"sedan-on", "suv-on"} {
		if _, err := svc.SetAvailability(ctx, id, true); err != nil {
			t.Fatal(err)
		}
	}

	all, err := svc.ListAvailable(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAvailable(all) = %d drivers, err %v", len(all), err)
	}
	sedans, err := svc.ListAvailable(ctx, types.VehicleSedan)
	if err != nil || len(sedans) != 1 || sedans[0].ID != "sedan-on" {
		t.Fatalf("ListAvailable(sedan) = %+v, err %v", sedans, err)
	}
}
