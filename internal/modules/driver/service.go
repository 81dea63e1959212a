// README: Driver registry: registration, availability and location updates.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ridecore/internal/types"
)

type Service struct {
	store     Store
	locations LocationCache
	log       *slog.Logger
	now       func() time.Time
}

func NewService(store Store, locations LocationCache, log *slog.Logger) *Service {
	return &Service{store: store, locations: locations, log: log, now: time.Now}
}

type RegisterCommand struct {
	DriverID      types.ID
	Name          string
	PhoneNumber   string
	VehicleType   string
	VehicleNumber string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	if cmd.DriverID == "" || strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.PhoneNumber) == "" {
		return nil, fmt.Errorf("%w: driver_id, name and phone_number are required", types.ErrValidation)
	}
	vt, err := types.ParseVehicleType(cmd.VehicleType)
	if err != nil {
		return nil, err
	}
	now := s.now()
	d := &Driver{
		ID:            cmd.DriverID,
		Name:          strings.TrimSpace(cmd.Name),
		PhoneNumber:   strings.TrimSpace(cmd.PhoneNumber),
		VehicleType:   vt,
		VehicleNumber: strings.TrimSpace(cmd.VehicleNumber),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateDriver(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("driver registered", "driver_id", d.ID, "vehicle_type", d.VehicleType)
	return d, nil
}

// SetAvailability moves a driver online+available or offline+unavailable.
func (s *Service) SetAvailability(ctx context.Context, id types.ID, available bool) (*Driver, error) {
	if err := s.store.SetDriverAvailability(ctx, id, available); err != nil {
		return nil, err
	}
	s.log.Info("driver availability changed", "driver_id", id, "available", available)
	return s.store.GetDriver(ctx, id)
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, lat, lng float64) error {
	loc, err := types.NewLocation(lat, lng, s.now())
	if err != nil {
		return err
	}
	if err := s.store.UpdateDriverLocation(ctx, id, loc); err != nil {
		return err
	}
	if err := s.locations.UpdateDriver(ctx, id, loc); err != nil {
		// The repository already holds the position; ranking falls back to it.
		s.log.Warn("driver location cache update failed", "driver_id", id, "error", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.GetDriver(ctx, id)
}

func (s *Service) ListAvailable(ctx context.Context, vt types.VehicleType) ([]Driver, error) {
	f := AvailableFilter()
	f.VehicleType = vt
	return s.store.ListDrivers(ctx, f)
}
