// README: Passenger registry: registration, profile and location updates.
package passenger

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
	PassengerID       types.ID
	Name              string
	PhoneNumber       string
	VehiclePreference string
	Lat, Lng          float64
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Passenger, error) {
	if cmd.PassengerID == "" || strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.PhoneNumber) == "" {
		return nil, fmt.Errorf("%w: user_id, name and phone_number are required", types.ErrValidation)
	}
	now := s.now()
	loc, err := types.NewLocation(cmd.Lat, cmd.Lng, now)
	if err != nil {
		return nil, err
	}
	p := &Passenger{
		ID:          cmd.PassengerID,
		Name:        strings.TrimSpace(cmd.Name),
		PhoneNumber: strings.TrimSpace(cmd.PhoneNumber),
		Location:    &loc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cmd.VehiclePreference != "" {
		vt, err := types.ParseVehicleType(cmd.VehiclePreference)
		if err != nil {
			return nil, err
		}
		p.VehiclePreference = &vt
	}
	if err := s.store.CreatePassenger(ctx, p); err != nil {
		return nil, err
	}
	s.cacheLocation(ctx, p.ID, loc)
	s.log.Info("passenger registered", "passenger_id", p.ID)
	return p, nil
}

type UpdateCommand struct {
	PassengerID       types.ID
	Name              *string
	PhoneNumber       *string
	VehiclePreference *string
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*Passenger, error) {
	var patch Patch
	if cmd.Name != nil {
		n := strings.TrimSpace(*cmd.Name)
		if n == "" {
			return nil, fmt.Errorf("%w: name must not be empty", types.ErrValidation)
		}
		patch.Name = &n
	}
	if cmd.PhoneNumber != nil {
		ph := strings.TrimSpace(*cmd.PhoneNumber)
		if ph == "" {
			return nil, fmt.Errorf("%w: phone_number must not be empty", types.ErrValidation)
		}
		patch.PhoneNumber = &ph
	}
	if cmd.VehiclePreference != nil {
		vt, err := types.ParseVehicleType(*cmd.VehiclePreference)
		if err != nil {
			return nil, err
		}
		patch.VehiclePreference = &vt
	}
	if err := s.store.UpdatePassenger(ctx, cmd.PassengerID, patch); err != nil {
		return nil, err
	}
	return s.store.GetPassenger(ctx, cmd.PassengerID)
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, lat, lng float64) error {
	loc, err := types.NewLocation(lat, lng, s.now())
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassenger(ctx, id, Patch{Location: &loc}); err != nil {
		return err
	}
	s.cacheLocation(ctx, id, loc)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Passenger, error) {
	return s.store.GetPassenger(ctx, id)
}

func (s *Service) cacheLocation(ctx context.Context, id types.ID, loc types.Location) {
	if err := s.locations.UpdatePassenger(ctx, id, loc); err != nil {
		s.log.Warn("passenger location cache update failed", "passenger_id", id, "error", err)
	}
}
