package ranking

import (
	"context"

	"ridecore/internal/maps"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/types"
)

// Directory is the repository view Nearby needs.
type Directory interface {
	ListDrivers(ctx context.Context, f driver.Filter) ([]driver.Driver, error)
	CountPassengers(ctx context.Context) (int, error)
}

// LocationSource serves fresh cached positions; a miss falls back to the
// position stored on the driver. DriversWithin reports ok=false when no
// radius index is available.
type LocationSource interface {
	LatestDriver(ctx context.Context, id types.ID) (types.Location, bool)
	DriversWithin(ctx context.Context, origin types.Location, radiusKm float64) ([]types.ID, bool)
}

// WithDirectory enables Nearby.
func (s *Service) WithDirectory(dir Directory, locations LocationSource) *Service {
	s.directory = dir
	s.locations = locations
	return s
}

type NearbyRequest struct {
	Pickup      types.Location
	Destination *types.Location
	VehicleType types.VehicleType
	// RadiusKm limits candidates around Pickup when positive.
	RadiusKm float64
}

type NearbyDriver struct {
	Entry
	Name          string            `json:"name"`
	PhoneNumber   string            `json:"phone_number"`
	VehicleType   types.VehicleType `json:"vehicle_type"`
	VehicleNumber string            `json:"vehicle_number,omitempty"`
}

type NearbyResult struct {
	Drivers  []NearbyDriver `json:"drivers"`
	Trip     *maps.Estimate `json:"trip,omitempty"`
	Quote    *pricing.Quote `json:"quote,omitempty"`
	Degraded bool           `json:"degraded"`
}

// Nearby lists online and available drivers, optionally of one vehicle type,
// and ranks those with a known location.
func (s *Service) Nearby(ctx context.Context, req NearbyRequest) (NearbyResult, error) {
	available, err := s.directory.ListDrivers(ctx, driver.AvailableFilter())
	if err != nil {
		return NearbyResult{}, err
	}
	passengers, err := s.directory.CountPassengers(ctx)
	if err != nil {
		return NearbyResult{}, err
	}

	var inRadius map[types.ID]bool
	if req.RadiusKm > 0 {
		if ids, ok := s.locations.DriversWithin(ctx, req.Pickup, req.RadiusKm); ok {
			inRadius = make(map[types.ID]bool, len(ids))
			for _, id := range ids {
				inRadius[id] = true
			}
		}
	}

	byID := make(map[types.ID]driver.Driver, len(available))
	var candidates []Candidate
	for _, d := range available {
		if req.VehicleType != "" && d.VehicleType != req.VehicleType {
			continue
		}
		if inRadius != nil && !inRadius[d.ID] {
			continue
		}
		loc, ok := s.locations.LatestDriver(ctx, d.ID)
		if !ok {
			if d.Location == nil {
				continue
			}
			loc = *d.Location
		}
		// Without a GEO index the radius is checked on the resolved position.
		if req.RadiusKm > 0 && inRadius == nil &&
			maps.HaversineKm(req.Pickup.Lat, req.Pickup.Lng, loc.Lat, loc.Lng) > req.RadiusKm {
			continue
		}
		byID[d.ID] = d
		candidates = append(candidates, Candidate{DriverID: d.ID, Location: loc})
	}
	if len(candidates) == 0 {
		return NearbyResult{Drivers: []NearbyDriver{}}, nil
	}

	res, err := s.Rank(ctx, Request{
		Pickup:         req.Pickup,
		Destination:    req.Destination,
		Candidates:     candidates,
		PassengerCount: passengers,
		DriverCount:    len(available),
	})
	if err != nil {
		return NearbyResult{}, err
	}

	out := NearbyResult{
		Drivers:  make([]NearbyDriver, 0, len(res.Entries)),
		Trip:     res.Trip,
		Quote:    res.Quote,
		Degraded: res.Degraded,
	}
	for _, e := range res.Entries {
		d := byID[e.DriverID]
		out.Drivers = append(out.Drivers, NearbyDriver{
			Entry:         e,
			Name:          d.Name,
			PhoneNumber:   d.PhoneNumber,
			VehicleType:   d.VehicleType,
			VehicleNumber: d.VehicleNumber,
		})
	}
	return out, nil
}
