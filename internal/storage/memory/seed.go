package memory

import (
	"context"

	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/types"
)

type demoPassenger struct {
	id, name, phone string
	pref            types.VehicleType
	lat, lng        float64
}

type demoDriver struct {
	id, name, phone, plate string
	vehicle                types.VehicleType
	lat, lng               float64
}

var demoPassengers = []demoPassenger{
	{"passenger_001", "Rahul Sharma", "+919876543210", types.VehicleSedan, 28.6139, 77.2090},
	{"passenger_002", "Priya Patel", "+919876543211", types.VehicleSUV, 28.7041, 77.1025},
	{"passenger_003", "Amit Kumar", "+919876543212", types.VehicleHatchback, 28.5355, 77.3910},
	{"passenger_004", "Sneha Verma", "+919876543213", types.VehiclePremium, 28.4595, 77.0266},
	{"passenger_005", "Vikram Gupta", "+919876543214", types.VehicleSedan, 28.4089, 77.0378},
	{"passenger_006", "Anjali Desai", "+919876543215", types.VehicleSUV, 28.5500, 77.2500},
}

var demoDrivers = []demoDriver{
	{"driver_001", "Rajesh Kumar", "+919123456789", "DL-01-AB-1234", types.VehicleSedan, 28.6139, 77.2090},
	{"driver_002", "Suresh Yadav", "+919123456790", "DL-02-CD-5678", types.VehicleSUV, 28.6280, 77.2200},
	{"driver_003", "Manoj Singh", "+919123456791", "DL-03-EF-9012", types.VehicleHatchback, 28.5900, 77.1950},
}

// SeedDemo loads a small Delhi-area data set with every driver online and
// available.
func (s *Store) SeedDemo(ctx context.Context) error {
	now := s.now()
	for _, p := range demoPassengers {
		pref := p.pref
		loc := types.Location{Lat: p.lat, Lng: p.lng, CapturedAt: now}
		if err := s.CreatePassenger(ctx, &passenger.Passenger{
			ID: types.ID(p.id), Name: p.name, PhoneNumber: p.phone,
			VehiclePreference: &pref, Location: &loc,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
	}
	for _, d := range demoDrivers {
		loc := types.Location{Lat: d.lat, Lng: d.lng, CapturedAt: now}
		if err := s.CreateDriver(ctx, &driver.Driver{
			ID: types.ID(d.id), Name: d.name, PhoneNumber: d.phone,
			VehicleType: d.vehicle, VehicleNumber: d.plate,
			IsOnline: true, IsAvailable: true, Location: &loc,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}
