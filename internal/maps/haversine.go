package maps

import (
	"context"
	"math"

	"ridecore/internal/types"
)

const earthRadiusKm = 6371.0

// HaversineProvider estimates great-circle distance at a fixed average
// speed. It is the numeric fallback when no routing API is configured.
type HaversineProvider struct {
	SpeedKmh float64
}

func (p HaversineProvider) Estimate(ctx context.Context, origin, destination types.Location) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, upstreamErr("%v", err)
	}
	speed := p.SpeedKmh
	if speed <= 0 {
		speed = 25
	}
	km := HaversineKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng)
	return Estimate{DistanceKm: km, DurationMin: km / speed * 60}, nil
}

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
