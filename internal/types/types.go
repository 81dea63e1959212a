// README: Shared value objects (ids, locations, vehicle types) used across modules.
package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type ID string

// Location is a WGS84 coordinate with the time it was captured.
type Location struct {
	Lat        float64   `json:"latitude"`
	Lng        float64   `json:"longitude"`
	CapturedAt time.Time `json:"timestamp"`
}

func NewLocation(lat, lng float64, at time.Time) (Location, error) {
	l := Location{Lat: lat, Lng: lng, CapturedAt: at}
	if err := l.Validate(); err != nil {
		return Location{}, err
	}
	return l, nil
}

func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) {
		return fmt.Errorf("%w: coordinates must be numbers", ErrValidation)
	}
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range", ErrValidation, l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range", ErrValidation, l.Lng)
	}
	return nil
}

// SamePoint compares coordinates only; capture time is ignored.
func (l Location) SamePoint(o Location) bool {
	return l.Lat == o.Lat && l.Lng == o.Lng
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lng)
}

type VehicleType string

const (
	VehicleHatchback VehicleType = "hatchback"
	VehicleSedan     VehicleType = "sedan"
	VehicleSUV       VehicleType = "suv"
	VehiclePremium   VehicleType = "premium"
)

var VehicleTypes = []VehicleType{VehicleHatchback, VehicleSedan, VehicleSUV, VehiclePremium}

// ParseVehicleType accepts the canonical names case-insensitively. It never
// falls back to a default; callers decide what to do with the error.
func ParseVehicleType(s string) (VehicleType, error) {
	v := VehicleType(strings.ToLower(strings.TrimSpace(s)))
	if v.Valid() {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown vehicle type %q", ErrValidation, s)
}

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleHatchback, VehicleSedan, VehicleSUV, VehiclePremium:
		return true
	}
	return false
}
