package types

import (
	"errors"
	"testing"
	"time"
)

func TestParseVehicleType(t *testing.T) {
	cases := []struct {
		in      string
		want    VehicleType
		wantErr bool
	}{
		{"sedan", VehicleSedan, false},
		{" SUV ", VehicleSUV, false},
		{"Hatchback", VehicleHatchback, false},
		{"premium", VehiclePremium, false},
		{"", "", true},
		{"limo", "", true},
	}
	for _, tc := range cases {
		got, err := ParseVehicleType(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseVehicleType(%q): expected validation error, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseVehicleType(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestNewLocation_Range(t *testing.T) {
	now := time.Now()
	if _, err := NewLocation(12.97, 77.59, now); err != nil {
		t.Fatalf("valid location rejected: %v", err)
	}
	for _, c := range [][2]float64{{91, 0}, {-91, 0}, {0, 181}, {0, -181}} {
		if _, err := NewLocation(c[0], c[1], now); !errors.Is(err, ErrValidation) {
			t.Errorf("NewLocation(%v, %v): expected validation error, got %v", c[0], c[1], err)
		}
	}
}

func TestLocation_SamePointIgnoresTime(t *testing.T) {
	a := Location{Lat: 1, Lng: 2, CapturedAt: time.Unix(0, 0)}
	b := Location{Lat: 1, Lng: 2, CapturedAt: time.Unix(100, 0)}
	if !a.SamePoint(b) {
		t.Fatal("expected same point")
	}
	if a.SamePoint(Location{Lat: 1, Lng: 2.0001}) {
		t.Fatal("expected different point")
	}
}
