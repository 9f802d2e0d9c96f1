package geo

import (
	"math"
	"testing"
)

func TestDistanceKm_KnownPairs(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{
			name: "same point",
			lat1: 25.2048, lng1: 55.2708,
			lat2: 25.2048, lng2: 55.2708,
			wantKm: 0, tolerance: 0.001,
		},
		{
			name: "dubai downtown to marina",
			lat1: 25.1972, lng1: 55.2744,
			lat2: 25.0805, lng2: 55.1403,
			wantKm: 18.8, tolerance: 0.5,
		},
		{
			name: "london to paris",
			lat1: 51.5074, lng1: -0.1278,
			lat2: 48.8566, lng2: 2.3522,
			wantKm: 343.5, tolerance: 2.0,
		},
		{
			name: "across the antimeridian",
			lat1: 0, lng1: 179.5,
			lat2: 0, lng2: -179.5,
			wantKm: 111.2, tolerance: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %.3f, want %.3f ± %.3f", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := DistanceKm(25.2, 55.3, 24.9, 55.0)
	b := DistanceKm(24.9, 55.0, 25.2, 55.3)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", a, b)
	}
}

func TestValidCoordinates(t *testing.T) {
	if !ValidLatitude(90) || !ValidLatitude(-90) || ValidLatitude(90.01) {
		t.Error("latitude bounds wrong")
	}
	if !ValidLongitude(180) || !ValidLongitude(-180) || ValidLongitude(-180.5) {
		t.Error("longitude bounds wrong")
	}
}
