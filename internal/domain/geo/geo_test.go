package geo

import (
	"math"
	"testing"
)

func TestDistanceKmIdenticalPointsIsZero(t *testing.T) {
	points := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{name: "moscow", lat: 55.7558, lon: 37.6173},
		{name: "equator", lat: 0, lon: 0},
		{name: "date line", lat: 12.5, lon: 180},
		{name: "south pole", lat: -90, lon: 44.1},
	}

	for _, tt := range points {
		t.Run(tt.name, func(t *testing.T) {
			d := DistanceKm(tt.lat, tt.lon, tt.lat, tt.lon)
			if math.Abs(d) > 1e-9 {
				t.Fatalf("distance to itself should be 0, got %g", d)
			}
		})
	}
}

func TestDistanceKmIsSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{55.7558, 37.6173, 55.7500, 37.6200},
		{53.9006, 27.5590, 52.0976, 23.7341},
		{-33.8688, 151.2093, 51.5074, -0.1278},
	}

	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("distance not symmetric: %g vs %g", ab, ba)
		}
	}
}

func TestDistanceKmKnownDistance(t *testing.T) {
	// Minsk to Brest is roughly 327 km.
	d := DistanceKm(53.9006, 27.5590, 52.0976, 23.7341)
	if d < 310 || d > 345 {
		t.Fatalf("unexpected Minsk-Brest distance: %g", d)
	}
}

func TestDistanceKmAntipodalIsFinite(t *testing.T) {
	d := DistanceKm(0, 0, 0, 180)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		t.Fatalf("antipodal distance not finite: %g", d)
	}
	// Half the Earth circumference, ~20015 km.
	if d < 19900 || d > 20100 {
		t.Fatalf("unexpected antipodal distance: %g", d)
	}
}

func TestSearchZoneCloseUsers(t *testing.T) {
	centerLat, centerLon, radius := SearchZone(55.7558, 37.6173, 55.7500, 37.6200)

	if math.Abs(centerLat-55.7529) > 1e-4 {
		t.Fatalf("unexpected center lat: %g", centerLat)
	}
	if math.Abs(centerLon-37.61865) > 1e-4 {
		t.Fatalf("unexpected center lon: %g", centerLon)
	}
	// Pairwise distance is around 0.7 km, so the radius is half of that
	// plus the 1 km margin.
	if radius < 1250 || radius > 1450 {
		t.Fatalf("unexpected radius: %d", radius)
	}
}

func TestSearchZoneRadiusIsCapped(t *testing.T) {
	pairs := [][4]float64{
		{55.7558, 37.6173, 59.9311, 30.3609}, // Moscow - Saint Petersburg
		{53.9006, 27.5590, 52.0976, 23.7341}, // Minsk - Brest
		{0, 0, 0, 180},                       // antipodal
	}

	for _, p := range pairs {
		_, _, radius := SearchZone(p[0], p[1], p[2], p[3])
		if radius > 5000 {
			t.Fatalf("radius exceeds cap: %d", radius)
		}
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{name: "valid", lat: 55.7558, lon: 37.6173},
		{name: "edge", lat: 90, lon: -180},
		{name: "lat out of range", lat: 91, lon: 0, wantErr: true},
		{name: "lon out of range", lat: 0, lon: 181, wantErr: true},
		{name: "nan", lat: math.NaN(), lon: 0, wantErr: true},
		{name: "inf", lat: 0, lon: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lon)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for (%g, %g)", tt.lat, tt.lon)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
