package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	earthRadiusKM = 6371.0

	// Search zone parameters for meeting point lookups. The margin keeps a
	// usable zone when both users stand next to each other; the cap bounds
	// the cost and result volume of the external query.
	searchMarginKM       = 1.0
	maxSearchRadiusM     = 5000
	metersPerKilometer   = 1000
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// DistanceKm computes the great-circle distance between two points in
// kilometers using the haversine formula on a sphere of radius 6371 km.
func DistanceKm(latA, lonA, latB, lonB float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }

	dLat := toRad(latB - latA)
	dLon := toRad(lonB - lonA)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(latA))*math.Cos(toRad(latB))*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Guard against floating point drift pushing a past 1 for antipodal
	// points, which would make Sqrt(1-a) NaN.
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// SearchZone returns the circular zone to query for meeting points between
// two users: the arithmetic midpoint of the coordinates (an accepted
// approximation for short distances) and a radius of half the pairwise
// distance plus a 1 km margin, in meters, capped at 5000 m.
func SearchZone(latA, lonA, latB, lonB float64) (centerLat, centerLon float64, radiusMeters int) {
	centerLat = (latA + latB) / 2
	centerLon = (lonA + lonB) / 2

	distanceKM := DistanceKm(latA, lonA, latB, lonB)
	radiusMeters = int((distanceKM/2 + searchMarginKM) * metersPerKilometer)
	if radiusMeters > maxSearchRadiusM {
		radiusMeters = maxSearchRadiusM
	}

	return centerLat, centerLon, radiusMeters
}

func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("non-finite value: %w", ErrInvalidCoordinates)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("out of range: %w", ErrInvalidCoordinates)
	}
	return nil
}
