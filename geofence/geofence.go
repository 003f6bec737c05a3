package geofence

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean earth radius used by Distance
const EarthRadiusMeters = 6371000.0

// ErrOutsideRadius is returned by Check when the point lies beyond the allowed radius
var ErrOutsideRadius = errors.New("location is outside the event radius")

// Point is a coordinate in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is a real coordinate
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the great circle distance between a and b in meters
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, h)

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Check measures how far at is from center. The distance is always returned,
// together with ErrOutsideRadius when it exceeds radius.
func Check(center, at Point, radius float64) (float64, error) {
	d := Distance(center, at)
	if d > radius {
		return d, ErrOutsideRadius
	}
	return d, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
