// Package geo holds the spherical distance helpers used for incident
// proximity. Distances are great-circle on a sphere of radius EarthRadiusKm,
// good enough for "how close is this incident to a route", not for navigation.
package geo

import "math"

// EarthRadiusKm is the mean radius of Earth in kilometers.
const EarthRadiusKm = 6371.0

// Point is a WGS-84 coordinate in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies inside the coordinate ranges. The
// origin (0,0) is treated as missing data since no operation runs there.
func (p Point) Valid() bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(a, b Point) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Nearest returns the smallest distance from p to any of targets. ok is false
// when targets is empty.
func Nearest(p Point, targets []Point) (distanceKm float64, ok bool) {
	distanceKm = math.Inf(1)
	for _, t := range targets {
		if d := HaversineKm(p, t); d < distanceKm {
			distanceKm = d
			ok = true
		}
	}
	return distanceKm, ok
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
