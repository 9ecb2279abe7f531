// Package geo provides geographic primitives shared by routing and scoring.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000

// Point is a WGS84 position in decimal degrees.
// Longitude comes first to match GeoJSON and the routing provider wire format.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Distance returns the great-circle distance in meters between a and b
// using the haversine formula. Inputs are not validated.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Validate checks that p lies within the valid latitude/longitude ranges.
func Validate(p Point) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", p.Lon)
	}
	return nil
}

// FromPairs converts [lon, lat] pairs into points.
// Pairs with fewer than two elements are rejected.
func FromPairs(pairs [][]float64) ([]Point, error) {
	points := make([]Point, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) < 2 {
			return nil, fmt.Errorf("coordinate %d: expected [lon, lat], got %d values", i, len(pair))
		}
		points = append(points, Point{Lon: pair[0], Lat: pair[1]})
	}
	return points, nil
}
