// Package polyline encodes and decodes route geometry in Google's polyline format.
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"fmt"
	"math"

	"github.com/accessroute/accessroute/pkg/geo"
)

// ErrMalformed is returned when an encoded polyline cannot be decoded.
var ErrMalformed = errors.New("malformed polyline")

// ErrTooManyPoints is returned by DensifyLimit when sampling would exceed the point cap.
var ErrTooManyPoints = errors.New("densified route exceeds point limit")

// precision is the coordinate scale factor (5 decimal places, as used by ORS).
const precision = 1e5

// Decode decodes a polyline-encoded string into route points.
// An empty string decodes to a nil slice.
func Decode(encoded string) ([]geo.Point, error) {
	if encoded == "" {
		return nil, nil
	}

	var points []geo.Point
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		lonDelta, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += latDelta
		lon += lonDelta

		points = append(points, geo.Point{
			Lon: float64(lon) / precision,
			Lat: float64(lat) / precision,
		})
	}

	return points, nil
}

// decodeValue decodes one varint-style value starting at index.
// Returns the decoded delta and the index of the next value.
func decodeValue(encoded string, index int) (int, int, error) {
	shift := 0
	result := 0

	for {
		if index >= len(encoded) {
			return 0, 0, ErrMalformed
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, 0, ErrMalformed
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes route points into a polyline string.
func Encode(points []geo.Point) string {
	if len(points) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(points)*4)
	prevLat := 0
	prevLon := 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * precision))
		lon := int(math.Round(p.Lon * precision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Length returns the total length of the route in meters.
func Length(points []geo.Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += geo.Distance(points[i-1], points[i])
	}
	return total
}

// Densify returns a copy of points with interpolated points inserted so that no two
// consecutive points are more than maxSpacing meters apart.
// Every original vertex is kept, in order. A non-positive spacing returns a plain copy.
// The output is unbounded; use DensifyLimit for untrusted input.
func Densify(points []geo.Point, maxSpacing float64) []geo.Point {
	out, _ := DensifyLimit(points, maxSpacing, 0)
	return out
}

// DensifyLimit is Densify with a cap on the number of returned points.
// It returns ErrTooManyPoints, before allocating, when the result would exceed
// maxPoints. A non-positive maxPoints disables the cap.
func DensifyLimit(points []geo.Point, maxSpacing float64, maxPoints int) ([]geo.Point, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if maxSpacing <= 0 {
		return append([]geo.Point(nil), points...), nil
	}

	// legs[i] is the number of segments between points[i-1] and points[i]
	legs := make([]int, len(points))
	total := 1.0
	for i := 1; i < len(points); i++ {
		n := max(math.Ceil(geo.Distance(points[i-1], points[i])/maxSpacing), 1)
		total += n
		if maxPoints > 0 && total > float64(maxPoints) {
			return nil, fmt.Errorf("%w: more than %d points at %.1fm spacing", ErrTooManyPoints, maxPoints, maxSpacing)
		}
		legs[i] = int(n)
	}

	out := make([]geo.Point, 0, int(total))
	out = append(out, points[0])

	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		// take the short way across the antimeridian
		dLon := b.Lon - a.Lon
		switch {
		case dLon > 180:
			dLon -= 360
		case dLon < -180:
			dLon += 360
		}
		for s := 1; s < legs[i]; s++ {
			f := float64(s) / float64(legs[i])
			out = append(out, geo.Point{
				Lon: wrapLon(a.Lon + f*dLon),
				Lat: a.Lat + f*(b.Lat-a.Lat),
			})
		}
		out = append(out, b)
	}

	return out, nil
}

func wrapLon(lon float64) float64 {
	switch {
	case lon > 180:
		return lon - 360
	case lon < -180:
		return lon + 360
	}
	return lon
}
