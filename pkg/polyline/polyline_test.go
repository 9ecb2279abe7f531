package polyline

import (
	"errors"
	"math"
	"testing"

	"github.com/accessroute/accessroute/pkg/geo"
)

func TestDecode_ValidPolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []geo.Point
	}{
		{
			name:    "single point",
			encoded: "_p~iF~ps|U",
			expected: []geo.Point{
				{Lat: 38.5, Lon: -120.2},
			},
		},
		{
			name:    "three points - Google example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []geo.Point{
				{Lat: 38.5, Lon: -120.2},
				{Lat: 40.7, Lon: -120.95},
				{Lat: 43.252, Lon: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d points, got %d", len(tt.expected), len(result))
			}

			for i, p := range result {
				if !pointsEqual(p, tt.expected[i], 0.001) {
					t.Errorf("point %d: expected %+v, got %+v", i, tt.expected[i], p)
				}
			}
		})
	}
}

func TestDecode_EmptyString(t *testing.T) {
	result, err := Decode("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "latitude only", encoded: "_p~iF"},
		{name: "truncated chunk", encoded: "_p~iF~ps|"},
		{name: "invalid character", encoded: "_p~iF~ps|U\x01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.encoded)
			if err != ErrMalformed {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		points []geo.Point
	}{
		{
			name:   "single point",
			points: []geo.Point{{Lat: 38.5, Lon: -120.2}},
		},
		{
			name: "city walk",
			points: []geo.Point{
				{Lat: 52.37403, Lon: 4.88969},
				{Lat: 52.37234, Lon: 4.89231},
				{Lat: 52.37001, Lon: 4.89534},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.points)
			if encoded == "" {
				t.Fatal("expected non-empty encoded string")
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(decoded) != len(tt.points) {
				t.Fatalf("round-trip: expected %d points, got %d", len(tt.points), len(decoded))
			}
			for i, p := range decoded {
				if !pointsEqual(p, tt.points[i], 0.00001) {
					t.Errorf("round-trip point %d: expected %+v, got %+v", i, tt.points[i], p)
				}
			}
		})
	}
}

func TestEncode_Empty(t *testing.T) {
	if got := Encode(nil); got != "" {
		t.Errorf("expected empty string for nil points, got %q", got)
	}
}

func TestLength(t *testing.T) {
	if got := Length(nil); got != 0 {
		t.Errorf("expected 0 for empty route, got %f", got)
	}

	got := Length([]geo.Point{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}})
	if math.Abs(got-111195) > 1 {
		t.Errorf("expected ~111195m, got %.0fm", got)
	}
}

func TestDensify(t *testing.T) {
	// ~111m north
	route := []geo.Point{
		{Lat: 52.000, Lon: 4.0},
		{Lat: 52.001, Lon: 4.0},
	}

	t.Run("inserts points within spacing", func(t *testing.T) {
		dense := Densify(route, 10)
		// 111.2m / 10m -> 12 segments -> 13 points
		if len(dense) != 13 {
			t.Fatalf("expected 13 points, got %d", len(dense))
		}
		for i := 1; i < len(dense); i++ {
			if d := geo.Distance(dense[i-1], dense[i]); d > 10.0001 {
				t.Errorf("gap %d is %.2fm, exceeds spacing", i, d)
			}
		}
		if dense[0] != route[0] || dense[len(dense)-1] != route[1] {
			t.Error("original endpoints must be preserved")
		}
	})

	t.Run("keeps short segments untouched", func(t *testing.T) {
		dense := Densify(route, 500)
		if len(dense) != 2 {
			t.Errorf("expected 2 points, got %d", len(dense))
		}
	})

	t.Run("zero spacing copies", func(t *testing.T) {
		dense := Densify(route, 0)
		if len(dense) != len(route) {
			t.Fatalf("expected copy of route")
		}
		dense[0].Lat = 0
		if route[0].Lat == 0 {
			t.Error("densify must not alias its input")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if Densify(nil, 10) != nil {
			t.Error("expected nil for empty route")
		}
	})
}

func TestDensify_Antimeridian(t *testing.T) {
	tests := []struct {
		name  string
		route []geo.Point
	}{
		{"eastbound", []geo.Point{{Lon: 179.9999, Lat: 0}, {Lon: -179.9999, Lat: 0}}},
		{"westbound", []geo.Point{{Lon: -179.9999, Lat: 10}, {Lon: 179.9999, Lat: 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			length := geo.Distance(tt.route[0], tt.route[1])
			dense := Densify(tt.route, 10)

			// ~22m across the meridian -> 3 segments
			if len(dense) != 4 {
				t.Fatalf("expected 4 points, got %d", len(dense))
			}
			for i, p := range dense {
				if p.Lon < -180 || p.Lon > 180 {
					t.Errorf("point %d longitude %.6f out of range", i, p.Lon)
				}
				if d := geo.Distance(tt.route[0], p); d > length+0.001 {
					t.Errorf("point %d is %.0fm from the start, segment is only %.1fm", i, d, length)
				}
			}
			for i := 1; i < len(dense); i++ {
				if d := geo.Distance(dense[i-1], dense[i]); d > 10.0001 {
					t.Errorf("gap %d is %.2fm, exceeds spacing", i, d)
				}
			}
		})
	}
}

func TestDensifyLimit(t *testing.T) {
	route := []geo.Point{{Lat: 52.000, Lon: 4.0}, {Lat: 52.001, Lon: 4.0}}

	dense, err := DensifyLimit(route, 10, 13)
	if err != nil {
		t.Fatalf("unexpected error at the limit: %v", err)
	}
	if len(dense) != 13 {
		t.Errorf("expected 13 points, got %d", len(dense))
	}

	if _, err := DensifyLimit(route, 10, 12); !errors.Is(err, ErrTooManyPoints) {
		t.Errorf("expected ErrTooManyPoints, got %v", err)
	}

	// half the equator at 10m spacing would be ~2M points
	long := []geo.Point{{Lon: 0, Lat: 0}, {Lon: 180, Lat: 0}}
	if _, err := DensifyLimit(long, 10, 100_000); !errors.Is(err, ErrTooManyPoints) {
		t.Errorf("expected ErrTooManyPoints for a long segment, got %v", err)
	}

	// duplicate vertices count as one segment each
	dup, err := DensifyLimit([]geo.Point{route[0], route[0], route[0]}, 10, 3)
	if err != nil || len(dup) != 3 {
		t.Errorf("expected duplicates kept within limit, got %d points, err %v", len(dup), err)
	}
}

func pointsEqual(a, b geo.Point, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) <= tolerance && math.Abs(a.Lon-b.Lon) <= tolerance
}

func BenchmarkDecode(b *testing.B) {
	encoded := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(encoded)
	}
}
