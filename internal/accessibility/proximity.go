package accessibility

import (
	"math"

	"github.com/accessroute/accessroute/pkg/geo"
)

// Proximity is the result of matching a route against a circular zone.
type Proximity struct {
	Hit      bool
	Distance float64 // meters
}

// PassesNear reports whether any vertex of route lies within radius meters of center.
//
// Only vertices are checked, so a zone lying strictly between two distant vertices
// is missed. On a hit the scan stops at the first qualifying vertex and Distance is
// that vertex's distance, which is not necessarily the closest one. On a miss
// Distance is the minimum over all vertices.
func PassesNear(route []geo.Point, center geo.Point, radius float64) (Proximity, error) {
	if len(route) == 0 {
		return Proximity{}, ErrEmptyRoute
	}

	closest := math.Inf(1)
	for _, p := range route {
		d := geo.Distance(p, center)
		if d <= radius {
			return Proximity{Hit: true, Distance: d}, nil
		}
		if d < closest {
			closest = d
		}
	}

	return Proximity{Distance: closest}, nil
}
