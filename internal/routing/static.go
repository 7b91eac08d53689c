// README: Great-circle estimator used in dummy-match mode and tests.
package routing

import (
	"context"
	"math"
	"time"

	"unipool/internal/types"
)

const earthRadiusMeters = 6371000.0

// StaticProvider estimates legs as great-circle distance at a fixed speed.
// It needs no network and is fully deterministic, which makes it the
// dummy-match mode backend and the test double of choice.
type StaticProvider struct {
	SpeedMps float64
}

func NewStaticProvider(speedMps float64) *StaticProvider {
	if speedMps <= 0 {
		speedMps = 8.0 // ~28.8 km/h city default
	}
	return &StaticProvider{SpeedMps: speedMps}
}

func (p *StaticProvider) Leg(_ context.Context, from, to types.Point, _ time.Time) (Leg, error) {
	d := haversineMeters(from, to)
	return Leg{Seconds: d / p.SpeedMps, Meters: d}, nil
}

// haversineMeters returns the great-circle distance between two points
// specified in decimal degrees.
func haversineMeters(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
