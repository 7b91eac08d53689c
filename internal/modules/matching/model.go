// README: Match query and ranked-result types.
package matching

import (
	"errors"
	"time"

	"unipool/internal/types"
)

var ErrInvalidInput = errors.New("invalid match query")

// Preference selects the ranking weight between added driver detour and the
// rider's own in-car distance.
type Preference string

const (
	PreferenceCost    Preference = "cost"
	PreferenceComfort Preference = "comfort"
)

func (p Preference) Valid() bool {
	return p == PreferenceCost || p == PreferenceComfort
}

// Query is one rider's (or rider group's) search for open trips.
type Query struct {
	Origin         types.Point
	Destination    types.Point
	DesiredArrival time.Time
	// MaxOccupancy is the number of seats the group needs, minimum 1.
	MaxOccupancy int
	Preference   Preference
}

// RankedMatch is one candidate trip with its computed insertion costs.
// Results are ordered best-first; the score itself is not exposed.
type RankedMatch struct {
	TripID              types.ID  `json:"trip_id"`
	DriverID            types.ID  `json:"driver_id"`
	DepartureTime       time.Time `json:"departure_time"`
	DetourSeconds       int       `json:"detour_seconds"`
	RideDistanceMeters  int       `json:"ride_distance_meters"`
	RideDurationSeconds int       `json:"ride_duration_seconds"`
	SeatsLeft           int       `json:"seats_left"`
}
