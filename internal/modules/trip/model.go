// README: Trip and TripRequest aggregates, status definitions and transition tables.
package trip

import (
	"time"

	"unipool/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
	RequestOnTrip    RequestStatus = "on_trip"
	RequestCompleted RequestStatus = "completed"
)

// AllowedTransitions encodes the trip lifecycle. Transitions are monotonic;
// the only sideways exit is cancellation from pending or active.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusActive, StatusCancelled},
	StatusActive:     {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedRequestTransitions encodes the seat request lifecycle.
var AllowedRequestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestAccepted, RequestRejected, RequestCancelled},
	RequestAccepted: {RequestOnTrip, RequestCancelled},
	RequestOnTrip:   {RequestCompleted},
}

func CanTransitionRequest(from, to RequestStatus) bool {
	for _, s := range AllowedRequestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the request can no longer change state.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestCancelled || s == RequestCompleted
}

// Active reports whether the request holds or may still claim a seat.
func (s RequestStatus) Active() bool {
	return !s.Terminal()
}

// Trip is a driver-owned offer to carry passengers along a route at a
// departure time. BookedSeats is maintained exclusively by the store's
// serialized mutations so that 0 <= BookedSeats <= MaxSeats holds at all
// times.
type Trip struct {
	ID                 types.ID
	DriverID           types.ID
	OriginAddress      string
	DestinationAddress string
	Origin             types.Point
	Destination        types.Point
	DepartureTime      time.Time
	MaxSeats           int
	BookedSeats        int
	Status             Status
	CreatedAt          time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
}

func (t *Trip) SeatsLeft() int {
	return t.MaxSeats - t.BookedSeats
}

// TripRequest is a rider's bid for one seat on a specific trip. AcceptedAt is
// the commit timestamp of the accepted transition and defines the dispatch
// order; it is recorded by the store while the trip row is locked, never
// inferred from CreatedAt.
type TripRequest struct {
	ID                     types.ID
	TripID                 types.ID
	RiderID                types.ID
	Pickup                 types.Point
	Dropoff                *types.Point
	Status                 RequestStatus
	Fare                   types.Money
	RiderPickupConfirmedAt *time.Time
	AcceptedAt             *time.Time
	PickedUpAt             *time.Time
	CompletedAt            *time.Time
	CancelledAt            *time.Time
	CreatedAt              time.Time
}

// DropoffOr returns the request's drop-off point, falling back to the trip's
// destination when the rider did not set one.
func (r *TripRequest) DropoffOr(fallback types.Point) types.Point {
	if r.Dropoff != nil {
		return *r.Dropoff
	}
	return fallback
}

type StopType string

const (
	StopPickup  StopType = "pickup"
	StopDropoff StopType = "dropoff"
)

// Stop is a computed unit of driver work. It is derived from the live request
// set on every query and never persisted.
type Stop struct {
	Type      StopType
	RequestID types.ID
	RiderID   types.ID
	Location  types.Point
}

// Event is one audit record of a trip or request transition.
type Event struct {
	ID         int64
	TripID     types.ID
	RequestID  *types.ID
	FromStatus string
	ToStatus   string
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}
