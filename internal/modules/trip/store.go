// README: Store contract; every mutating method is one serialized unit per trip.
package trip

import (
	"context"
	"time"

	"unipool/internal/types"
)

// Store persists trips and seat requests. Each mutating method executes as a
// single atomic unit serialized on the trip it touches (a transaction holding
// the trip row lock, or an equivalent guard); the seat-count invariant
// bookedSeats == count(requests in {accepted, on_trip}) is maintained by
// construction inside these methods, never by reconciliation.
type Store interface {
	CreateTrip(ctx context.Context, t *Trip) error
	GetTrip(ctx context.Context, id types.ID) (*Trip, error)
	// ListOpenTrips returns trips in {pending, active} departing inside
	// [from, to], ordered by ID for deterministic ranking downstream.
	ListOpenTrips(ctx context.Context, from, to time.Time) ([]*Trip, error)

	GetRequest(ctx context.Context, id types.ID) (*TripRequest, error)
	// ListRequests returns all requests of a trip in creation order.
	ListRequests(ctx context.Context, tripID types.ID) ([]*TripRequest, error)

	// CreateRequest inserts a pending request; ErrDuplicateRequest when the
	// rider already has a non-terminal request on the trip.
	CreateRequest(ctx context.Context, r *TripRequest) error
	// AcceptRequest re-checks capacity and the pending status with the trip
	// row locked, then increments booked seats. ErrSeatsFull leaves the
	// request pending.
	AcceptRequest(ctx context.Context, requestID, driverID types.ID) (*TripRequest, error)
	RejectRequest(ctx context.Context, requestID, driverID types.ID) (*TripRequest, error)
	// CancelRequest releases the seat in the same unit when the request was
	// accepted. ErrAlreadyCancelled on repeat calls.
	CancelRequest(ctx context.Context, requestID, actorID types.ID) (*TripRequest, error)
	// ConfirmRiderPickup records the rider-side pickup acknowledgment;
	// idempotent while the request is accepted.
	ConfirmRiderPickup(ctx context.Context, requestID, riderID types.ID) (*TripRequest, error)

	// AdvancePickup moves accepted -> on_trip after the two-sided pickup
	// check, flipping the trip active -> in_progress on the first pickup.
	AdvancePickup(ctx context.Context, tripID, requestID, driverID types.ID) (*TripRequest, error)
	// AdvanceDropoff moves on_trip -> completed; tripCompleted is true for
	// exactly the call that left no non-terminal requests and flipped the
	// trip to completed.
	AdvanceDropoff(ctx context.Context, tripID, requestID, driverID types.ID) (req *TripRequest, tripCompleted bool, err error)

	// UpdateTripStatus performs a guarded from -> to transition.
	// ErrConflict when the trip moved away from `from` concurrently.
	UpdateTripStatus(ctx context.Context, tripID, driverID types.ID, from, to Status) (*Trip, error)
	// CancelTrip cancels a pending or active trip together with all its
	// non-terminal requests and zeroes booked seats.
	CancelTrip(ctx context.Context, tripID, driverID types.ID) (*Trip, error)

	AppendEvent(ctx context.Context, e *Event) error
}
