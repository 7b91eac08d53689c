// README: Seat ledger; allocation and release of seats under contention.
package trip

import (
	"context"
	"errors"
	"time"

	"unipool/internal/observability"
	"unipool/internal/types"
)

type RequestSeatCommand struct {
	TripID  types.ID
	RiderID types.ID
	Pickup  types.Point
	Dropoff *types.Point
}

type AcceptCommand struct {
	RequestID types.ID
	DriverID  types.ID
}

type RejectCommand struct {
	RequestID types.ID
	DriverID  types.ID
}

type CancelRequestCommand struct {
	RequestID types.ID
	ActorID   types.ID
	ActorType string // "rider" or "driver"
}

type ConfirmPickupCommand struct {
	RequestID types.ID
	RiderID   types.ID
}

// RequestSeat files a rider's bid for one seat. Seats are reserved on
// acceptance, not here, so concurrent bids never block each other.
func (s *Service) RequestSeat(ctx context.Context, cmd RequestSeatCommand) (*TripRequest, error) {
	if cmd.TripID == "" || cmd.RiderID == "" || !cmd.Pickup.Valid() {
		return nil, ErrBadRequest
	}
	if cmd.Dropoff != nil && !cmd.Dropoff.Valid() {
		return nil, ErrBadRequest
	}
	t, err := s.store.GetTrip(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusPending && t.Status != StatusActive {
		return nil, ErrInvalidTransition
	}
	if cmd.RiderID == t.DriverID {
		return nil, ErrBadRequest
	}

	r := &TripRequest{
		ID:        types.NewID(),
		TripID:    cmd.TripID,
		RiderID:   cmd.RiderID,
		Pickup:    cmd.Pickup,
		Dropoff:   cmd.Dropoff,
		Status:    RequestPending,
		Fare:      s.estimateFare(ctx, t, cmd),
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.record(ctx, Event{
		TripID:    r.TripID,
		RequestID: &r.ID,
		ToStatus:  string(RequestPending),
		ActorType: "rider",
		ActorID:   &r.RiderID,
	})
	return r, nil
}

// AcceptRequest is the single concurrency-critical operation: the capacity
// re-check and the seat increment happen indivisibly in the store, keyed by
// the trip row. A capacity loss comes back as ErrSeatsFull with the request
// left pending for the driver to re-review.
func (s *Service) AcceptRequest(ctx context.Context, cmd AcceptCommand) (*TripRequest, error) {
	r, err := s.store.AcceptRequest(ctx, cmd.RequestID, cmd.DriverID)
	if err != nil {
		if errors.Is(err, ErrSeatsFull) {
			observability.SeatsFullTotal.Inc()
		}
		return nil, err
	}
	observability.SeatAcceptsTotal.Inc()
	s.record(ctx, Event{
		TripID:     r.TripID,
		RequestID:  &r.ID,
		FromStatus: string(RequestPending),
		ToStatus:   string(RequestAccepted),
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
	})
	return r, nil
}

func (s *Service) RejectRequest(ctx context.Context, cmd RejectCommand) (*TripRequest, error) {
	r, err := s.store.RejectRequest(ctx, cmd.RequestID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, Event{
		TripID:     r.TripID,
		RequestID:  &r.ID,
		FromStatus: string(RequestPending),
		ToStatus:   string(RequestRejected),
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
	})
	s.maybeComplete(ctx, r.TripID)
	return r, nil
}

// CancelRequest terminates a pending or accepted request; an accepted one
// releases its seat in the same atomic unit. A second cancel fails with
// ErrAlreadyCancelled instead of double-releasing.
func (s *Service) CancelRequest(ctx context.Context, cmd CancelRequestCommand) (*TripRequest, error) {
	r, err := s.store.CancelRequest(ctx, cmd.RequestID, cmd.ActorID)
	if err != nil {
		return nil, err
	}
	// AcceptedAt survives cancellation; it tells us whether a seat was held
	from := RequestPending
	if r.AcceptedAt != nil {
		from = RequestAccepted
		observability.SeatReleasesTotal.Inc()
	}
	actorType := cmd.ActorType
	if actorType == "" {
		actorType = "rider"
	}
	s.record(ctx, Event{
		TripID:     r.TripID,
		RequestID:  &r.ID,
		FromStatus: string(from),
		ToStatus:   string(RequestCancelled),
		ActorType:  actorType,
		ActorID:    &cmd.ActorID,
	})
	s.maybeComplete(ctx, r.TripID)
	return r, nil
}

// maybeComplete closes an in-progress trip whose last open request was just
// resolved by a reject or cancel after every drop-off was already done. The
// usual completion path is the final drop-off; this covers the driver who
// resolves stragglers last. The conditional flip keeps settlement single-shot
// no matter which path wins.
func (s *Service) maybeComplete(ctx context.Context, tripID types.ID) {
	t, err := s.store.GetTrip(ctx, tripID)
	if err != nil || t.Status != StatusInProgress {
		return
	}
	reqs, err := s.store.ListRequests(ctx, tripID)
	if err != nil {
		return
	}
	for _, r := range reqs {
		if r.Status.Active() {
			return
		}
	}
	if _, err := s.store.UpdateTripStatus(ctx, tripID, t.DriverID, StatusInProgress, StatusCompleted); err != nil {
		return
	}
	s.finishTrip(ctx, tripID, t.DriverID)
}

// ConfirmPickup records the rider-side half of the two-sided pickup
// confirmation. Idempotent while the request is accepted.
func (s *Service) ConfirmPickup(ctx context.Context, cmd ConfirmPickupCommand) (*TripRequest, error) {
	return s.store.ConfirmRiderPickup(ctx, cmd.RequestID, cmd.RiderID)
}

// estimateFare prices the rider's direct pickup->dropoff leg. The estimate is
// advisory: a provider hiccup logs a warning and leaves the fare zero rather
// than blocking the seat request.
func (s *Service) estimateFare(ctx context.Context, t *Trip, cmd RequestSeatCommand) types.Money {
	if s.pricing == nil || s.routes == nil {
		return types.Money{}
	}
	dropoff := t.Destination
	if cmd.Dropoff != nil {
		dropoff = *cmd.Dropoff
	}
	leg, err := s.routes.Leg(ctx, cmd.Pickup, dropoff, t.DepartureTime)
	if err != nil {
		s.log.WithError(err).WithField("trip_id", t.ID).Warn("fare leg estimate failed")
		return types.Money{}
	}
	m, err := s.pricing.Estimate(ctx, leg.Meters)
	if err != nil {
		s.log.WithError(err).WithField("trip_id", t.ID).Warn("fare estimate failed")
		return types.Money{}
	}
	return m
}
