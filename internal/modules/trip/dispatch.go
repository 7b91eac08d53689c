// README: Dispatch sequencer; next-stop projection and driver stop advances.
package trip

import (
	"context"
	"sort"

	"unipool/internal/observability"
	"unipool/internal/types"
)

type AdvanceCommand struct {
	TripID    types.ID
	RequestID types.ID
	Action    StopType
	DriverID  types.ID
}

// CurrentStop projects the single next actionable stop from persisted state.
// Policy: every accepted rider is picked up (in acceptance commit order)
// before any drop-off is offered; drop-offs then follow the same order.
// Interleaving pickups with drop-offs would shorten some routes, but the
// all-aboard-first rule is the documented product choice for now.
func (s *Service) CurrentStop(ctx context.Context, tripID types.ID) (*Stop, error) {
	t, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequests(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if next := earliestAccepted(reqs, RequestAccepted); next != nil {
		return &Stop{
			Type:      StopPickup,
			RequestID: next.ID,
			RiderID:   next.RiderID,
			Location:  next.Pickup,
		}, nil
	}
	if next := earliestAccepted(reqs, RequestOnTrip); next != nil {
		return &Stop{
			Type:      StopDropoff,
			RequestID: next.ID,
			RiderID:   next.RiderID,
			Location:  next.DropoffOr(t.Destination),
		}, nil
	}
	return nil, nil
}

// Advance applies the driver-side pickup or drop-off action. Pickups demand
// the rider's prior confirmation; the drop-off that leaves no non-terminal
// requests completes the trip and settles it exactly once.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) error {
	switch cmd.Action {
	case StopPickup:
		return s.advancePickup(ctx, cmd)
	case StopDropoff:
		return s.advanceDropoff(ctx, cmd)
	default:
		return ErrBadRequest
	}
}

func (s *Service) advancePickup(ctx context.Context, cmd AdvanceCommand) error {
	r, err := s.store.AdvancePickup(ctx, cmd.TripID, cmd.RequestID, cmd.DriverID)
	if err != nil {
		return err
	}
	s.record(ctx, Event{
		TripID:     r.TripID,
		RequestID:  &r.ID,
		FromStatus: string(RequestAccepted),
		ToStatus:   string(RequestOnTrip),
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
	})
	return nil
}

func (s *Service) advanceDropoff(ctx context.Context, cmd AdvanceCommand) error {
	r, tripCompleted, err := s.store.AdvanceDropoff(ctx, cmd.TripID, cmd.RequestID, cmd.DriverID)
	if err != nil {
		return err
	}
	s.record(ctx, Event{
		TripID:     r.TripID,
		RequestID:  &r.ID,
		FromStatus: string(RequestOnTrip),
		ToStatus:   string(RequestCompleted),
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
	})
	if tripCompleted {
		s.finishTrip(ctx, cmd.TripID, cmd.DriverID)
	}
	return nil
}

// earliestAccepted returns the request in the wanted status with the oldest
// accepted timestamp, ties broken by ID so the projection is deterministic.
func earliestAccepted(reqs []*TripRequest, want RequestStatus) *TripRequest {
	var matched []*TripRequest
	for _, r := range reqs {
		if r.Status == want && r.AcceptedAt != nil {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].AcceptedAt.Equal(*matched[j].AcceptedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].AcceptedAt.Before(*matched[j].AcceptedAt)
	})
	return matched[0]
}

// finishTrip runs the post-completion side effects for the advance that won
// the completion flip.
func (s *Service) finishTrip(ctx context.Context, tripID, driverID types.ID) {
	observability.TripsCompletedTotal.Inc()
	s.record(ctx, Event{
		TripID:     tripID,
		FromStatus: string(StatusInProgress),
		ToStatus:   string(StatusCompleted),
		ActorType:  "driver",
		ActorID:    &driverID,
	})
	s.dropFromIndex(ctx, tripID)
	s.settle(ctx, tripID)
}

// settle captures payment for the completed request set. Failures are logged
// and counted for operator alerting; the trip stays completed because the
// ride obligation is done regardless of settlement timing.
func (s *Service) settle(ctx context.Context, tripID types.ID) {
	if s.settler == nil {
		return
	}
	reqs, err := s.store.ListRequests(ctx, tripID)
	if err != nil {
		observability.SettlementFailuresTotal.Inc()
		s.log.WithError(err).WithField("trip_id", tripID).Error("settlement: list requests failed")
		return
	}
	var completed []*TripRequest
	for _, r := range reqs {
		if r.Status == RequestCompleted {
			completed = append(completed, r)
		}
	}
	if err := s.settler.Capture(ctx, tripID, completed); err != nil {
		observability.SettlementFailuresTotal.Inc()
		s.log.WithError(err).WithField("trip_id", tripID).Error("settlement capture failed")
	}
}
