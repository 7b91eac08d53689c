// README: Trip lifecycle; creation and the guarded status transitions.
package trip

import (
	"context"
	"time"

	"unipool/internal/types"
)

type CreateTripCommand struct {
	DriverID           types.ID
	OriginAddress      string
	DestinationAddress string
	Origin             types.Point
	Destination        types.Point
	DepartureTime      time.Time
	MaxSeats           int
}

type StartTripCommand struct {
	TripID   types.ID
	DriverID types.ID
}

type DepartTripCommand struct {
	TripID   types.ID
	DriverID types.ID
}

type CancelTripCommand struct {
	TripID   types.ID
	DriverID types.ID
	Reason   string
}

// CreateTrip posts a driver's offer. MaxSeats is immutable afterwards.
func (s *Service) CreateTrip(ctx context.Context, cmd CreateTripCommand) (*Trip, error) {
	if cmd.DriverID == "" || cmd.MaxSeats < 1 || cmd.DepartureTime.IsZero() {
		return nil, ErrBadRequest
	}
	if !cmd.Origin.Valid() || !cmd.Destination.Valid() {
		return nil, ErrBadRequest
	}
	t := &Trip{
		ID:                 types.NewID(),
		DriverID:           cmd.DriverID,
		OriginAddress:      cmd.OriginAddress,
		DestinationAddress: cmd.DestinationAddress,
		Origin:             cmd.Origin,
		Destination:        cmd.Destination,
		DepartureTime:      cmd.DepartureTime,
		MaxSeats:           cmd.MaxSeats,
		Status:             StatusPending,
		CreatedAt:          time.Now(),
	}
	if err := s.store.CreateTrip(ctx, t); err != nil {
		return nil, err
	}
	if s.indexer != nil {
		if err := s.indexer.Add(ctx, t); err != nil {
			s.log.WithError(err).WithField("trip_id", t.ID).Warn("geo index add failed")
		}
	}
	s.record(ctx, Event{
		TripID:    t.ID,
		ToStatus:  string(StatusPending),
		ActorType: "driver",
		ActorID:   &t.DriverID,
	})
	return t, nil
}

// StartTrip flips pending -> active, allowed only inside the start window
// ahead of departure.
func (s *Service) StartTrip(ctx context.Context, cmd StartTripCommand) (*Trip, error) {
	t, err := s.store.GetTrip(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != cmd.DriverID {
		return nil, ErrForbidden
	}
	if time.Now().Before(t.DepartureTime.Add(-s.startWindow)) {
		return nil, ErrTooEarly
	}
	updated, err := s.store.UpdateTripStatus(ctx, cmd.TripID, cmd.DriverID, StatusPending, StatusActive)
	if err != nil {
		return nil, err
	}
	s.record(ctx, Event{
		TripID:     updated.ID,
		FromStatus: string(StatusPending),
		ToStatus:   string(StatusActive),
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
	})
	return updated, nil
}

// DepartTrip is the driver's explicit active -> in_progress action; the
// first confirmed pickup triggers the same transition implicitly.
func (s *Service) DepartTrip(ctx context.Context, cmd DepartTripCommand) (*Trip, error) {
	updated, err := s.store.UpdateTripStatus(ctx, cmd.TripID, cmd.DriverID, StatusActive, StatusInProgress)
	if err != nil {
		return nil, err
	}
	s.record(ctx, Event{
		TripID:     updated.ID,
		FromStatus: string(StatusActive),
		ToStatus:   string(StatusInProgress),
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
	})
	return updated, nil
}

// CancelTrip soft-deletes a pending or active trip, cancelling every
// non-terminal request and releasing all seats in the same atomic unit.
// An in-progress trip cannot be cancelled; it must be driven to completion.
func (s *Service) CancelTrip(ctx context.Context, cmd CancelTripCommand) (*Trip, error) {
	from, err := s.store.GetTrip(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	t, err := s.store.CancelTrip(ctx, cmd.TripID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	s.dropFromIndex(ctx, t.ID)
	s.record(ctx, Event{
		TripID:     t.ID,
		FromStatus: string(from.Status),
		ToStatus:   string(StatusCancelled),
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
	})
	return t, nil
}

func (s *Service) dropFromIndex(ctx context.Context, tripID types.ID) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Remove(ctx, tripID); err != nil {
		s.log.WithError(err).WithField("trip_id", tripID).Warn("geo index remove failed")
	}
}
