// README: In-memory store for dev mode and tests; a per-trip mutex stands in
// for the trip-row lock, so the atomicity contract matches the Postgres store.
package trip

import (
	"context"
	"sort"
	"sync"
	"time"

	"unipool/internal/types"
)

type MemStore struct {
	mu       sync.RWMutex
	trips    map[types.ID]*memTrip
	reqIndex map[types.ID]types.ID // request -> trip

	evMu   sync.Mutex
	events []Event
	nextID int64
}

type memTrip struct {
	mu         sync.Mutex
	trip       Trip
	requests   map[types.ID]*TripRequest
	order      []types.ID // creation order
	lastAccept time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		trips:    make(map[types.ID]*memTrip),
		reqIndex: make(map[types.ID]types.ID),
	}
}

func (s *MemStore) CreateTrip(_ context.Context, t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[t.ID] = &memTrip{
		trip:     *copyTrip(t),
		requests: make(map[types.ID]*TripRequest),
	}
	return nil
}

func (s *MemStore) GetTrip(_ context.Context, id types.ID) (*Trip, error) {
	mt, err := s.tripState(id)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return copyTrip(&mt.trip), nil
}

func (s *MemStore) ListOpenTrips(_ context.Context, from, to time.Time) ([]*Trip, error) {
	s.mu.RLock()
	states := make([]*memTrip, 0, len(s.trips))
	for _, mt := range s.trips {
		states = append(states, mt)
	}
	s.mu.RUnlock()

	var out []*Trip
	for _, mt := range states {
		mt.mu.Lock()
		t := mt.trip
		mt.mu.Unlock()
		if t.Status != StatusPending && t.Status != StatusActive {
			continue
		}
		if t.DepartureTime.Before(from) || t.DepartureTime.After(to) {
			continue
		}
		out = append(out, copyTrip(&t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) GetRequest(_ context.Context, id types.ID) (*TripRequest, error) {
	mt, err := s.requestTrip(id)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	r, ok := mt.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRequest(r), nil
}

func (s *MemStore) ListRequests(_ context.Context, tripID types.ID) ([]*TripRequest, error) {
	mt, err := s.tripState(tripID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]*TripRequest, 0, len(mt.order))
	for _, id := range mt.order {
		out = append(out, copyRequest(mt.requests[id]))
	}
	return out, nil
}

func (s *MemStore) CreateRequest(_ context.Context, r *TripRequest) error {
	mt, err := s.tripState(r.TripID)
	if err != nil {
		return err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	for _, existing := range mt.requests {
		if existing.RiderID == r.RiderID && existing.Status.Active() {
			return ErrDuplicateRequest
		}
	}
	mt.requests[r.ID] = copyRequest(r)
	mt.order = append(mt.order, r.ID)

	s.mu.Lock()
	s.reqIndex[r.ID] = r.TripID
	s.mu.Unlock()
	return nil
}

func (s *MemStore) AcceptRequest(_ context.Context, requestID, driverID types.ID) (*TripRequest, error) {
	mt, err := s.requestTrip(requestID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	r := mt.requests[requestID]
	if mt.trip.DriverID != driverID {
		return nil, ErrForbidden
	}
	if mt.trip.Status != StatusPending && mt.trip.Status != StatusActive {
		return nil, ErrInvalidTransition
	}
	if r.Status != RequestPending {
		return nil, ErrInvalidTransition
	}
	if mt.trip.BookedSeats >= mt.trip.MaxSeats {
		return nil, ErrSeatsFull
	}
	// strictly increasing per trip, mirroring clock_timestamp() under the
	// row lock: acceptance order is the lock-acquisition order
	now := time.Now()
	if !now.After(mt.lastAccept) {
		now = mt.lastAccept.Add(time.Nanosecond)
	}
	mt.lastAccept = now

	r.Status = RequestAccepted
	r.AcceptedAt = &now
	mt.trip.BookedSeats++
	return copyRequest(r), nil
}

func (s *MemStore) RejectRequest(_ context.Context, requestID, driverID types.ID) (*TripRequest, error) {
	mt, err := s.requestTrip(requestID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	r := mt.requests[requestID]
	if mt.trip.DriverID != driverID {
		return nil, ErrForbidden
	}
	if r.Status != RequestPending {
		return nil, ErrInvalidTransition
	}
	r.Status = RequestRejected
	return copyRequest(r), nil
}

func (s *MemStore) CancelRequest(_ context.Context, requestID, actorID types.ID) (*TripRequest, error) {
	mt, err := s.requestTrip(requestID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	r := mt.requests[requestID]
	if actorID != r.RiderID && actorID != mt.trip.DriverID {
		return nil, ErrForbidden
	}
	switch r.Status {
	case RequestCancelled:
		return nil, ErrAlreadyCancelled
	case RequestPending, RequestAccepted:
	default:
		return nil, ErrInvalidTransition
	}
	if r.Status == RequestAccepted {
		mt.trip.BookedSeats--
	}
	now := time.Now()
	r.Status = RequestCancelled
	r.CancelledAt = &now
	return copyRequest(r), nil
}

func (s *MemStore) ConfirmRiderPickup(_ context.Context, requestID, riderID types.ID) (*TripRequest, error) {
	mt, err := s.requestTrip(requestID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	r := mt.requests[requestID]
	if r.RiderID != riderID {
		return nil, ErrForbidden
	}
	if r.Status != RequestAccepted {
		return nil, ErrInvalidTransition
	}
	if r.RiderPickupConfirmedAt == nil {
		now := time.Now()
		r.RiderPickupConfirmedAt = &now
	}
	return copyRequest(r), nil
}

func (s *MemStore) AdvancePickup(_ context.Context, tripID, requestID, driverID types.ID) (*TripRequest, error) {
	mt, err := s.requestTrip(requestID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	r := mt.requests[requestID]
	if mt.trip.ID != tripID {
		return nil, ErrNotFound
	}
	if mt.trip.DriverID != driverID {
		return nil, ErrForbidden
	}
	if mt.trip.Status != StatusActive && mt.trip.Status != StatusInProgress {
		return nil, ErrInvalidTransition
	}
	if r.Status != RequestAccepted {
		return nil, ErrInvalidTransition
	}
	if r.RiderPickupConfirmedAt == nil {
		return nil, ErrRiderNotConfirmed
	}
	now := time.Now()
	r.Status = RequestOnTrip
	r.PickedUpAt = &now
	if mt.trip.Status == StatusActive {
		mt.trip.Status = StatusInProgress
	}
	return copyRequest(r), nil
}

func (s *MemStore) AdvanceDropoff(_ context.Context, tripID, requestID, driverID types.ID) (*TripRequest, bool, error) {
	mt, err := s.requestTrip(requestID)
	if err != nil {
		return nil, false, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	r := mt.requests[requestID]
	if mt.trip.ID != tripID {
		return nil, false, ErrNotFound
	}
	if mt.trip.DriverID != driverID {
		return nil, false, ErrForbidden
	}
	if mt.trip.Status != StatusInProgress {
		return nil, false, ErrInvalidTransition
	}
	if r.Status != RequestOnTrip {
		return nil, false, ErrInvalidTransition
	}
	now := time.Now()
	r.Status = RequestCompleted
	r.CompletedAt = &now

	remaining := 0
	for _, other := range mt.requests {
		if other.Status.Active() {
			remaining++
		}
	}
	completed := false
	if remaining == 0 && mt.trip.Status == StatusInProgress {
		mt.trip.Status = StatusCompleted
		mt.trip.CompletedAt = &now
		completed = true
	}
	return copyRequest(r), completed, nil
}

func (s *MemStore) UpdateTripStatus(_ context.Context, tripID, driverID types.ID, from, to Status) (*Trip, error) {
	mt, err := s.tripState(tripID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.trip.DriverID != driverID {
		return nil, ErrForbidden
	}
	if mt.trip.Status != from {
		if !CanTransition(mt.trip.Status, to) {
			return nil, ErrInvalidTransition
		}
		return nil, ErrConflict
	}
	if !CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}
	mt.trip.Status = to
	if to == StatusCompleted {
		now := time.Now()
		mt.trip.CompletedAt = &now
	}
	return copyTrip(&mt.trip), nil
}

func (s *MemStore) CancelTrip(_ context.Context, tripID, driverID types.ID) (*Trip, error) {
	mt, err := s.tripState(tripID)
	if err != nil {
		return nil, err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.trip.DriverID != driverID {
		return nil, ErrForbidden
	}
	if mt.trip.Status != StatusPending && mt.trip.Status != StatusActive {
		return nil, ErrInvalidTransition
	}
	now := time.Now()
	for _, r := range mt.requests {
		if r.Status == RequestPending || r.Status == RequestAccepted {
			r.Status = RequestCancelled
			r.CancelledAt = &now
		}
	}
	mt.trip.Status = StatusCancelled
	mt.trip.BookedSeats = 0
	mt.trip.CancelledAt = &now
	return copyTrip(&mt.trip), nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	s.nextID++
	stored := *e
	stored.ID = s.nextID
	s.events = append(s.events, stored)
	return nil
}

// Events returns a snapshot of the audit trail.
func (s *MemStore) Events() []Event {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemStore) tripState(id types.ID) (*memTrip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mt, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return mt, nil
}

func (s *MemStore) requestTrip(requestID types.ID) (*memTrip, error) {
	s.mu.RLock()
	tripID, ok := s.reqIndex[requestID]
	mt := s.trips[tripID]
	s.mu.RUnlock()
	if !ok || mt == nil {
		return nil, ErrNotFound
	}
	return mt, nil
}

func copyTrip(t *Trip) *Trip {
	c := *t
	c.CompletedAt = copyTime(t.CompletedAt)
	c.CancelledAt = copyTime(t.CancelledAt)
	return &c
}

func copyRequest(r *TripRequest) *TripRequest {
	c := *r
	if r.Dropoff != nil {
		p := *r.Dropoff
		c.Dropoff = &p
	}
	c.RiderPickupConfirmedAt = copyTime(r.RiderPickupConfirmedAt)
	c.AcceptedAt = copyTime(r.AcceptedAt)
	c.PickedUpAt = copyTime(r.PickedUpAt)
	c.CompletedAt = copyTime(r.CompletedAt)
	c.CancelledAt = copyTime(r.CancelledAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
