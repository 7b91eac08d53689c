// README: Shared fixtures for the trip service tests.
package trip

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"unipool/internal/types"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, deps Deps) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	if deps.Log == nil {
		deps.Log = quietLogger()
	}
	return NewService(store, deps), store
}

func mustCreateTrip(t *testing.T, svc *Service, driverID types.ID, seats int, departure time.Time) *Trip {
	t.Helper()
	trip, err := svc.CreateTrip(context.Background(), CreateTripCommand{
		DriverID:      driverID,
		Origin:        types.Point{Lat: 24.79, Lng: 120.99},
		Destination:   types.Point{Lat: 25.03, Lng: 121.56},
		DepartureTime: departure,
		MaxSeats:      seats,
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return trip
}

func mustRequestSeat(t *testing.T, svc *Service, tripID, riderID types.ID) *TripRequest {
	t.Helper()
	r, err := svc.RequestSeat(context.Background(), RequestSeatCommand{
		TripID:  tripID,
		RiderID: riderID,
		Pickup:  types.Point{Lat: 24.80, Lng: 121.00},
	})
	if err != nil {
		t.Fatalf("request seat for %s: %v", riderID, err)
	}
	return r
}

func mustAccept(t *testing.T, svc *Service, requestID, driverID types.ID) *TripRequest {
	t.Helper()
	r, err := svc.AcceptRequest(context.Background(), AcceptCommand{RequestID: requestID, DriverID: driverID})
	if err != nil {
		t.Fatalf("accept %s: %v", requestID, err)
	}
	return r
}

// boardRider walks one request through confirm + pickup so dispatch tests can
// reach the drop-off phase quickly.
func boardRider(t *testing.T, svc *Service, tripID types.ID, r *TripRequest, driverID types.ID) {
	t.Helper()
	if _, err := svc.ConfirmPickup(context.Background(), ConfirmPickupCommand{RequestID: r.ID, RiderID: r.RiderID}); err != nil {
		t.Fatalf("confirm pickup %s: %v", r.ID, err)
	}
	err := svc.Advance(context.Background(), AdvanceCommand{
		TripID: tripID, RequestID: r.ID, Action: StopPickup, DriverID: driverID,
	})
	if err != nil {
		t.Fatalf("advance pickup %s: %v", r.ID, err)
	}
}

// assertSeatInvariant checks that the booked counter equals the number of
// requests actually holding seats.
func assertSeatInvariant(t *testing.T, svc *Service, tripID types.ID) {
	t.Helper()
	trip, err := svc.GetTrip(context.Background(), tripID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	reqs, err := svc.ListRequests(context.Background(), tripID)
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}
	holding := 0
	for _, r := range reqs {
		if r.Status == RequestAccepted || r.Status == RequestOnTrip {
			holding++
		}
	}
	if trip.BookedSeats != holding {
		t.Fatalf("booked seats %d but %d requests hold seats", trip.BookedSeats, holding)
	}
	if trip.BookedSeats < 0 || trip.BookedSeats > trip.MaxSeats {
		t.Fatalf("booked seats %d outside [0, %d]", trip.BookedSeats, trip.MaxSeats)
	}
}
