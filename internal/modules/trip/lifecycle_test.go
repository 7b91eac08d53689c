// README: Trip lifecycle tests; start window, cancellation semantics,
// settlement durability.
package trip

import (
	"context"
	"errors"
	"testing"
	"time"

	"unipool/internal/types"
)

func TestCreateTrip_Validation(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	cases := []CreateTripCommand{
		{DriverID: "", MaxSeats: 2, DepartureTime: time.Now().Add(time.Hour), Origin: types.Point{Lat: 24, Lng: 121}, Destination: types.Point{Lat: 25, Lng: 121}},
		{DriverID: "d", MaxSeats: 0, DepartureTime: time.Now().Add(time.Hour), Origin: types.Point{Lat: 24, Lng: 121}, Destination: types.Point{Lat: 25, Lng: 121}},
		{DriverID: "d", MaxSeats: 2, Origin: types.Point{Lat: 24, Lng: 121}, Destination: types.Point{Lat: 25, Lng: 121}},
		{DriverID: "d", MaxSeats: 2, DepartureTime: time.Now().Add(time.Hour), Origin: types.Point{Lat: 95, Lng: 121}, Destination: types.Point{Lat: 25, Lng: 121}},
	}
	for i, cmd := range cases {
		if _, err := svc.CreateTrip(context.Background(), cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("case %d: expected ErrBadRequest, got %v", i, err)
		}
	}
}

func TestStartTrip_TooEarly(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: 30 * time.Minute})
	trip := mustCreateTrip(t, svc, "driver-1", 2, time.Now().Add(2*time.Hour))

	_, err := svc.StartTrip(context.Background(), StartTripCommand{TripID: trip.ID, DriverID: "driver-1"})
	if !errors.Is(err, ErrTooEarly) {
		t.Fatalf("expected ErrTooEarly, got %v", err)
	}
}

func TestStartTrip_InsideWindow(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: 30 * time.Minute})
	trip := mustCreateTrip(t, svc, "driver-1", 2, time.Now().Add(10*time.Minute))

	started, err := svc.StartTrip(context.Background(), StartTripCommand{TripID: trip.ID, DriverID: "driver-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusActive {
		t.Fatalf("expected active, got %s", started.Status)
	}
}

func TestStartTrip_WrongDriver(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip := mustCreateTrip(t, svc, "driver-1", 2, time.Now().Add(10*time.Minute))

	_, err := svc.StartTrip(context.Background(), StartTripCommand{TripID: trip.ID, DriverID: "driver-2"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestStartTrip_TwiceConflicts(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip := mustCreateTrip(t, svc, "driver-1", 2, time.Now().Add(10*time.Minute))

	if _, err := svc.StartTrip(context.Background(), StartTripCommand{TripID: trip.ID, DriverID: "driver-1"}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := svc.StartTrip(context.Background(), StartTripCommand{TripID: trip.ID, DriverID: "driver-1"})
	if err == nil {
		t.Fatal("expected second start to fail")
	}
}

func TestDepartTrip_RequiresActive(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip := mustCreateTrip(t, svc, "driver-1", 2, time.Now().Add(10*time.Minute))

	if _, err := svc.DepartTrip(context.Background(), DepartTripCommand{TripID: trip.ID, DriverID: "driver-1"}); err == nil {
		t.Fatal("expected depart on a pending trip to fail")
	}

	if _, err := svc.StartTrip(context.Background(), StartTripCommand{TripID: trip.ID, DriverID: "driver-1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	departed, err := svc.DepartTrip(context.Background(), DepartTripCommand{TripID: trip.ID, DriverID: "driver-1"})
	if err != nil {
		t.Fatalf("depart: %v", err)
	}
	if departed.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", departed.Status)
	}
}

func TestCancelTrip_CancelsOpenRequests(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	trip := mustCreateTrip(t, svc, "driver-1", 3, time.Now().Add(2*time.Hour))

	accepted := mustRequestSeat(t, svc, trip.ID, "rider-1")
	mustAccept(t, svc, accepted.ID, "driver-1")
	pending := mustRequestSeat(t, svc, trip.ID, "rider-2")

	cancelled, err := svc.CancelTrip(context.Background(), CancelTripCommand{TripID: trip.ID, DriverID: "driver-1"})
	if err != nil {
		t.Fatalf("cancel trip: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.BookedSeats != 0 {
		t.Fatalf("expected all seats released, got %d", cancelled.BookedSeats)
	}
	for _, id := range []types.ID{accepted.ID, pending.ID} {
		r, err := svc.GetRequest(context.Background(), id)
		if err != nil {
			t.Fatalf("get request: %v", err)
		}
		if r.Status != RequestCancelled {
			t.Fatalf("expected request %s cancelled, got %s", id, r.Status)
		}
	}
}

func TestCancelTrip_InProgressRejected(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip, reqs := activeTripWithRiders(t, svc, 1)
	boardRider(t, svc, trip.ID, reqs[0], "driver-1")

	_, err := svc.CancelTrip(context.Background(), CancelTripCommand{TripID: trip.ID, DriverID: "driver-1"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCompletion_SurvivesSettlementFailure(t *testing.T) {
	settler := &countingSettler{err: errors.New("card declined")}
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour, Settler: settler})
	trip, reqs := activeTripWithRiders(t, svc, 1)
	boardRider(t, svc, trip.ID, reqs[0], "driver-1")

	err := svc.Advance(context.Background(), AdvanceCommand{
		TripID: trip.ID, RequestID: reqs[0].ID, Action: StopDropoff, DriverID: "driver-1",
	})
	if err != nil {
		t.Fatalf("dropoff: %v", err)
	}

	got, err := svc.GetTrip(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("settlement failure must not revert completion, got %s", got.Status)
	}
	if settler.captures != 1 {
		t.Fatalf("expected one capture attempt, got %d", settler.captures)
	}
}

func TestAuditTrail_RecordsTransitions(t *testing.T) {
	svc, store := newTestService(t, Deps{StartWindow: time.Hour})
	trip := mustCreateTrip(t, svc, "driver-1", 2, time.Now().Add(10*time.Minute))
	req := mustRequestSeat(t, svc, trip.ID, "rider-1")
	mustAccept(t, svc, req.ID, "driver-1")

	events := store.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.ToStatus != string(RequestAccepted) || last.ActorType != "driver" {
		t.Fatalf("unexpected final event %+v", last)
	}
}
