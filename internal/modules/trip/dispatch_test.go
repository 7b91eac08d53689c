// README: Dispatch sequencer tests; stop ordering, confirmation gate,
// exactly-once completion.
package trip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"unipool/internal/types"
)

// countingSettler records every capture so tests can assert exactly-once.
type countingSettler struct {
	mu       sync.Mutex
	captures int
	lastSize int
	err      error
}

func (c *countingSettler) Capture(_ context.Context, _ types.ID, completed []*TripRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures++
	c.lastSize = len(completed)
	return c.err
}

// activeTripWithRiders builds a started trip with n accepted riders. Requests
// are accepted one at a time so the acceptance order is rider-0, rider-1, ...
func activeTripWithRiders(t *testing.T, svc *Service, n int) (*Trip, []*TripRequest) {
	t.Helper()
	trip := mustCreateTrip(t, svc, "driver-1", n, time.Now().Add(10*time.Minute))
	reqs := make([]*TripRequest, n)
	for i := range reqs {
		r := mustRequestSeat(t, svc, trip.ID, types.ID(fmt.Sprintf("rider-%d", i)))
		reqs[i] = mustAccept(t, svc, r.ID, "driver-1")
	}
	started, err := svc.StartTrip(context.Background(), StartTripCommand{TripID: trip.ID, DriverID: "driver-1"})
	if err != nil {
		t.Fatalf("start trip: %v", err)
	}
	return started, reqs
}

func TestCurrentStop_PickupsInAcceptanceOrderThenDropoffs(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip, reqs := activeTripWithRiders(t, svc, 2)

	stop, err := svc.CurrentStop(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("current stop: %v", err)
	}
	if stop == nil || stop.Type != StopPickup || stop.RequestID != reqs[0].ID {
		t.Fatalf("expected pickup of first-accepted rider, got %+v", stop)
	}

	boardRider(t, svc, trip.ID, reqs[0], "driver-1")

	stop, err = svc.CurrentStop(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("current stop: %v", err)
	}
	if stop == nil || stop.Type != StopPickup || stop.RequestID != reqs[1].ID {
		t.Fatalf("expected second pickup before any dropoff, got %+v", stop)
	}

	boardRider(t, svc, trip.ID, reqs[1], "driver-1")

	stop, err = svc.CurrentStop(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("current stop: %v", err)
	}
	if stop == nil || stop.Type != StopDropoff || stop.RequestID != reqs[0].ID {
		t.Fatalf("expected dropoff in acceptance order, got %+v", stop)
	}
	// Neither rider set a drop-off point, so the trip destination stands in.
	if stop.Location != trip.Destination {
		t.Fatalf("expected dropoff at trip destination, got %+v", stop.Location)
	}
}

func TestCurrentStop_NilWhenNothingToDo(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip := mustCreateTrip(t, svc, "driver-1", 2, time.Now().Add(10*time.Minute))

	stop, err := svc.CurrentStop(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("current stop: %v", err)
	}
	if stop != nil {
		t.Fatalf("expected no stop for a trip without accepted riders, got %+v", stop)
	}
}

func TestAdvance_PickupNeedsRiderConfirmation(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip, reqs := activeTripWithRiders(t, svc, 1)

	err := svc.Advance(context.Background(), AdvanceCommand{
		TripID: trip.ID, RequestID: reqs[0].ID, Action: StopPickup, DriverID: "driver-1",
	})
	if !errors.Is(err, ErrRiderNotConfirmed) {
		t.Fatalf("expected ErrRiderNotConfirmed, got %v", err)
	}

	boardRider(t, svc, trip.ID, reqs[0], "driver-1")
	r, err := svc.GetRequest(context.Background(), reqs[0].ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if r.Status != RequestOnTrip {
		t.Fatalf("expected on_trip after confirmed pickup, got %s", r.Status)
	}
}

func TestAdvance_FirstPickupDepartsTheTrip(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip, reqs := activeTripWithRiders(t, svc, 1)

	boardRider(t, svc, trip.ID, reqs[0], "driver-1")

	got, err := svc.GetTrip(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("expected in_progress after first pickup, got %s", got.Status)
	}
}

func TestAdvance_UnknownActionRejected(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip, reqs := activeTripWithRiders(t, svc, 1)

	err := svc.Advance(context.Background(), AdvanceCommand{
		TripID: trip.ID, RequestID: reqs[0].ID, Action: "teleport", DriverID: "driver-1",
	})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestAdvance_LastDropoffCompletesAndSettlesOnce(t *testing.T) {
	settler := &countingSettler{}
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour, Settler: settler})
	trip, reqs := activeTripWithRiders(t, svc, 2)

	boardRider(t, svc, trip.ID, reqs[0], "driver-1")
	boardRider(t, svc, trip.ID, reqs[1], "driver-1")

	for _, r := range reqs {
		err := svc.Advance(context.Background(), AdvanceCommand{
			TripID: trip.ID, RequestID: r.ID, Action: StopDropoff, DriverID: "driver-1",
		})
		if err != nil {
			t.Fatalf("dropoff %s: %v", r.ID, err)
		}
	}

	got, err := svc.GetTrip(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if settler.captures != 1 {
		t.Fatalf("expected exactly one settlement capture, got %d", settler.captures)
	}
	if settler.lastSize != 2 {
		t.Fatalf("expected 2 completed requests in the capture, got %d", settler.lastSize)
	}
}

func TestAdvance_PendingRequestBlocksCompletion(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip, reqs := activeTripWithRiders(t, svc, 2)

	// A new pending request arrives while the trip is still open.
	pending := mustRequestSeat(t, svc, trip.ID, "rider-late")

	boardRider(t, svc, trip.ID, reqs[0], "driver-1")
	boardRider(t, svc, trip.ID, reqs[1], "driver-1")

	for _, r := range reqs {
		err := svc.Advance(context.Background(), AdvanceCommand{
			TripID: trip.ID, RequestID: r.ID, Action: StopDropoff, DriverID: "driver-1",
		})
		if err != nil {
			t.Fatalf("dropoff %s: %v", r.ID, err)
		}
	}

	got, err := svc.GetTrip(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("pending request should hold the trip open, got %s", got.Status)
	}

	// Rejecting the straggler resolves the last open request; the trip now
	// has no remaining obligations and closes.
	if _, err := svc.RejectRequest(context.Background(), RejectCommand{RequestID: pending.ID, DriverID: "driver-1"}); err != nil {
		t.Fatalf("reject straggler: %v", err)
	}
	got, err = svc.GetTrip(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completion after last straggler resolved, got %s", got.Status)
	}
}

func TestAdvance_WrongDriverForbidden(t *testing.T) {
	svc, _ := newTestService(t, Deps{StartWindow: time.Hour})
	trip, reqs := activeTripWithRiders(t, svc, 1)

	if _, err := svc.ConfirmPickup(context.Background(), ConfirmPickupCommand{RequestID: reqs[0].ID, RiderID: reqs[0].RiderID}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	err := svc.Advance(context.Background(), AdvanceCommand{
		TripID: trip.ID, RequestID: reqs[0].ID, Action: StopPickup, DriverID: "driver-2",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
