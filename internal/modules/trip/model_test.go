// README: Transition table tests for trip and request statuses.
package trip

import "testing"

func TestCanTransition_AllowedPaths(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusActive},
		{StatusPending, StatusCancelled},
		{StatusActive, StatusInProgress},
		{StatusActive, StatusCancelled},
		{StatusInProgress, StatusCompleted},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectedPaths(t *testing.T) {
	rejected := []struct{ from, to Status }{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusCompleted},
		{StatusActive, StatusCompleted},
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusPending},
		{StatusCompleted, StatusActive},
		{StatusCancelled, StatusPending},
	}
	for _, tc := range rejected {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestCanTransitionRequest(t *testing.T) {
	allowed := []struct{ from, to RequestStatus }{
		{RequestPending, RequestAccepted},
		{RequestPending, RequestRejected},
		{RequestPending, RequestCancelled},
		{RequestAccepted, RequestOnTrip},
		{RequestAccepted, RequestCancelled},
		{RequestOnTrip, RequestCompleted},
	}
	for _, tc := range allowed {
		if !CanTransitionRequest(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	rejected := []struct{ from, to RequestStatus }{
		{RequestPending, RequestOnTrip},
		{RequestPending, RequestCompleted},
		{RequestOnTrip, RequestCancelled},
		{RequestRejected, RequestAccepted},
		{RequestCancelled, RequestPending},
		{RequestCompleted, RequestOnTrip},
	}
	for _, tc := range rejected {
		if CanTransitionRequest(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestRequestStatusTerminal(t *testing.T) {
	terminal := []RequestStatus{RequestRejected, RequestCancelled, RequestCompleted}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
		if s.Active() {
			t.Errorf("expected %s not to be active", s)
		}
	}
	live := []RequestStatus{RequestPending, RequestAccepted, RequestOnTrip}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}
