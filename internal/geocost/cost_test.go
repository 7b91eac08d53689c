// README: Cost model tests; ordering determinism, on-path insertion, rounding.
package geocost

import (
	"context"
	"errors"
	"testing"
	"time"

	"unipool/internal/routing"
	"unipool/internal/types"
)

// legFunc adapts a function to the routing provider contract.
type legFunc func(from, to types.Point) (routing.Leg, error)

func (f legFunc) Leg(_ context.Context, from, to types.Point, _ time.Time) (routing.Leg, error) {
	return f(from, to)
}

func latPoint(lat float64) types.Point { return types.Point{Lat: lat, Lng: 0} }

func TestRouteCost_PicksCheapestWaypointOrder(t *testing.T) {
	m := NewModel(routing.NewStaticProvider(10))

	// Waypoints given out of geographic order along a meridian; driving them
	// south-to-north is strictly cheapest.
	got, err := m.RouteCost(context.Background(), latPoint(0), latPoint(0.03),
		[]types.Point{latPoint(0.02), latPoint(0.01)}, time.Now())
	if err != nil {
		t.Fatalf("route cost: %v", err)
	}
	if got.WaypointOrder[0] != 1 || got.WaypointOrder[1] != 0 {
		t.Fatalf("expected visit order [1 0], got %v", got.WaypointOrder)
	}
	if got.DurationSeconds <= 0 || got.DistanceMeters <= 0 {
		t.Fatalf("expected positive costs, got %+v", got)
	}
}

func TestRouteCost_Deterministic(t *testing.T) {
	m := NewModel(routing.NewStaticProvider(10))
	waypoints := []types.Point{latPoint(0.04), latPoint(0.01), latPoint(0.03), latPoint(0.02)}

	first, err := m.RouteCost(context.Background(), latPoint(0), latPoint(0.05), waypoints, time.Now())
	if err != nil {
		t.Fatalf("route cost: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := m.RouteCost(context.Background(), latPoint(0), latPoint(0.05), waypoints, time.Now())
		if err != nil {
			t.Fatalf("route cost: %v", err)
		}
		if again.DurationSeconds != first.DurationSeconds || again.DistanceMeters != first.DistanceMeters {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
		for j := range first.WaypointOrder {
			if again.WaypointOrder[j] != first.WaypointOrder[j] {
				t.Fatalf("run %d reordered waypoints: %v vs %v", i, again.WaypointOrder, first.WaypointOrder)
			}
		}
	}
}

func TestRouteCost_TooManyWaypoints(t *testing.T) {
	m := NewModel(routing.NewStaticProvider(10))
	waypoints := make([]types.Point, maxWaypoints+1)
	for i := range waypoints {
		waypoints[i] = latPoint(float64(i) * 0.01)
	}
	_, err := m.RouteCost(context.Background(), latPoint(0), latPoint(1), waypoints, time.Now())
	if !errors.Is(err, routing.ErrRouteComputation) {
		t.Fatalf("expected ErrRouteComputation, got %v", err)
	}
}

func TestDetourCost_OnPathStopIsFree(t *testing.T) {
	m := NewModel(routing.NewStaticProvider(10))

	// Pickup and dropoff sit exactly on the meridian route; great-circle
	// distance is additive there, so the detour must come out zero.
	got, err := m.DetourCost(context.Background(),
		[]types.Point{latPoint(0), latPoint(0.03)},
		latPoint(0.01), latPoint(0.02), time.Now())
	if err != nil {
		t.Fatalf("detour cost: %v", err)
	}
	if got.DetourSeconds != 0 {
		t.Fatalf("expected zero detour, got %d", got.DetourSeconds)
	}
	if got.RideDistanceMeters <= 0 || got.RideDurationSeconds <= 0 {
		t.Fatalf("expected positive ride costs, got %+v", got)
	}
}

func TestDetourCost_OffPathCostsExtra(t *testing.T) {
	m := NewModel(routing.NewStaticProvider(10))

	got, err := m.DetourCost(context.Background(),
		[]types.Point{latPoint(0), latPoint(0.03)},
		types.Point{Lat: 0.01, Lng: 0.02}, types.Point{Lat: 0.02, Lng: 0.02}, time.Now())
	if err != nil {
		t.Fatalf("detour cost: %v", err)
	}
	if got.DetourSeconds <= 0 {
		t.Fatalf("expected positive detour for off-path stops, got %d", got.DetourSeconds)
	}
}

func TestDetourCost_ShortRoute(t *testing.T) {
	m := NewModel(routing.NewStaticProvider(10))
	_, err := m.DetourCost(context.Background(), []types.Point{latPoint(0)}, latPoint(0.01), latPoint(0.02), time.Now())
	if !errors.Is(err, routing.ErrRouteComputation) {
		t.Fatalf("expected ErrRouteComputation, got %v", err)
	}
}

func TestDetourCost_NegativeLegRejected(t *testing.T) {
	m := NewModel(legFunc(func(_, _ types.Point) (routing.Leg, error) {
		return routing.Leg{Seconds: -5, Meters: 100}, nil
	}))
	_, err := m.DetourCost(context.Background(),
		[]types.Point{latPoint(0), latPoint(0.03)},
		latPoint(0.01), latPoint(0.02), time.Now())
	if !errors.Is(err, routing.ErrRouteComputation) {
		t.Fatalf("expected ErrRouteComputation, got %v", err)
	}
}

func TestDetourCost_NegativeDetourRejected(t *testing.T) {
	// A provider with inconsistent costs: the direct leg is wildly expensive,
	// every other leg nearly free, so every insertion "improves" the route.
	// That is a provider bug and must surface, not clamp to zero.
	direct := latPoint(0.03)
	m := NewModel(legFunc(func(from, to types.Point) (routing.Leg, error) {
		if from == latPoint(0) && to == direct {
			return routing.Leg{Seconds: 1000, Meters: 1000}, nil
		}
		return routing.Leg{Seconds: 1, Meters: 1}, nil
	}))
	_, err := m.DetourCost(context.Background(),
		[]types.Point{latPoint(0), direct},
		latPoint(0.01), latPoint(0.02), time.Now())
	if !errors.Is(err, routing.ErrRouteComputation) {
		t.Fatalf("expected ErrRouteComputation for negative detour, got %v", err)
	}
}

func TestRoundAwayFromZero(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.1, 1},
		{1.0, 1},
		{1.5, 2},
		{-0.1, -1},
		{-1.5, -2},
	}
	for _, tc := range cases {
		if got := roundAwayFromZero(tc.in); got != tc.want {
			t.Errorf("roundAwayFromZero(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
