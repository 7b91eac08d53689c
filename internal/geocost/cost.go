// README: Pure route/detour cost computation over an injected routing provider.
package geocost

import (
	"context"
	"fmt"
	"math"
	"time"

	"unipool/internal/routing"
	"unipool/internal/types"
)

// maxWaypoints bounds the exhaustive ordering search. A shared trip carries a
// handful of stops; factorial growth past this point is a caller bug.
const maxWaypoints = 6

// floatSlack absorbs accumulation noise when an inserted stop lies exactly on
// the existing path; anything more negative than this is a provider error.
const floatSlack = 1e-6

// RouteCost is the cost of driving a full route, with the chosen ordering of
// the candidate waypoints. WaypointOrder[i] is the visit position of input
// waypoint i.
type RouteCost struct {
	DurationSeconds int
	DistanceMeters  int
	WaypointOrder   []int
}

// DetourCost is the added cost of serving one more rider, plus the rider's
// own in-car leg.
type DetourCost struct {
	DetourSeconds       int
	RideDistanceMeters  int
	RideDurationSeconds int
}

// Model owns insertion and ordering decisions; raw leg costs come from the
// provider. It holds no state and is safe for concurrent use.
type Model struct {
	provider routing.Provider
}

func NewModel(provider routing.Provider) *Model {
	return &Model{provider: provider}
}

// RouteCost computes the cheapest ordering of waypoints between origin and
// destination. Identical inputs always yield the identical WaypointOrder:
// permutations are enumerated in lexicographic order and only a strictly
// cheaper one replaces the incumbent.
func (m *Model) RouteCost(ctx context.Context, origin, destination types.Point, waypoints []types.Point, departure time.Time) (RouteCost, error) {
	if len(waypoints) > maxWaypoints {
		return RouteCost{}, fmt.Errorf("%w: too many waypoints (%d > %d)", routing.ErrRouteComputation, len(waypoints), maxWaypoints)
	}

	legs := m.newLegMemo(departure)

	bestOrder := make([]int, len(waypoints))
	for i := range bestOrder {
		bestOrder[i] = i
	}
	var best *pathCost
	err := permute(len(waypoints), func(perm []int) error {
		seq := make([]types.Point, 0, len(waypoints)+2)
		seq = append(seq, origin)
		for _, idx := range perm {
			seq = append(seq, waypoints[idx])
		}
		seq = append(seq, destination)

		c, err := legs.pathCost(ctx, seq)
		if err != nil {
			return err
		}
		if best == nil || c.seconds < best.seconds {
			cc := c
			best = &cc
			copy(bestOrder, perm)
		}
		return nil
	})
	if err != nil {
		return RouteCost{}, err
	}

	order := make([]int, len(waypoints))
	for pos, idx := range bestOrder {
		order[idx] = pos
	}
	return RouteCost{
		DurationSeconds: roundAwayFromZero(best.seconds),
		DistanceMeters:  roundAwayFromZero(best.meters),
		WaypointOrder:   order,
	}, nil
}

// DetourCost computes the cost of inserting a pickup and dropoff into an
// existing ordered route (first element is the current position, last the
// final destination). The relative order of existing stops is preserved and
// the pickup always precedes the dropoff. A negative detour is a provider
// error, never clamped away.
func (m *Model) DetourCost(ctx context.Context, route []types.Point, pickup, dropoff types.Point, departure time.Time) (DetourCost, error) {
	if len(route) < 2 {
		return DetourCost{}, fmt.Errorf("%w: route needs at least two points", routing.ErrRouteComputation)
	}

	legs := m.newLegMemo(departure)

	base, err := legs.pathCost(ctx, route)
	if err != nil {
		return DetourCost{}, err
	}

	var (
		found       bool
		bestCost    pathCost
		bestSeq     []types.Point
		bestPickIdx int
		bestDropIdx int
	)
	// Insert pickup after route[i] and dropoff after route[j] (j >= i means
	// the dropoff lands after the pickup). Lexicographically first (i, j)
	// wins ties, keeping the result deterministic.
	for i := 0; i < len(route)-1; i++ {
		for j := i; j < len(route)-1; j++ {
			seq, pickIdx, dropIdx := insertStops(route, pickup, dropoff, i, j)
			c, err := legs.pathCost(ctx, seq)
			if err != nil {
				return DetourCost{}, err
			}
			if !found || c.seconds < bestCost.seconds {
				found = true
				bestCost = c
				bestSeq = seq
				bestPickIdx = pickIdx
				bestDropIdx = dropIdx
			}
		}
	}

	detour := bestCost.seconds - base.seconds
	if detour < -floatSlack {
		return DetourCost{}, fmt.Errorf("%w: negative detour (%.3fs)", routing.ErrRouteComputation, detour)
	}
	if detour < floatSlack {
		detour = 0 // accumulation noise on an exactly on-path stop
	}

	ride, err := legs.pathCost(ctx, bestSeq[bestPickIdx:bestDropIdx+1])
	if err != nil {
		return DetourCost{}, err
	}
	return DetourCost{
		DetourSeconds:       roundAwayFromZero(detour),
		RideDistanceMeters:  roundAwayFromZero(ride.meters),
		RideDurationSeconds: roundAwayFromZero(ride.seconds),
	}, nil
}

func insertStops(route []types.Point, pickup, dropoff types.Point, i, j int) (seq []types.Point, pickIdx, dropIdx int) {
	seq = make([]types.Point, 0, len(route)+2)
	seq = append(seq, route[:i+1]...)
	seq = append(seq, pickup)
	pickIdx = len(seq) - 1
	seq = append(seq, route[i+1:j+1]...)
	seq = append(seq, dropoff)
	dropIdx = len(seq) - 1
	seq = append(seq, route[j+1:]...)
	return seq, pickIdx, dropIdx
}

type pathCost struct {
	seconds float64
	meters  float64
}

// legMemo deduplicates provider lookups within one computation; candidate
// sequences share most of their legs.
type legMemo struct {
	provider  routing.Provider
	departure time.Time
	seen      map[string]routing.Leg
}

func (m *Model) newLegMemo(departure time.Time) *legMemo {
	return &legMemo{provider: m.provider, departure: departure, seen: make(map[string]routing.Leg)}
}

func (lm *legMemo) leg(ctx context.Context, from, to types.Point) (routing.Leg, error) {
	k := fmt.Sprintf("%.7f,%.7f|%.7f,%.7f", from.Lat, from.Lng, to.Lat, to.Lng)
	if leg, ok := lm.seen[k]; ok {
		return leg, nil
	}
	leg, err := lm.provider.Leg(ctx, from, to, lm.departure)
	if err != nil {
		return routing.Leg{}, err
	}
	if leg.Seconds < 0 || leg.Meters < 0 {
		return routing.Leg{}, fmt.Errorf("%w: provider returned negative leg cost", routing.ErrRouteComputation)
	}
	lm.seen[k] = leg
	return leg, nil
}

func (lm *legMemo) pathCost(ctx context.Context, seq []types.Point) (pathCost, error) {
	var c pathCost
	for i := 0; i < len(seq)-1; i++ {
		leg, err := lm.leg(ctx, seq[i], seq[i+1])
		if err != nil {
			return pathCost{}, err
		}
		c.seconds += leg.Seconds
		c.meters += leg.Meters
	}
	return c, nil
}

// permute calls fn with each permutation of [0..n) in lexicographic order.
func permute(n int, fn func([]int) error) error {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for {
		if err := fn(perm); err != nil {
			return err
		}
		// next lexicographic permutation
		i := n - 2
		for i >= 0 && perm[i] >= perm[i+1] {
			i--
		}
		if i < 0 {
			return nil
		}
		j := n - 1
		for perm[j] <= perm[i] {
			j--
		}
		perm[i], perm[j] = perm[j], perm[i]
		for l, r := i+1, n-1; l < r; l, r = l+1, r-1 {
			perm[l], perm[r] = perm[r], perm[l]
		}
	}
}

func roundAwayFromZero(f float64) int {
	if f >= 0 {
		return int(math.Ceil(f))
	}
	return int(math.Floor(f))
}
