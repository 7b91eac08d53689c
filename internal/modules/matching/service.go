// README: Candidate filtering and detour-based ranking of open trips.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"unipool/internal/config"
	"unipool/internal/geocost"
	"unipool/internal/modules/trip"
	"unipool/internal/observability"
	"unipool/internal/types"
)

// TripSource yields the open trips a query may be matched against.
type TripSource interface {
	ListOpenTrips(ctx context.Context, from, to time.Time) ([]*trip.Trip, error)
}

// Prefilter narrows candidates by origin distance before route costing.
type Prefilter interface {
	Near(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

type Service struct {
	trips TripSource
	geo   *geocost.Model
	index Prefilter
	cfg   config.MatchingConfig
	log   *logrus.Logger
}

// NewService builds the match ranker. index may be nil, in which case every
// open trip in the departure window is costed.
func NewService(trips TripSource, geo *geocost.Model, index Prefilter, cfg config.MatchingConfig, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{trips: trips, geo: geo, index: index, cfg: cfg, log: log}
}

// rideKm weights for the ranking score. A cost-sensitive rider pays per
// kilometre, so their own in-car distance dominates; a comfort-sensitive
// rider mostly wants the driver's detour (and so their wait) small.
const (
	weightCost    = 60.0
	weightComfort = 10.0
)

type scored struct {
	match RankedMatch
	score float64
}

// FindMatches returns open trips that can seat the whole group, ranked by a
// blend of driver detour and rider ride distance. An empty result is a valid
// answer, not an error. Identical inputs over identical trip sets rank
// identically: sorting is stable and ties fall back to trip ID.
func (s *Service) FindMatches(ctx context.Context, q Query) ([]RankedMatch, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	if q.Preference == "" {
		q.Preference = PreferenceCost
	}

	start := time.Now()

	window := time.Duration(s.cfg.WindowMinutes) * time.Minute
	candidates, err := s.trips.ListOpenTrips(ctx, q.DesiredArrival.Add(-window), q.DesiredArrival.Add(window))
	if err != nil {
		return nil, err
	}
	candidates = s.prefilter(ctx, q.Origin, candidates)

	weight := weightCost
	if q.Preference == PreferenceComfort {
		weight = weightComfort
	}

	ranked := make([]scored, 0, len(candidates))
	for _, t := range candidates {
		if t.SeatsLeft() < q.MaxOccupancy {
			continue
		}
		cost, err := s.geo.DetourCost(ctx, []types.Point{t.Origin, t.Destination}, q.Origin, q.Destination, t.DepartureTime)
		if err != nil {
			return nil, err
		}
		score := float64(cost.DetourSeconds) + weight*float64(cost.RideDistanceMeters)/1000.0
		ranked = append(ranked, scored{
			match: RankedMatch{
				TripID:              t.ID,
				DriverID:            t.DriverID,
				DepartureTime:       t.DepartureTime,
				DetourSeconds:       cost.DetourSeconds,
				RideDistanceMeters:  cost.RideDistanceMeters,
				RideDurationSeconds: cost.RideDurationSeconds,
				SeatsLeft:           t.SeatsLeft(),
			},
			score: score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].match.TripID < ranked[j].match.TripID
	})
	if s.cfg.MaxResults > 0 && len(ranked) > s.cfg.MaxResults {
		ranked = ranked[:s.cfg.MaxResults]
	}

	out := make([]RankedMatch, len(ranked))
	for i, r := range ranked {
		out[i] = r.match
	}

	observability.MatchesTotal.Inc()
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	return out, nil
}

// prefilter drops candidates whose origin falls outside the geo radius. Any
// index failure degrades to the unfiltered set; a cold index must never make
// real trips unmatchable.
func (s *Service) prefilter(ctx context.Context, origin types.Point, candidates []*trip.Trip) []*trip.Trip {
	if s.index == nil || len(candidates) == 0 {
		return candidates
	}
	ids, err := s.index.Near(ctx, origin, s.cfg.RadiusKm)
	if err != nil {
		s.log.WithError(err).Warn("geo prefilter unavailable, ranking all candidates")
		return candidates
	}
	if len(ids) == 0 {
		// A cold or flushed index carries no information; do not let it
		// hide real trips.
		return candidates
	}
	near := make(map[types.ID]struct{}, len(ids))
	for _, id := range ids {
		near[id] = struct{}{}
	}
	kept := candidates[:0]
	for _, t := range candidates {
		if _, ok := near[t.ID]; ok {
			kept = append(kept, t)
		}
	}
	return kept
}

func validateQuery(q Query) error {
	if !q.Origin.Valid() || !q.Destination.Valid() {
		return fmt.Errorf("%w: origin and destination must be valid coordinates", ErrInvalidInput)
	}
	if q.MaxOccupancy < 1 {
		return fmt.Errorf("%w: max occupancy must be at least 1", ErrInvalidInput)
	}
	if q.DesiredArrival.IsZero() {
		return fmt.Errorf("%w: desired arrival time required", ErrInvalidInput)
	}
	if q.Preference != "" && !q.Preference.Valid() {
		return fmt.Errorf("%w: preference must be cost or comfort", ErrInvalidInput)
	}
	return nil
}
