// README: Service wiring and collaborator contracts for the dispatch engine.
package trip

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"unipool/internal/routing"
	"unipool/internal/types"
)

// Pricing estimates a fare from the rider's in-car distance.
type Pricing interface {
	Estimate(ctx context.Context, distanceMeters float64) (types.Money, error)
}

// Settler captures payment for a completed trip. Invoked once per trip;
// failures are surfaced for operator alerting but never revert completion.
type Settler interface {
	Capture(ctx context.Context, tripID types.ID, completed []*TripRequest) error
}

// Notifier broadcasts transitions to interested parties. Implementations
// must never block or gate the calling transaction.
type Notifier interface {
	Publish(ctx context.Context, e Event)
}

// Indexer keeps the match-candidate geo index in step with trip lifecycle.
// Best effort: index staleness costs a wasted candidate check, not
// correctness.
type Indexer interface {
	Add(ctx context.Context, t *Trip) error
	Remove(ctx context.Context, id types.ID) error
}

type Deps struct {
	Pricing  Pricing
	Routes   routing.Provider
	Settler  Settler
	Notifier Notifier
	Indexer  Indexer
	Log      *logrus.Logger
	// StartWindow is how early a driver may start a pending trip ahead of
	// its departure time.
	StartWindow time.Duration
}

// Service implements the seat ledger, the dispatch sequencer and the trip
// lifecycle over a single store. It is stateless; every invocation re-reads
// persisted state, so horizontally scaled replicas stay consistent.
type Service struct {
	store       Store
	pricing     Pricing
	routes      routing.Provider
	settler     Settler
	notifier    Notifier
	indexer     Indexer
	log         *logrus.Logger
	startWindow time.Duration
}

func NewService(store Store, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:       store,
		pricing:     deps.Pricing,
		routes:      deps.Routes,
		settler:     deps.Settler,
		notifier:    deps.Notifier,
		indexer:     deps.Indexer,
		log:         log,
		startWindow: deps.StartWindow,
	}
}

func (s *Service) GetTrip(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.GetTrip(ctx, id)
}

func (s *Service) GetRequest(ctx context.Context, id types.ID) (*TripRequest, error) {
	return s.store.GetRequest(ctx, id)
}

func (s *Service) ListRequests(ctx context.Context, tripID types.ID) ([]*TripRequest, error) {
	return s.store.ListRequests(ctx, tripID)
}

// record appends an audit event and publishes it; both are best effort and
// happen after the state change committed.
func (s *Service) record(ctx context.Context, e Event) {
	e.CreatedAt = time.Now()
	if err := s.store.AppendEvent(ctx, &e); err != nil {
		s.log.WithError(err).WithField("trip_id", e.TripID).Warn("append event failed")
	}
	if s.notifier != nil {
		s.notifier.Publish(ctx, e)
	}
}
