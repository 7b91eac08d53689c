// README: Routing provider abstraction; all external leg costs come through here.
package routing

import (
	"context"
	"errors"
	"time"

	"unipool/internal/types"
)

// ErrRouteComputation marks a provider failure. Callers treat it as retryable;
// it is never converted into a silent zero-cost result.
var ErrRouteComputation = errors.New("route computation failed")

// Leg is the raw cost of driving one segment. Values are fractional as
// returned by the provider; rounding policy belongs to the cost model.
type Leg struct {
	Seconds float64
	Meters  float64
}

// Provider estimates the cost of a single leg departing at the given time.
type Provider interface {
	Leg(ctx context.Context, from, to types.Point, departure time.Time) (Leg, error)
}
