// README: Stripe-backed settlement; one capture pass per completed trip.
package settlement

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

// StripeSettler captures one PaymentIntent per completed request. Called by
// the trip lifecycle exactly once per trip; any failed capture is reported
// back for operator alerting while the remaining riders are still charged.
type StripeSettler struct{}

// NewStripeSettler configures the stripe client with the given API key.
func NewStripeSettler(apiKey string) *StripeSettler {
	stripe.Key = apiKey
	return &StripeSettler{}
}

func (s *StripeSettler) Capture(ctx context.Context, tripID types.ID, completed []*trip.TripRequest) error {
	var errs []error
	for _, r := range completed {
		if r.Fare.Amount <= 0 {
			continue
		}
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(r.Fare.Amount),
			Currency: stripe.String(r.Fare.Currency),
		}
		params.AddMetadata("trip_id", string(tripID))
		params.AddMetadata("request_id", string(r.ID))
		params.AddMetadata("rider_id", string(r.RiderID))
		params.Context = ctx
		if _, err := paymentintent.New(params); err != nil {
			errs = append(errs, fmt.Errorf("request %s: %w", r.ID, err))
		}
	}
	return errors.Join(errs...)
}
