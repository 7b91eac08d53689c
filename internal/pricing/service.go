// README: Pricing service computes fare estimates from ride distance.
package pricing

import (
	"context"
	"math"

	"unipool/internal/config"
	"unipool/internal/types"
)

// Service prices a ride as a base fare plus a per-kilometre rate, rounded up
// to the next cent.
type Service struct {
	baseCents  int64
	perKmCents int64
	currency   string
}

func NewService(cfg config.PricingConfig) *Service {
	return &Service{
		baseCents:  cfg.BaseFareCents,
		perKmCents: cfg.PerKmCents,
		currency:   cfg.Currency,
	}
}

func (s *Service) Estimate(_ context.Context, distanceMeters float64) (types.Money, error) {
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	km := distanceMeters / 1000.0
	amount := s.baseCents + int64(math.Ceil(km*float64(s.perKmCents)))
	return types.Money{Amount: amount, Currency: s.currency}, nil
}
