// README: Google Maps Directions-backed routing provider.
package routing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"unipool/internal/types"
)

// GoogleProvider resolves leg costs through the Google Maps Directions API.
type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Leg(ctx context.Context, from, to types.Point, departure time.Time) (Leg, error) {
	r := &maps.DirectionsRequest{
		Origin:      formatPoint(from),
		Destination: formatPoint(to),
		Mode:        maps.TravelModeDriving,
	}
	if !departure.IsZero() {
		r.DepartureTime = strconv.FormatInt(departure.Unix(), 10)
	}
	routes, _, err := p.client.Directions(ctx, r)
	if err != nil {
		return Leg{}, fmt.Errorf("%w: %v", ErrRouteComputation, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Leg{}, fmt.Errorf("%w: no route found", ErrRouteComputation)
	}
	leg := routes[0].Legs[0]
	return Leg{
		Seconds: leg.Duration.Seconds(),
		Meters:  float64(leg.Distance.Meters),
	}, nil
}

func formatPoint(p types.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
