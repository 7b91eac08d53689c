// README: Redis GEO index of open trip origins.
package matching

import (
	"context"

	"github.com/redis/go-redis/v9"

	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

const tripGeoKey = "matching:trips"

// Index keeps open trips positioned by their origin so match queries can
// prefilter by distance before paying for route computations. It is a
// best-effort accelerator: the store stays the source of truth.
type Index struct {
	redis *redis.Client
}

func NewIndex(rdb *redis.Client) *Index {
	return &Index{redis: rdb}
}

func (i *Index) Add(ctx context.Context, t *trip.Trip) error {
	return i.redis.GeoAdd(ctx, tripGeoKey, &redis.GeoLocation{
		Name:      string(t.ID),
		Longitude: t.Origin.Lng,
		Latitude:  t.Origin.Lat,
	}).Err()
}

func (i *Index) Remove(ctx context.Context, id types.ID) error {
	return i.redis.ZRem(ctx, tripGeoKey, string(id)).Err()
}

// Near returns the IDs of indexed trips whose origin lies within radiusKm of
// p, closest first.
func (i *Index) Near(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := i.redis.GeoSearch(ctx, tripGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
