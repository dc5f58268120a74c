// README: Redis GEO prefilter over active ride and request origins.
package matching

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridepool/internal/types"
)

const (
	rideGeoKey    = "matching:rides"
	requestGeoKey = "matching:requests"
)

// Store keeps a Redis GEO index of candidate origins so the service can prune
// the full scan. The index is advisory: the pure filter is authoritative, and
// an empty or unavailable index means "no pruning".
type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) IndexRide(ctx context.Context, id types.ID, origin *types.Point) error {
	return s.add(ctx, rideGeoKey, id, origin)
}

func (s *Store) IndexRequest(ctx context.Context, id types.ID, origin *types.Point) error {
	return s.add(ctx, requestGeoKey, id, origin)
}

func (s *Store) RemoveRide(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, rideGeoKey, string(id)).Err()
}

func (s *Store) RemoveRequest(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, requestGeoKey, string(id)).Err()
}

// NearbyRides returns ids of indexed rides whose origin lies within radiusKm.
func (s *Store) NearbyRides(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return s.search(ctx, rideGeoKey, p, radiusKm)
}

func (s *Store) NearbyRequests(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return s.search(ctx, requestGeoKey, p, radiusKm)
}

func (s *Store) add(ctx context.Context, key string, id types.ID, origin *types.Point) error {
	if origin == nil {
		// Unlocated candidates are not indexed; they can never pass the
		// location filter anyway.
		return nil
	}
	return s.redis.GeoAdd(ctx, key, &redis.GeoLocation{
		Name:      string(id),
		Longitude: origin.Lng,
		Latitude:  origin.Lat,
	}).Err()
}

func (s *Store) search(ctx context.Context, key string, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, key, &redis.GeoSearchQuery{
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
