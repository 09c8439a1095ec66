package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// driverLocationKey returns the tenant-scoped geo-index key. A tenant's
// drivers are never visible to another tenant's searches.
func driverLocationKey(tenantID string) string {
	return "drivers:locations:" + tenantID
}

// DriverLocation represents a driver's position relative to a search center.
type DriverLocation struct {
	DriverID  string
	Lat       float64
	Lng       float64
	DistanceM float64 // distance to the search center
}

// LocationStore handles driver location operations in Redis.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, tenantID, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, driverLocationKey(tenantID), &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyDrivers returns drivers within radiusKm of the center, closest
// first, capped at limit (0 means unbounded).
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, tenantID string, lat, lng, radiusKm float64, limit int) ([]DriverLocation, error) {
	results, err := s.client.GeoRadius(ctx, driverLocationKey(tenantID), lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
		Count:     limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]DriverLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, DriverLocation{
			DriverID:  r.Name,
			Lat:       r.Latitude,
			Lng:       r.Longitude,
			DistanceM: r.Dist * 1000, // GeoRadius reports in the query unit
		})
	}

	return locations, nil
}

// RemoveLocation removes a driver's location from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, tenantID, driverID string) error {
	return s.client.ZRem(ctx, driverLocationKey(tenantID), driverID).Err()
}
