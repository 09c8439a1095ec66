package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles driver caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// DriverCacheTTL is short because driver status changes frequently during
// dispatch.
const DriverCacheTTL = 30 * time.Second

const driverCachePrefix = "cache:driver:"

func availableDriversKey(tenantID string) string {
	return "available_drivers:" + tenantID
}

// CachedDriver represents a cached driver together with its active vehicle
// descriptor, enough to filter candidates without a database round-trip.
type CachedDriver struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenant_id"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Rating       float64 `json:"rating"`
	Status       string  `json:"status"`
	VehicleID    string  `json:"vehicle_id"`
	VehicleType  string  `json:"vehicle_type"`
	VehicleMake  string  `json:"vehicle_make"`
	VehicleModel string  `json:"vehicle_model"`
	VehicleColor string  `json:"vehicle_color"`
	VehiclePlate string  `json:"vehicle_plate"`
}

// GetDriver retrieves a driver from cache. A cache miss returns (nil, nil).
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	key := driverCachePrefix + driverID
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	key := driverCachePrefix + driver.ID
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, DriverCacheTTL).Err()
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	key := driverCachePrefix + driverID
	return s.client.Del(ctx, key).Err()
}

// GetDriversBatch retrieves multiple drivers from cache using a pipeline.
// Returns a map of driverID -> CachedDriver plus the IDs that missed.
func (s *CacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error) {
	if len(driverIDs) == 0 {
		return make(map[string]*CachedDriver), nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(driverIDs))

	for _, id := range driverIDs {
		cmds[id] = pipe.Get(ctx, driverCachePrefix+id)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		// Missing keys surface per-command below; only report hard failures.
		return nil, driverIDs, err
	}

	result := make(map[string]*CachedDriver)
	var missing []string

	for id, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}

		var driver CachedDriver
		if err := json.Unmarshal(data, &driver); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &driver
	}

	return result, missing, nil
}

// AddAvailableDriver adds a driver to the tenant's availability set.
func (s *CacheStore) AddAvailableDriver(ctx context.Context, tenantID, driverID string) error {
	return s.client.SAdd(ctx, availableDriversKey(tenantID), driverID).Err()
}

// RemoveAvailableDriver removes a driver from the tenant's availability set.
func (s *CacheStore) RemoveAvailableDriver(ctx context.Context, tenantID, driverID string) error {
	return s.client.SRem(ctx, availableDriversKey(tenantID), driverID).Err()
}

// IsDriverAvailable checks if a driver is in the tenant's availability set.
func (s *CacheStore) IsDriverAvailable(ctx context.Context, tenantID, driverID string) (bool, error) {
	return s.client.SIsMember(ctx, availableDriversKey(tenantID), driverID).Result()
}
