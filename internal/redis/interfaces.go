package redis

import (
	"context"
	"time"
)

// LocationStoreInterface defines the interface for the driver geo index.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, tenantID, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, tenantID string, lat, lng, radiusKm float64, limit int) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, tenantID, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error)
	ReleaseDriverLock(ctx context.Context, driverID string) error
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseRideLock(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
