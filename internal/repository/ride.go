package repository

import (
	"context"

	"dispatch/internal/domain"
)

// RideRepository defines the persistence operations for rides. Reads and
// mutations other than Create are tenant-scoped: a ride id from another
// tenant behaves as if it did not exist.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by (tenant, id).
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ride, error)

	// GetOpenByTenant retrieves rides still awaiting a driver (REQUESTED or
	// SEARCHING), used by the surge calculator as the demand signal.
	GetOpenByTenant(ctx context.Context, tenantID string) ([]*domain.Ride, error)

	// Update writes the ride's mutable fields, conditional on the ride
	// still being in the status it was read at. Returns ErrConflict when a
	// concurrent writer moved the ride first; callers re-read and
	// re-validate.
	Update(ctx context.Context, ride *domain.Ride, fromStatus domain.RideStatus) error

	// UpdateStatusFrom transitions a ride from one status to another only if
	// it is still in the expected status. Returns ErrConflict when the
	// conditional update matched no row.
	UpdateStatusFrom(ctx context.Context, tenantID, id string, from, to domain.RideStatus) error
}
