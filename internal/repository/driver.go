package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for drivers and their
// vehicles.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by (tenant, id).
	GetByID(ctx context.Context, tenantID, id string) (*domain.Driver, error)

	// UpdateStatus updates the status of a driver.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error

	// CreateVehicle registers a vehicle for a driver.
	CreateVehicle(ctx context.Context, vehicle *domain.Vehicle) error

	// GetActiveVehicle retrieves the driver's active vehicle. Returns
	// ErrNotFound when the driver has none.
	GetActiveVehicle(ctx context.Context, driverID string) (*domain.Vehicle, error)
}
