package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (id, tenant_id, name, phone, rating, status) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID, driver.TenantID, driver.Name, driver.Phone, driver.Rating, driver.Status)
	return err
}

// GetByID retrieves a driver by (tenant, id).
func (r *DriverRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Driver, error) {
	query := `
		SELECT id, tenant_id, COALESCE(name, ''), COALESCE(phone, ''), rating, status
		FROM drivers WHERE tenant_id = $1 AND id = $2
	`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, tenantID, id).Scan(
		&driver.ID,
		&driver.TenantID,
		&driver.Name,
		&driver.Phone,
		&driver.Rating,
		&driver.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateStatusFrom marks the driver with the new status only if it still has
// the expected one. Used inside the assignment transaction so two rides can
// never win the same driver.
func (r *DriverRepository) UpdateStatusFrom(ctx context.Context, id string, from, to domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $3 WHERE id = $1 AND status = $2`

	result, err := r.q.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	return nil
}

// CreateVehicle registers a vehicle for a driver.
func (r *DriverRepository) CreateVehicle(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, driver_id, tenant_id, type, make, model, color, plate, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		v.ID, v.DriverID, v.TenantID, v.Type, v.Make, v.Model, v.Color, v.Plate, v.Active)
	return err
}

// GetActiveVehicle retrieves the driver's active vehicle.
func (r *DriverRepository) GetActiveVehicle(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	query := `
		SELECT id, driver_id, tenant_id, type, COALESCE(make, ''), COALESCE(model, ''),
		       COALESCE(color, ''), COALESCE(plate, ''), active
		FROM vehicles WHERE driver_id = $1 AND active LIMIT 1
	`

	var v domain.Vehicle
	err := r.q.QueryRowContext(ctx, query, driverID).Scan(
		&v.ID,
		&v.DriverID,
		&v.TenantID,
		&v.Type,
		&v.Make,
		&v.Model,
		&v.Color,
		&v.Plate,
		&v.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &v, nil
}
