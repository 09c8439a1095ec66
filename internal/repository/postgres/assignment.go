package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// AssignmentStore is the PostgreSQL implementation of
// repository.AssignmentStore. The status re-checks and the driver/ride
// mutations all happen inside one transaction, so at most one concurrent
// attempt can bind a driver to a ride.
type AssignmentStore struct {
	db *sql.DB
}

// NewAssignmentStore creates a new AssignmentStore.
func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

// AssignIfSearching binds the driver and their active vehicle to the ride.
// Returns repository.ErrConflict when the ride has left SEARCHING, the driver
// is no longer ONLINE, or the driver has no active vehicle.
func (s *AssignmentStore) AssignIfSearching(ctx context.Context, tenantID, rideID, driverID string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txDriverRepo := NewDriverRepositoryWithTx(tx)
	txRideRepo := NewRideRepositoryWithTx(tx)

	// Lock the vehicle row so a concurrent deactivation cannot slip between
	// the check and the assignment.
	var vehicleID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM vehicles WHERE driver_id = $1 AND active LIMIT 1 FOR UPDATE
	`, driverID).Scan(&vehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repository.ErrConflict
		}
		return "", err
	}

	// Claim the driver: only succeeds while they are still ONLINE.
	if err = txDriverRepo.UpdateStatusFrom(ctx, driverID, domain.DriverStatusOnline, domain.DriverStatusOnTrip); err != nil {
		return "", err
	}

	// Claim the ride: only succeeds while it is still SEARCHING.
	if err = txRideRepo.AssignIfSearching(ctx, tenantID, rideID, driverID, vehicleID); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}

	return vehicleID, nil
}

var _ repository.AssignmentStore = (*AssignmentStore)(nil)
