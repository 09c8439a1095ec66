package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `
	id, tenant_id, rider_id, driver_id, vehicle_id, status, vehicle_type,
	pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
	passenger_count, payment_method, scheduled, scheduled_for,
	est_distance_m, est_duration_s, base_fare, distance_fare, time_fare, booking_fee,
	surge_multiplier, surge_amount, subtotal, vat_amount, total, currency,
	actual_distance_m, actual_duration_s, final_total, final_vat,
	taximeter_fare, taximeter_serial, taximeter_receipt,
	cancelled_at, cancelled_by, cancel_reason, created_at, completed_at`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
		        $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41)
	`

	_, err := r.q.ExecContext(ctx, query, rideArgs(ride)...)
	return err
}

// GetByID retrieves a ride by (tenant, id).
func (r *RideRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE tenant_id = $1 AND id = $2`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// GetOpenByTenant retrieves the tenant's rides still awaiting a driver.
func (r *RideRepository) GetOpenByTenant(ctx context.Context, tenantID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + `
		FROM rides
		WHERE tenant_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 500`

	rows, err := r.q.QueryContext(ctx, query, tenantID, domain.RideStatusRequested, domain.RideStatusSearching)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Update writes the ride's mutable fields. The status predicate is the
// compare-and-swap: a concurrent transition makes the update match no row.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride, fromStatus domain.RideStatus) error {
	query := `
		UPDATE rides SET
			driver_id = $3, vehicle_id = $4, status = $5,
			actual_distance_m = $6, actual_duration_s = $7, final_total = $8, final_vat = $9,
			taximeter_fare = $10, taximeter_serial = $11, taximeter_receipt = $12,
			cancelled_at = $13, cancelled_by = $14, cancel_reason = $15, completed_at = $16
		WHERE tenant_id = $1 AND id = $2 AND status = $17
	`

	var (
		finalTotal, finalVAT           sql.NullFloat64
		taxiFare                       sql.NullFloat64
		taxiSerial, taxiReceipt        sql.NullString
		cancelledAt, completedAt       sql.NullTime
		cancelledBy, cancelReason      sql.NullString
		actualDistance, actualDuration sql.NullFloat64
	)
	if ride.Final != nil {
		finalTotal = sql.NullFloat64{Float64: ride.Final.Total, Valid: true}
		finalVAT = sql.NullFloat64{Float64: ride.Final.VATAmount, Valid: true}
		actualDistance = sql.NullFloat64{Float64: ride.ActualDistanceM, Valid: true}
		actualDuration = sql.NullFloat64{Float64: ride.ActualDurationS, Valid: true}
	}
	if ride.Taximeter != nil {
		taxiFare = sql.NullFloat64{Float64: ride.Taximeter.Fare, Valid: true}
		taxiSerial = sql.NullString{String: ride.Taximeter.SerialNumber, Valid: true}
		taxiReceipt = sql.NullString{String: ride.Taximeter.ReceiptNumber, Valid: true}
	}
	if !ride.CancelledAt.IsZero() {
		cancelledAt = sql.NullTime{Time: ride.CancelledAt, Valid: true}
	}
	if ride.CancelledBy != "" {
		cancelledBy = sql.NullString{String: ride.CancelledBy, Valid: true}
	}
	if ride.CancelReason != "" {
		cancelReason = sql.NullString{String: ride.CancelReason, Valid: true}
	}
	if !ride.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: ride.CompletedAt, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		ride.TenantID,
		ride.ID,
		nullString(ride.DriverID),
		nullString(ride.VehicleID),
		ride.Status,
		actualDistance,
		actualDuration,
		finalTotal,
		finalVAT,
		taxiFare,
		taxiSerial,
		taxiReceipt,
		cancelledAt,
		cancelledBy,
		cancelReason,
		completedAt,
		fromStatus,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Gone or moved by a concurrent writer. The caller's re-read
		// distinguishes the two.
		return repository.ErrConflict
	}

	return nil
}

// UpdateStatusFrom transitions the ride only if it is still in the expected
// status. The WHERE clause is the compare-and-swap.
func (r *RideRepository) UpdateStatusFrom(ctx context.Context, tenantID, id string, from, to domain.RideStatus) error {
	query := `UPDATE rides SET status = $4 WHERE tenant_id = $1 AND id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, tenantID, id, from, to)
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

// AssignIfSearching binds driver and vehicle to the ride only if it is still
// in SEARCHING state. Returns ErrConflict when the ride has moved on.
func (r *RideRepository) AssignIfSearching(ctx context.Context, tenantID, id, driverID, vehicleID string) error {
	query := `
		UPDATE rides SET driver_id = $4, vehicle_id = $5, status = $6
		WHERE tenant_id = $1 AND id = $2 AND status = $3
	`

	result, err := r.q.ExecContext(ctx, query,
		tenantID, id, domain.RideStatusSearching, driverID, vehicleID, domain.RideStatusDriverAssigned)
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

// rideArgs flattens a ride into the insert argument list, in rideColumns
// order.
func rideArgs(ride *domain.Ride) []any {
	var (
		scheduledFor             sql.NullTime
		finalTotal, finalVAT     sql.NullFloat64
		actualDist, actualDur    sql.NullFloat64
		taxiFare                 sql.NullFloat64
		taxiSerial, taxiReceipt  sql.NullString
		cancelledAt, completedAt sql.NullTime
	)
	if !ride.ScheduledFor.IsZero() {
		scheduledFor = sql.NullTime{Time: ride.ScheduledFor, Valid: true}
	}
	if ride.Final != nil {
		finalTotal = sql.NullFloat64{Float64: ride.Final.Total, Valid: true}
		finalVAT = sql.NullFloat64{Float64: ride.Final.VATAmount, Valid: true}
		actualDist = sql.NullFloat64{Float64: ride.ActualDistanceM, Valid: true}
		actualDur = sql.NullFloat64{Float64: ride.ActualDurationS, Valid: true}
	}
	if ride.Taximeter != nil {
		taxiFare = sql.NullFloat64{Float64: ride.Taximeter.Fare, Valid: true}
		taxiSerial = sql.NullString{String: ride.Taximeter.SerialNumber, Valid: true}
		taxiReceipt = sql.NullString{String: ride.Taximeter.ReceiptNumber, Valid: true}
	}
	if !ride.CancelledAt.IsZero() {
		cancelledAt = sql.NullTime{Time: ride.CancelledAt, Valid: true}
	}
	if !ride.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: ride.CompletedAt, Valid: true}
	}

	return []any{
		ride.ID,
		ride.TenantID,
		ride.RiderID,
		nullString(ride.DriverID),
		nullString(ride.VehicleID),
		ride.Status,
		ride.VehicleType,
		ride.PickupLat,
		ride.PickupLng,
		ride.PickupAddress,
		ride.DropoffLat,
		ride.DropoffLng,
		ride.DropoffAddress,
		ride.PassengerCount,
		ride.PaymentMethod,
		ride.Scheduled,
		scheduledFor,
		ride.Estimate.DistanceMeters,
		ride.Estimate.DurationSeconds,
		ride.Estimate.BaseFare,
		ride.Estimate.DistanceFare,
		ride.Estimate.TimeFare,
		ride.Estimate.BookingFee,
		ride.Estimate.SurgeMultiplier,
		ride.Estimate.SurgeAmount,
		ride.Estimate.Subtotal,
		ride.Estimate.VATAmount,
		ride.Estimate.Total,
		ride.Estimate.Currency,
		actualDist,
		actualDur,
		finalTotal,
		finalVAT,
		taxiFare,
		taxiSerial,
		taxiReceipt,
		cancelledAt,
		nullString(ride.CancelledBy),
		nullString(ride.CancelReason),
		ride.CreatedAt,
		completedAt,
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRide reads one ride row in rideColumns order.
func scanRide(row rowScanner) (*domain.Ride, error) {
	var (
		ride                      domain.Ride
		driverID, vehicleID       sql.NullString
		scheduledFor              sql.NullTime
		actualDist, actualDur     sql.NullFloat64
		finalTotal, finalVAT      sql.NullFloat64
		taxiFare                  sql.NullFloat64
		taxiSerial, taxiReceipt   sql.NullString
		cancelledAt, completedAt  sql.NullTime
		cancelledBy, cancelReason sql.NullString
	)

	err := row.Scan(
		&ride.ID,
		&ride.TenantID,
		&ride.RiderID,
		&driverID,
		&vehicleID,
		&ride.Status,
		&ride.VehicleType,
		&ride.PickupLat,
		&ride.PickupLng,
		&ride.PickupAddress,
		&ride.DropoffLat,
		&ride.DropoffLng,
		&ride.DropoffAddress,
		&ride.PassengerCount,
		&ride.PaymentMethod,
		&ride.Scheduled,
		&scheduledFor,
		&ride.Estimate.DistanceMeters,
		&ride.Estimate.DurationSeconds,
		&ride.Estimate.BaseFare,
		&ride.Estimate.DistanceFare,
		&ride.Estimate.TimeFare,
		&ride.Estimate.BookingFee,
		&ride.Estimate.SurgeMultiplier,
		&ride.Estimate.SurgeAmount,
		&ride.Estimate.Subtotal,
		&ride.Estimate.VATAmount,
		&ride.Estimate.Total,
		&ride.Estimate.Currency,
		&actualDist,
		&actualDur,
		&finalTotal,
		&finalVAT,
		&taxiFare,
		&taxiSerial,
		&taxiReceipt,
		&cancelledAt,
		&cancelledBy,
		&cancelReason,
		&ride.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.VehicleID = vehicleID.String
	if scheduledFor.Valid {
		ride.ScheduledFor = scheduledFor.Time
	}
	if finalTotal.Valid {
		ride.Final = &domain.FareEstimate{
			Total:           finalTotal.Float64,
			VATAmount:       finalVAT.Float64,
			SurgeMultiplier: ride.Estimate.SurgeMultiplier,
			Currency:        ride.Estimate.Currency,
			DistanceMeters:  actualDist.Float64,
			DurationSeconds: actualDur.Float64,
		}
		ride.ActualDistanceM = actualDist.Float64
		ride.ActualDurationS = actualDur.Float64
	}
	if taxiFare.Valid {
		ride.Taximeter = &domain.TaximeterReading{
			Fare:          taxiFare.Float64,
			SerialNumber:  taxiSerial.String,
			ReceiptNumber: taxiReceipt.String,
		}
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}
	ride.CancelledBy = cancelledBy.String
	ride.CancelReason = cancelReason.String
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}

	return &ride, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
