package service

import "errors"

var (
	// ErrInvalidTenant is returned when a tenant has no pricing configuration.
	ErrInvalidTenant = errors.New("tenant pricing config not found")

	// ErrRideNotFound is returned when no ride matches (id, tenant).
	ErrRideNotFound = errors.New("ride not found")

	// ErrInvalidTransition is returned for out-of-order status updates.
	ErrInvalidTransition = errors.New("invalid ride status transition")

	// ErrRideNotSearching is returned when dispatch is triggered for a ride
	// that already left the SEARCHING state (duplicate trigger guard).
	ErrRideNotSearching = errors.New("ride not in searching state")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidTenantID is returned when tenant ID is empty.
	ErrInvalidTenantID = errors.New("invalid tenant id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidVehicleType is returned for an unknown vehicle type.
	ErrInvalidVehicleType = errors.New("invalid vehicle type")

	// ErrInvalidPassengerCount is returned when the passenger count is out of range.
	ErrInvalidPassengerCount = errors.New("invalid passenger count")

	// ErrInvalidPaymentMethod is returned when payment method is invalid.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrRideNotCancellable is returned when a ride is past the point of
	// cancellation.
	ErrRideNotCancellable = errors.New("ride cannot be cancelled in current state")
)
