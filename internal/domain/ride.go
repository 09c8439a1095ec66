package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested          RideStatus = "REQUESTED"
	RideStatusSearching          RideStatus = "SEARCHING"
	RideStatusDriverAssigned     RideStatus = "DRIVER_ASSIGNED"
	RideStatusDriverArriving     RideStatus = "DRIVER_ARRIVING"
	RideStatusArrived            RideStatus = "ARRIVED"
	RideStatusInProgress         RideStatus = "IN_PROGRESS"
	RideStatusCompleted          RideStatus = "COMPLETED"
	RideStatusCancelledByRider   RideStatus = "CANCELLED_BY_RIDER"
	RideStatusCancelledByDriver  RideStatus = "CANCELLED_BY_DRIVER"
	RideStatusNoDriversAvailable RideStatus = "NO_DRIVERS_AVAILABLE"
)

// rideTransitions maps each status to the forward transitions allowed from it.
// Cancellations are handled separately: they are allowed from any state prior
// to IN_PROGRESS.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:      {RideStatusSearching},
	RideStatusSearching:      {RideStatusDriverAssigned, RideStatusNoDriversAvailable},
	RideStatusDriverAssigned: {RideStatusDriverArriving},
	RideStatusDriverArriving: {RideStatusArrived},
	RideStatusArrived:        {RideStatusInProgress},
	RideStatusInProgress:     {RideStatusCompleted},
}

// IsTerminal reports whether no further transitions are allowed.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelledByRider,
		RideStatusCancelledByDriver, RideStatusNoDriversAvailable:
		return true
	}
	return false
}

// IsCancellation reports whether the status records a rider or driver cancel.
func (s RideStatus) IsCancellation() bool {
	return s == RideStatusCancelledByRider || s == RideStatusCancelledByDriver
}

// CanCancel reports whether a ride in this status may still be cancelled.
// Once the trip is in progress cancellation is no longer possible.
func (s RideStatus) CanCancel() bool {
	return !s.IsTerminal() && s != RideStatusInProgress
}

// CanTransitionTo reports whether the transition s -> next is valid. Forward
// transitions are only valid from their immediate predecessor.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	if next.IsCancellation() {
		return s.CanCancel()
	}
	for _, allowed := range rideTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodWallet  PaymentMethod = "WALLET"
	PaymentMethodInvoice PaymentMethod = "INVOICE"
)

// TaximeterReading is the certified meter output reported at completion.
// When present its fare is the legal fare of record and overrides any
// computed amount.
type TaximeterReading struct {
	Fare          float64
	SerialNumber  string
	ReceiptNumber string
}

// Ride represents a ride request in the system. Every ride belongs to exactly
// one tenant and is only ever read or mutated with a tenant-scoped predicate.
type Ride struct {
	ID             string
	TenantID       string
	RiderID        string
	DriverID       string // empty until a driver is assigned
	VehicleID      string
	Status         RideStatus
	VehicleType    VehicleType
	PickupLat      float64
	PickupLng      float64
	PickupAddress  string
	DropoffLat     float64
	DropoffLng     float64
	DropoffAddress string
	PassengerCount int
	PaymentMethod  PaymentMethod

	Scheduled    bool
	ScheduledFor time.Time

	// Estimate is computed once at creation and immutable afterwards.
	Estimate FareEstimate

	// Final fare fields, populated at completion.
	Final           *FareEstimate
	ActualDistanceM float64
	ActualDurationS float64
	Taximeter       *TaximeterReading

	CancelledAt  time.Time
	CancelledBy  string
	CancelReason string

	CreatedAt   time.Time
	CompletedAt time.Time
}
