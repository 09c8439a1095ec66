// Package events defines the closed set of dispatch events published for
// downstream consumers (notifications, real-time dashboards). Publication is
// fire-and-forget: the dispatch core never waits on delivery.
package events

import "context"

// Event is implemented by exactly the event variants below.
type Event interface {
	Kind() string
}

// RideAssigned is emitted when a driver is bound to a ride.
type RideAssigned struct {
	RideID    string  `json:"ride_id"`
	TenantID  string  `json:"tenant_id"`
	RiderID   string  `json:"rider_id"`
	DriverID  string  `json:"driver_id"`
	VehicleID string  `json:"vehicle_id"`
	ETASec    float64 `json:"eta_seconds,omitempty"`
}

// Kind implements Event.
func (RideAssigned) Kind() string { return "ride.assigned" }

// RideCompleted is emitted when a ride reaches its terminal completed state.
type RideCompleted struct {
	RideID    string  `json:"ride_id"`
	TenantID  string  `json:"tenant_id"`
	RiderID   string  `json:"rider_id"`
	DriverID  string  `json:"driver_id"`
	TotalFare float64 `json:"total_fare"`
	Currency  string  `json:"currency"`
}

// Kind implements Event.
func (RideCompleted) Kind() string { return "ride.completed" }

// RideCancelled is emitted when a rider or driver cancels a ride.
type RideCancelled struct {
	RideID      string `json:"ride_id"`
	TenantID    string `json:"tenant_id"`
	RiderID     string `json:"rider_id"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// Kind implements Event.
func (RideCancelled) Kind() string { return "ride.cancelled" }

// NoDriversAvailable is emitted when dispatch exhausts all candidates.
type NoDriversAvailable struct {
	RideID   string `json:"ride_id"`
	TenantID string `json:"tenant_id"`
	RiderID  string `json:"rider_id"`
}

// Kind implements Event.
func (NoDriversAvailable) Kind() string { return "ride.no_drivers_available" }

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

var _ Publisher = NopPublisher{}
