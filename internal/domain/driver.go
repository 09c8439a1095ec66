package domain

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "ONLINE"
	DriverStatusOffline DriverStatus = "OFFLINE"
	DriverStatusOnTrip  DriverStatus = "ON_TRIP"
)

// Driver represents a driver in the system.
type Driver struct {
	ID       string
	TenantID string
	Name     string
	Phone    string
	Rating   float64
	Status   DriverStatus
}

// CandidateDriver is a driver returned by nearby search, not yet committed to
// a ride. Candidates are ephemeral and recomputed per search.
type CandidateDriver struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceM  float64 // distance to pickup
	ETASeconds float64 // estimated time to pickup
	Rating     float64
	Vehicle    Vehicle
}
