package repository

import "context"

// AssignmentStore performs the atomic conditional assignment of one driver to
// one ride. Within a single isolated transaction the implementation must
// re-check that the ride is still SEARCHING and that the driver is ONLINE
// with an active vehicle, then bind driver and vehicle and set the ride to
// DRIVER_ASSIGNED together. Returns the bound vehicle id on success and
// ErrConflict when either check fails, in which case the caller moves on to
// the next candidate.
type AssignmentStore interface {
	AssignIfSearching(ctx context.Context, tenantID, rideID, driverID string) (vehicleID string, err error)
}
