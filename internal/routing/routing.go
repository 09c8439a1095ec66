// Package routing defines the external road-routing contract. The fare
// estimator falls back to a geodesic estimate when no provider is configured
// or a provider call fails.
package routing

import "context"

// Route is the result of a road-network routing query.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Provider resolves real-world driving distance and duration between two
// points. Implementations may fail (network, quota); callers are expected to
// recover with a geodesic fallback.
type Provider interface {
	Route(ctx context.Context, originLat, originLng, destLat, destLng float64) (Route, error)
}
