package tests

import (
	"context"
	"fmt"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/service"
)

const (
	surgeTenant = "tenant-1"
	surgeLat    = 60.1699
	surgeLng    = 24.9384
)

// seedSurgeArea populates the mocks with the given supply and demand at the
// probe location.
func seedSurgeArea(locationStore *MockLocationStore, rideRepo *MockRideRepository, supply, demand int) {
	for i := 0; i < supply; i++ {
		locationStore.AddDriverLocation(surgeTenant, redis.DriverLocation{
			DriverID: fmt.Sprintf("driver-%d", i),
			Lat:      surgeLat,
			Lng:      surgeLng,
		})
	}
	for i := 0; i < demand; i++ {
		rideRepo.AddRide(&domain.Ride{
			ID:        fmt.Sprintf("ride-%d", i),
			TenantID:  surgeTenant,
			Status:    domain.RideStatusSearching,
			PickupLat: surgeLat,
			PickupLng: surgeLng,
		})
	}
}

func TestSurgeMultiplierTiers(t *testing.T) {
	cases := []struct {
		name   string
		supply int
		demand int
		want   float64
	}{
		{"balanced", 10, 5, 1.0},
		{"just below first tier", 10, 11, 1.0},
		{"first tier", 10, 12, 1.25},
		{"second tier", 10, 15, 1.5},
		{"third tier", 10, 20, 2.0},
		{"extreme tier capped", 10, 30, 3.0},
		{"beyond extreme still capped", 10, 50, 3.0},
		{"no supply with demand", 0, 3, 3.0},
		{"no supply no demand", 0, 0, 1.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			locationStore := NewMockLocationStore()
			rideRepo := NewMockRideRepository()
			seedSurgeArea(locationStore, rideRepo, tc.supply, tc.demand)

			svc := service.NewSurgeService(locationStore, rideRepo, service.DefaultSurgeConfig(), nil)

			got := svc.Multiplier(context.Background(), surgeTenant, surgeLat, surgeLng)
			if got != tc.want {
				t.Errorf("supply=%d demand=%d: multiplier = %v, want %v", tc.supply, tc.demand, got, tc.want)
			}
		})
	}
}

func TestSurgeFailsOpenOnSupplyError(t *testing.T) {
	locationStore := NewMockLocationStore()
	locationStore.FindNearbyDriversError = ErrMockTimeout
	rideRepo := NewMockRideRepository()
	for i := 0; i < 5; i++ {
		rideRepo.AddRide(&domain.Ride{
			ID:        fmt.Sprintf("ride-%d", i),
			TenantID:  surgeTenant,
			Status:    domain.RideStatusSearching,
			PickupLat: surgeLat,
			PickupLng: surgeLng,
		})
	}

	svc := service.NewSurgeService(locationStore, rideRepo, service.DefaultSurgeConfig(), nil)

	// Supply lookup failure assumes a healthy pool instead of surging.
	got := svc.Multiplier(context.Background(), surgeTenant, surgeLat, surgeLng)
	if got != 1.0 {
		t.Errorf("multiplier = %v, want fail-open 1.0", got)
	}
}

func TestSurgeIgnoresDistantDemand(t *testing.T) {
	locationStore := NewMockLocationStore()
	rideRepo := NewMockRideRepository()
	seedSurgeArea(locationStore, rideRepo, 1, 0)

	// Open rides far outside the surge radius must not count as demand.
	for i := 0; i < 10; i++ {
		rideRepo.AddRide(&domain.Ride{
			ID:        fmt.Sprintf("far-ride-%d", i),
			TenantID:  surgeTenant,
			Status:    domain.RideStatusSearching,
			PickupLat: 61.4978, // Tampere, ~160 km away
			PickupLng: 23.7610,
		})
	}

	svc := service.NewSurgeService(locationStore, rideRepo, service.DefaultSurgeConfig(), nil)

	got := svc.Multiplier(context.Background(), surgeTenant, surgeLat, surgeLng)
	if got != 1.0 {
		t.Errorf("multiplier = %v, want 1.0 when demand is outside the radius", got)
	}
}

func TestSurgeIgnoresCompletedRides(t *testing.T) {
	locationStore := NewMockLocationStore()
	rideRepo := NewMockRideRepository()
	seedSurgeArea(locationStore, rideRepo, 1, 0)

	for i := 0; i < 10; i++ {
		rideRepo.AddRide(&domain.Ride{
			ID:        fmt.Sprintf("done-ride-%d", i),
			TenantID:  surgeTenant,
			Status:    domain.RideStatusCompleted,
			PickupLat: surgeLat,
			PickupLng: surgeLng,
		})
	}

	svc := service.NewSurgeService(locationStore, rideRepo, service.DefaultSurgeConfig(), nil)

	got := svc.Multiplier(context.Background(), surgeTenant, surgeLat, surgeLng)
	if got != 1.0 {
		t.Errorf("multiplier = %v, want 1.0 when open demand is zero", got)
	}
}
