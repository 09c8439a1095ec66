package tests

import (
	"context"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/service"
)

const presenceTenant = "tenant-1"

func newDriverServiceFixture() (*service.DriverService, *MockDriverRepository, *MockLocationStore) {
	locations := NewMockLocationStore()
	driverRepo := NewMockDriverRepository()
	svc := service.NewDriverService(locations, nil, driverRepo, nil)
	return svc, driverRepo, locations
}

func TestUpdateLocationFlipsOfflineDriverOnline(t *testing.T) {
	svc, driverRepo, locations := newDriverServiceFixture()
	driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		TenantID: presenceTenant,
		Status:   domain.DriverStatusOffline,
	})

	err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		TenantID: presenceTenant,
		DriverID: "driver-1",
		Lat:      60.17,
		Lng:      24.94,
	})
	if err != nil {
		t.Fatalf("update location failed: %v", err)
	}

	if got := driverRepo.GetDriver("driver-1").Status; got != domain.DriverStatusOnline {
		t.Errorf("driver status = %s, want ONLINE after first ping", got)
	}
	if !locations.HasLocation(presenceTenant, "driver-1") {
		t.Error("location not stored in the geo index")
	}
}

func TestUpdateLocationKeepsOnTripDriverStatus(t *testing.T) {
	svc, driverRepo, _ := newDriverServiceFixture()
	driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		TenantID: presenceTenant,
		Status:   domain.DriverStatusOnTrip,
	})

	err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		TenantID: presenceTenant,
		DriverID: "driver-1",
		Lat:      60.17,
		Lng:      24.94,
	})
	if err != nil {
		t.Fatalf("update location failed: %v", err)
	}

	if got := driverRepo.GetDriver("driver-1").Status; got != domain.DriverStatusOnTrip {
		t.Errorf("driver status = %s, want ON_TRIP to survive location pings", got)
	}
}

func TestUpdateLocationUnknownDriver(t *testing.T) {
	svc, _, _ := newDriverServiceFixture()

	err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		TenantID: presenceTenant,
		DriverID: "ghost",
		Lat:      60.17,
		Lng:      24.94,
	})
	if err != service.ErrInvalidDriverID {
		t.Errorf("err = %v, want ErrInvalidDriverID", err)
	}
}

func TestGetDriverUnknown(t *testing.T) {
	svc, _, _ := newDriverServiceFixture()

	if _, err := svc.GetDriver(context.Background(), presenceTenant, "ghost"); err != service.ErrInvalidDriverID {
		t.Errorf("err = %v, want ErrInvalidDriverID", err)
	}
}

func TestGetDriverForeignTenant(t *testing.T) {
	svc, driverRepo, _ := newDriverServiceFixture()
	driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		TenantID: presenceTenant,
		Status:   domain.DriverStatusOnline,
	})

	if _, err := svc.GetDriver(context.Background(), "tenant-2", "driver-1"); err != service.ErrInvalidDriverID {
		t.Errorf("err = %v, want ErrInvalidDriverID for foreign tenant", err)
	}
}

func TestSetDriverOfflineClearsLocation(t *testing.T) {
	svc, driverRepo, locations := newDriverServiceFixture()
	driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		TenantID: presenceTenant,
		Status:   domain.DriverStatusOnline,
	})
	locations.AddDriverLocation(presenceTenant, redis.DriverLocation{DriverID: "driver-1", Lat: 60.17, Lng: 24.94})

	if err := svc.SetDriverOffline(context.Background(), presenceTenant, "driver-1"); err != nil {
		t.Fatalf("set offline failed: %v", err)
	}

	if got := driverRepo.GetDriver("driver-1").Status; got != domain.DriverStatusOffline {
		t.Errorf("driver status = %s, want OFFLINE", got)
	}
	if locations.HasLocation(presenceTenant, "driver-1") {
		t.Error("location still present after going offline")
	}
}
