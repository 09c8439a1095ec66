package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

const lifecycleTenant = "tenant-1"

// stubDispatcher records dispatch triggers without doing any matching.
type stubDispatcher struct {
	calls int32
}

func (d *stubDispatcher) Dispatch(ctx context.Context, tenantID, rideID string) (*service.DispatchOutcome, error) {
	atomic.AddInt32(&d.calls, 1)
	return &service.DispatchOutcome{}, nil
}

func (d *stubDispatcher) waitForCall(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&d.calls) > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

type lifecycleFixture struct {
	rideRepo   *MockRideRepository
	driverRepo *MockDriverRepository
	tenantRepo *MockTenantRepository
	dispatcher *stubDispatcher
	publisher  *MockPublisher
	svc        *service.RideService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		rideRepo:   NewMockRideRepository(),
		driverRepo: NewMockDriverRepository(),
		tenantRepo: NewMockTenantRepository(),
		dispatcher: &stubDispatcher{},
		publisher:  NewMockPublisher(),
	}
	f.tenantRepo.SetPricing(&domain.PricingConfig{
		TenantID:      lifecycleTenant,
		BaseFare:      5.90,
		PerKmRate:     1.60,
		PerMinuteRate: 0.80,
		MinimumFare:   8.00,
		BookingFee:    1.00,
		VATRate:       0.135,
		Currency:      "EUR",
	})
	fareService := service.NewFareService(f.tenantRepo, nil, nil, nil)
	f.svc = service.NewRideService(f.rideRepo, f.driverRepo, f.tenantRepo,
		fareService, f.dispatcher, f.publisher, nil)
	return f
}

func validCreateRequest() service.CreateRideRequest {
	return service.CreateRideRequest{
		TenantID:   lifecycleTenant,
		RiderID:    "rider-1",
		PickupLat:  60.1699,
		PickupLng:  24.9384,
		DropoffLat: 60.1921,
		DropoffLng: 24.9458,
	}
}

func TestCreateRideAppliesDefaultsAndTriggersDispatch(t *testing.T) {
	f := newLifecycleFixture()

	ride, err := f.svc.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if ride.Status != domain.RideStatusSearching {
		t.Errorf("status = %s, want SEARCHING", ride.Status)
	}
	if ride.VehicleType != domain.VehicleTypeStandard {
		t.Errorf("vehicle type = %s, want default STANDARD", ride.VehicleType)
	}
	if ride.PassengerCount != 1 {
		t.Errorf("passenger count = %d, want default 1", ride.PassengerCount)
	}
	if ride.PaymentMethod != domain.PaymentMethodCash {
		t.Errorf("payment method = %s, want default CASH", ride.PaymentMethod)
	}
	if ride.Estimate.Total <= 0 {
		t.Errorf("estimate total = %v, want > 0", ride.Estimate.Total)
	}
	if f.rideRepo.GetRide(ride.ID) == nil {
		t.Error("ride not persisted")
	}
	if !f.dispatcher.waitForCall(time.Second) {
		t.Error("dispatch was not triggered")
	}
}

func TestCreateRideValidation(t *testing.T) {
	f := newLifecycleFixture()

	cases := []struct {
		name    string
		mutate  func(*service.CreateRideRequest)
		wantErr error
	}{
		{"missing tenant", func(r *service.CreateRideRequest) { r.TenantID = "" }, service.ErrInvalidTenantID},
		{"missing rider", func(r *service.CreateRideRequest) { r.RiderID = "" }, service.ErrInvalidRiderID},
		{"bad pickup latitude", func(r *service.CreateRideRequest) { r.PickupLat = 91 }, service.ErrInvalidPickupLocation},
		{"bad dropoff longitude", func(r *service.CreateRideRequest) { r.DropoffLng = -200 }, service.ErrInvalidDropoffLocation},
		{"unknown vehicle type", func(r *service.CreateRideRequest) { r.VehicleType = "HOVERCRAFT" }, service.ErrInvalidVehicleType},
		{"too many passengers", func(r *service.CreateRideRequest) { r.PassengerCount = 9 }, service.ErrInvalidPassengerCount},
		{"unknown payment method", func(r *service.CreateRideRequest) { r.PaymentMethod = "BARTER" }, service.ErrInvalidPaymentMethod},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			_, err := f.svc.CreateRide(context.Background(), req)
			if err != tc.wantErr {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateRideUnknownTenant(t *testing.T) {
	f := newLifecycleFixture()
	req := validCreateRequest()
	req.TenantID = "tenant-without-pricing"

	_, err := f.svc.CreateRide(context.Background(), req)
	if err != service.ErrInvalidTenant {
		t.Errorf("err = %v, want ErrInvalidTenant", err)
	}
}

func TestScheduledRideDefersDispatch(t *testing.T) {
	f := newLifecycleFixture()
	req := validCreateRequest()
	future := time.Now().Add(2 * time.Hour)
	req.ScheduledFor = &future

	ride, err := f.svc.CreateRide(context.Background(), req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if ride.Status != domain.RideStatusRequested {
		t.Errorf("status = %s, want REQUESTED for a scheduled ride", ride.Status)
	}

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&f.dispatcher.calls) != 0 {
		t.Error("scheduled ride dispatched immediately")
	}

	// Opening the window moves it into SEARCHING and dispatches.
	if err := f.svc.StartScheduled(context.Background(), lifecycleTenant, ride.ID); err != nil {
		t.Fatalf("start scheduled failed: %v", err)
	}
	if got := f.rideRepo.RideStatus(ride.ID); got != domain.RideStatusSearching {
		t.Errorf("status = %s, want SEARCHING", got)
	}
	if !f.dispatcher.waitForCall(time.Second) {
		t.Error("dispatch was not triggered after the window opened")
	}

	// A duplicate start loses the conditional update.
	if err := f.svc.StartScheduled(context.Background(), lifecycleTenant, ride.ID); err != service.ErrInvalidTransition {
		t.Errorf("second start err = %v, want ErrInvalidTransition", err)
	}
}

func (f *lifecycleFixture) addAssignedRide(id string) {
	f.driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		TenantID: lifecycleTenant,
		Status:   domain.DriverStatusOnTrip,
	})
	fareService := service.NewFareService(f.tenantRepo, nil, nil, nil)
	cfg, _ := f.tenantRepo.GetPricing(context.Background(), lifecycleTenant)
	f.rideRepo.AddRide(&domain.Ride{
		ID:          id,
		TenantID:    lifecycleTenant,
		RiderID:     "rider-1",
		DriverID:    "driver-1",
		VehicleID:   "veh-1",
		Status:      domain.RideStatusDriverAssigned,
		VehicleType: domain.VehicleTypeStandard,
		Estimate:    *fareService.Quote(cfg, domain.VehicleTypeStandard, 2000, 360, 1.0),
	})
}

func TestRideStatusHappyPath(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	steps := []domain.RideStatus{
		domain.RideStatusDriverArriving,
		domain.RideStatusArrived,
		domain.RideStatusInProgress,
	}
	for _, next := range steps {
		ride, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
			TenantID:  lifecycleTenant,
			RideID:    "ride-1",
			NewStatus: next,
		})
		if err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
		if ride.Status != next {
			t.Fatalf("status = %s, want %s", ride.Status, next)
		}
	}

	ride, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		TenantID:        lifecycleTenant,
		RideID:          "ride-1",
		NewStatus:       domain.RideStatusCompleted,
		ActualDistanceM: 2400,
		ActualDurationS: 420,
	})
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}

	if ride.Final == nil {
		t.Fatal("final fare not computed")
	}
	if ride.Final.DistanceMeters != 2400 || ride.Final.DurationSeconds != 420 {
		t.Errorf("final metrics = %v/%v, want actuals 2400/420", ride.Final.DistanceMeters, ride.Final.DurationSeconds)
	}
	if ride.CompletedAt.IsZero() {
		t.Error("completed-at not set")
	}

	// Completion returns the driver to the pool.
	if got := f.driverRepo.GetDriver("driver-1").Status; got != domain.DriverStatusOnline {
		t.Errorf("driver status = %s, want ONLINE after completion", got)
	}
	if !f.publisher.WaitForKind("ride.completed", time.Second) {
		t.Error("ride.completed event not published")
	}
}

func TestRideStatusSkippingStatesRejected(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	_, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		TenantID:  lifecycleTenant,
		RideID:    "ride-1",
		NewStatus: domain.RideStatusInProgress,
	})
	if err != service.ErrInvalidTransition {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if got := f.rideRepo.RideStatus("ride-1"); got != domain.RideStatusDriverAssigned {
		t.Errorf("status = %s, want unchanged DRIVER_ASSIGNED", got)
	}
}

func TestCompletionWithMissingActualsFallsBackToEstimate(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	for _, next := range []domain.RideStatus{
		domain.RideStatusDriverArriving, domain.RideStatusArrived, domain.RideStatusInProgress,
	} {
		if _, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
			TenantID: lifecycleTenant, RideID: "ride-1", NewStatus: next,
		}); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	ride, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		TenantID:  lifecycleTenant,
		RideID:    "ride-1",
		NewStatus: domain.RideStatusCompleted,
	})
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if ride.Final.DistanceMeters != ride.Estimate.DistanceMeters {
		t.Errorf("final distance = %v, want estimate %v", ride.Final.DistanceMeters, ride.Estimate.DistanceMeters)
	}
}

func TestCompletionTaximeterOverride(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	for _, next := range []domain.RideStatus{
		domain.RideStatusDriverArriving, domain.RideStatusArrived, domain.RideStatusInProgress,
	} {
		if _, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
			TenantID: lifecycleTenant, RideID: "ride-1", NewStatus: next,
		}); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	ride, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		TenantID:        lifecycleTenant,
		RideID:          "ride-1",
		NewStatus:       domain.RideStatusCompleted,
		ActualDistanceM: 2400,
		ActualDurationS: 420,
		Taximeter: &domain.TaximeterReading{
			Fare:         19.80,
			SerialNumber: "TMX-7",
		},
	})
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if ride.Final.Total != 19.80 {
		t.Errorf("final total = %v, want taximeter 19.80", ride.Final.Total)
	}
	if ride.Taximeter == nil || ride.Taximeter.SerialNumber != "TMX-7" {
		t.Error("taximeter reading not recorded on the ride")
	}
}

func TestCancelRecordsActor(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	ride, err := f.svc.CancelRide(context.Background(), service.CancelRideRequest{
		TenantID:    lifecycleTenant,
		RideID:      "ride-1",
		CancelledBy: "rider-1",
		Reason:      "changed my mind",
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if ride.Status != domain.RideStatusCancelledByRider {
		t.Errorf("status = %s, want CANCELLED_BY_RIDER", ride.Status)
	}
	if ride.CancelledBy != "rider-1" || ride.CancelReason != "changed my mind" {
		t.Errorf("cancellation metadata = %q/%q, want actor and reason recorded", ride.CancelledBy, ride.CancelReason)
	}
	if ride.CancelledAt.IsZero() {
		t.Error("cancelled-at not set")
	}

	// Cancellation frees the assigned driver.
	if got := f.driverRepo.GetDriver("driver-1").Status; got != domain.DriverStatusOnline {
		t.Errorf("driver status = %s, want ONLINE after cancellation", got)
	}
	if !f.publisher.WaitForKind("ride.cancelled", time.Second) {
		t.Error("ride.cancelled event not published")
	}
}

func TestCancelByDriver(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	ride, err := f.svc.CancelRide(context.Background(), service.CancelRideRequest{
		TenantID:    lifecycleTenant,
		RideID:      "ride-1",
		CancelledBy: "driver-1",
		ByDriver:    true,
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if ride.Status != domain.RideStatusCancelledByDriver {
		t.Errorf("status = %s, want CANCELLED_BY_DRIVER", ride.Status)
	}
}

func TestCancelInProgressRejected(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	for _, next := range []domain.RideStatus{
		domain.RideStatusDriverArriving, domain.RideStatusArrived, domain.RideStatusInProgress,
	} {
		if _, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
			TenantID: lifecycleTenant, RideID: "ride-1", NewStatus: next,
		}); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	_, err := f.svc.CancelRide(context.Background(), service.CancelRideRequest{
		TenantID:    lifecycleTenant,
		RideID:      "ride-1",
		CancelledBy: "rider-1",
	})
	if err != service.ErrRideNotCancellable {
		t.Errorf("err = %v, want ErrRideNotCancellable", err)
	}
}

// raceRideRepo runs a hook once, right after the first read hands out its
// copy, so a transition can be validated against a row that a concurrent
// writer is about to move.
type raceRideRepo struct {
	*MockRideRepository
	once    sync.Once
	between func()
}

func (r *raceRideRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Ride, error) {
	ride, err := r.MockRideRepository.GetByID(ctx, tenantID, id)
	r.once.Do(r.between)
	return ride, err
}

func TestCancelDuringAssignmentKeepsDriverBound(t *testing.T) {
	rideRepo := NewMockRideRepository()
	driverRepo := NewMockDriverRepository()
	tenantRepo := NewMockTenantRepository()
	publisher := NewMockPublisher()
	tenantRepo.SetPricing(&domain.PricingConfig{
		TenantID: lifecycleTenant, BaseFare: 5.90, PerKmRate: 1.60,
		PerMinuteRate: 0.80, MinimumFare: 8.00, Currency: "EUR",
	})

	driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		TenantID: lifecycleTenant,
		Status:   domain.DriverStatusOnline,
	})
	driverRepo.AddVehicle(&domain.Vehicle{
		ID:       "veh-1",
		DriverID: "driver-1",
		TenantID: lifecycleTenant,
		Type:     domain.VehicleTypeStandard,
		Active:   true,
	})
	rideRepo.AddRide(&domain.Ride{
		ID:          "ride-1",
		TenantID:    lifecycleTenant,
		RiderID:     "rider-1",
		Status:      domain.RideStatusSearching,
		VehicleType: domain.VehicleTypeStandard,
	})

	// An assignment commits between the cancel's read and its write. The
	// conditional write must lose, and the retry must cancel the assigned
	// ride with its driver binding intact.
	assigner := NewMockAssignmentStore(rideRepo, driverRepo)
	repo := &raceRideRepo{MockRideRepository: rideRepo}
	repo.between = func() {
		if _, err := assigner.AssignIfSearching(context.Background(), lifecycleTenant, "ride-1", "driver-1"); err != nil {
			t.Errorf("concurrent assignment failed: %v", err)
		}
	}

	fareService := service.NewFareService(tenantRepo, nil, nil, nil)
	svc := service.NewRideService(repo, driverRepo, tenantRepo,
		fareService, &stubDispatcher{}, publisher, nil)

	ride, err := svc.CancelRide(context.Background(), service.CancelRideRequest{
		TenantID:    lifecycleTenant,
		RideID:      "ride-1",
		CancelledBy: "rider-1",
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if ride.Status != domain.RideStatusCancelledByRider {
		t.Errorf("status = %s, want CANCELLED_BY_RIDER", ride.Status)
	}
	if ride.DriverID != "driver-1" {
		t.Errorf("driver binding = %q, want driver-1 preserved", ride.DriverID)
	}
	if got := rideRepo.GetRide("ride-1").DriverID; got != "driver-1" {
		t.Errorf("persisted driver binding = %q, want driver-1", got)
	}
	if got := driverRepo.GetDriver("driver-1").Status; got != domain.DriverStatusOnline {
		t.Errorf("driver status = %s, want ONLINE after losing the ride", got)
	}
}

func TestRideTenantIsolation(t *testing.T) {
	f := newLifecycleFixture()
	f.addAssignedRide("ride-1")

	if _, err := f.svc.GetRide(context.Background(), "tenant-2", "ride-1"); err != service.ErrRideNotFound {
		t.Errorf("get err = %v, want ErrRideNotFound for foreign tenant", err)
	}

	_, err := f.svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		TenantID:  "tenant-2",
		RideID:    "ride-1",
		NewStatus: domain.RideStatusDriverArriving,
	})
	if err != service.ErrRideNotFound {
		t.Errorf("update err = %v, want ErrRideNotFound for foreign tenant", err)
	}
	if got := f.rideRepo.RideStatus("ride-1"); got != domain.RideStatusDriverAssigned {
		t.Errorf("status = %s, want untouched DRIVER_ASSIGNED", got)
	}
}
