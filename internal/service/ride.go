package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/repository"
)

// dispatchTimeout bounds one asynchronous dispatch pass.
const dispatchTimeout = 60 * time.Second

// RideService manages the ride lifecycle: creation with an upfront fare
// estimate, the status state machine, cancellation and completion with the
// final fare.
type RideService struct {
	rideRepo    repository.RideRepository
	driverRepo  repository.DriverRepository
	tenantRepo  repository.TenantRepository
	fareService *FareService
	dispatcher  Dispatcher
	publisher   events.Publisher
	logger      *zap.Logger
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	tenantRepo repository.TenantRepository,
	fareService *FareService,
	dispatcher Dispatcher,
	publisher events.Publisher,
	logger *zap.Logger,
) *RideService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RideService{
		rideRepo:    rideRepo,
		driverRepo:  driverRepo,
		tenantRepo:  tenantRepo,
		fareService: fareService,
		dispatcher:  dispatcher,
		publisher:   publisher,
		logger:      logger,
	}
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	TenantID       string
	RiderID        string
	PickupLat      float64
	PickupLng      float64
	PickupAddress  string
	DropoffLat     float64
	DropoffLng     float64
	DropoffAddress string
	VehicleType    domain.VehicleType // empty defaults to STANDARD
	PassengerCount int                // 0 defaults to 1
	PaymentMethod  domain.PaymentMethod
	ScheduledFor   *time.Time // nil means dispatch immediately
}

// CreateRide estimates the fare, persists the ride and triggers dispatch
// asynchronously. The caller gets the estimate immediately; assignment is
// reported through ride status and events. Scheduled rides are persisted as
// REQUESTED and not auto-dispatched.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := s.validateCreateRequest(&req); err != nil {
		return nil, err
	}

	estimate, err := s.fareService.Estimate(ctx, req.TenantID,
		req.PickupLat, req.PickupLng, req.DropoffLat, req.DropoffLng, req.VehicleType)
	if err != nil {
		return nil, err
	}

	status := domain.RideStatusSearching
	scheduled := false
	var scheduledFor time.Time
	if req.ScheduledFor != nil && req.ScheduledFor.After(time.Now()) {
		status = domain.RideStatusRequested
		scheduled = true
		scheduledFor = *req.ScheduledFor
	}

	ride := &domain.Ride{
		ID:             uuid.New().String(),
		TenantID:       req.TenantID,
		RiderID:        req.RiderID,
		Status:         status,
		VehicleType:    req.VehicleType,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		PickupAddress:  req.PickupAddress,
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,
		DropoffAddress: req.DropoffAddress,
		PassengerCount: req.PassengerCount,
		PaymentMethod:  req.PaymentMethod,
		Scheduled:      scheduled,
		ScheduledFor:   scheduledFor,
		Estimate:       *estimate,
		CreatedAt:      time.Now(),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	if status == domain.RideStatusSearching {
		s.triggerDispatch(ride.TenantID, ride.ID)
	}

	return ride, nil
}

// StartScheduled moves a scheduled ride from REQUESTED into SEARCHING when
// its window opens and triggers dispatch.
func (s *RideService) StartScheduled(ctx context.Context, tenantID, rideID string) error {
	if rideID == "" {
		return ErrInvalidRideID
	}

	err := s.rideRepo.UpdateStatusFrom(ctx, tenantID, rideID,
		domain.RideStatusRequested, domain.RideStatusSearching)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidTransition
		}
		return err
	}

	s.triggerDispatch(tenantID, rideID)
	return nil
}

// triggerDispatch runs one dispatch pass in the background, detached from
// the request context. Dispatch terminates every path in a well-defined ride
// status, so a failed pass only needs logging.
func (s *RideService) triggerDispatch(tenantID, rideID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if _, err := s.dispatcher.Dispatch(ctx, tenantID, rideID); err != nil &&
			!errors.Is(err, ErrRideNotSearching) {
			s.logger.Error("dispatch failed",
				zap.String("tenant_id", tenantID),
				zap.String("ride_id", rideID),
				zap.Error(err))
		}
	}()
}

// GetRide retrieves a ride by (tenant, id).
func (s *RideService) GetRide(ctx context.Context, tenantID, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, tenantID, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	return ride, nil
}

// UpdateStatusRequest contains the parameters for a status transition.
// The actual trip metrics and taximeter reading only apply to COMPLETED;
// actor and reason only apply to cancellations.
type UpdateStatusRequest struct {
	TenantID  string
	RideID    string
	NewStatus domain.RideStatus

	ActualDistanceM float64
	ActualDurationS float64
	Taximeter       *domain.TaximeterReading

	CancelledBy  string
	CancelReason string
}

// UpdateStatus applies one transition of the ride state machine. Transitions
// are only valid from their immediate predecessor; cancellations are valid
// from any state prior to IN_PROGRESS. Completion computes the final fare.
// The write is conditional on the status the transition was validated
// against: losing that race re-reads and re-validates, so a cancellation
// interleaving with an assignment sees the bound driver and releases them
// instead of overwriting the binding.
func (s *RideService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*domain.Ride, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}

	for attempt := 0; attempt < 3; attempt++ {
		ride, err := s.rideRepo.GetByID(ctx, req.TenantID, req.RideID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRideNotFound
			}
			return nil, err
		}

		if !ride.Status.CanTransitionTo(req.NewStatus) {
			if req.NewStatus.IsCancellation() {
				return nil, ErrRideNotCancellable
			}
			return nil, ErrInvalidTransition
		}

		prev := ride.Status

		switch {
		case req.NewStatus == domain.RideStatusCompleted:
			if err := s.complete(ctx, ride, &req); err != nil {
				return nil, err
			}
		case req.NewStatus.IsCancellation():
			s.cancel(ctx, ride, &req)
		default:
			ride.Status = req.NewStatus
		}

		if err := s.rideRepo.Update(ctx, ride, prev); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				s.logger.Info("ride moved during transition, retrying",
					zap.String("ride_id", ride.ID),
					zap.String("from", string(prev)),
					zap.String("to", string(req.NewStatus)))
				continue
			}
			return nil, err
		}

		s.afterTransition(ride)
		return ride, nil
	}

	return nil, repository.ErrConflict
}

// complete fills in the final fare from actual trip metrics, with the
// taximeter reading overriding the computed total when present.
func (s *RideService) complete(ctx context.Context, ride *domain.Ride, req *UpdateStatusRequest) error {
	cfg, err := s.tenantRepo.GetPricing(ctx, ride.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidTenant
		}
		return err
	}

	distanceM := req.ActualDistanceM
	durationS := req.ActualDurationS
	if distanceM <= 0 {
		distanceM = ride.Estimate.DistanceMeters
	}
	if durationS <= 0 {
		durationS = ride.Estimate.DurationSeconds
	}

	ride.Status = domain.RideStatusCompleted
	ride.ActualDistanceM = distanceM
	ride.ActualDurationS = durationS
	ride.Taximeter = req.Taximeter
	ride.Final = s.fareService.Finalize(cfg, ride, distanceM, durationS, req.Taximeter)
	ride.CompletedAt = time.Now()
	return nil
}

// cancel records the cancellation metadata. No fare is charged.
func (s *RideService) cancel(ctx context.Context, ride *domain.Ride, req *UpdateStatusRequest) {
	ride.Status = req.NewStatus
	ride.CancelledAt = time.Now()
	ride.CancelledBy = req.CancelledBy
	ride.CancelReason = req.CancelReason
}

// afterTransition releases the driver on terminal transitions and publishes
// the matching event, fire-and-forget.
func (s *RideService) afterTransition(ride *domain.Ride) {
	var ev events.Event

	switch {
	case ride.Status == domain.RideStatusCompleted:
		ev = events.RideCompleted{
			RideID:    ride.ID,
			TenantID:  ride.TenantID,
			RiderID:   ride.RiderID,
			DriverID:  ride.DriverID,
			TotalFare: ride.Final.Total,
			Currency:  ride.Final.Currency,
		}
	case ride.Status.IsCancellation():
		ev = events.RideCancelled{
			RideID:      ride.ID,
			TenantID:    ride.TenantID,
			RiderID:     ride.RiderID,
			CancelledBy: ride.CancelledBy,
			Reason:      ride.CancelReason,
		}
	default:
		return
	}

	s.releaseDriver(ride.DriverID)

	go func(ev events.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("event publish failed", zap.String("kind", ev.Kind()), zap.Error(err))
		}
	}(ev)
}

// releaseDriver returns an assigned driver to the available pool.
func (s *RideService) releaseDriver(driverID string) {
	if driverID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOnline); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("driver release failed", zap.String("driver_id", driverID), zap.Error(err))
	}
}

// CancelRideRequest contains the parameters for cancelling a ride.
type CancelRideRequest struct {
	TenantID    string
	RideID      string
	CancelledBy string // rider id, driver id, or "system"
	ByDriver    bool
	Reason      string
}

// CancelRide cancels a ride on behalf of the rider or driver.
func (s *RideService) CancelRide(ctx context.Context, req CancelRideRequest) (*domain.Ride, error) {
	status := domain.RideStatusCancelledByRider
	if req.ByDriver {
		status = domain.RideStatusCancelledByDriver
	}

	return s.UpdateStatus(ctx, UpdateStatusRequest{
		TenantID:     req.TenantID,
		RideID:       req.RideID,
		NewStatus:    status,
		CancelledBy:  req.CancelledBy,
		CancelReason: req.Reason,
	})
}

// validateCreateRequest validates the create ride request and applies
// defaults.
func (s *RideService) validateCreateRequest(req *CreateRideRequest) error {
	if req.TenantID == "" {
		return ErrInvalidTenantID
	}
	if req.RiderID == "" {
		return ErrInvalidRiderID
	}
	if !isValidLatitude(req.PickupLat) || !isValidLongitude(req.PickupLng) {
		return ErrInvalidPickupLocation
	}
	if !isValidLatitude(req.DropoffLat) || !isValidLongitude(req.DropoffLng) {
		return ErrInvalidDropoffLocation
	}

	if req.VehicleType == "" {
		req.VehicleType = domain.VehicleTypeStandard
	}
	if !req.VehicleType.Valid() {
		return ErrInvalidVehicleType
	}

	if req.PassengerCount == 0 {
		req.PassengerCount = 1
	}
	if req.PassengerCount < 1 || req.PassengerCount > 8 {
		return ErrInvalidPassengerCount
	}

	method, err := ValidatePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return err
	}
	req.PaymentMethod = method

	return nil
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// ValidatePaymentMethod validates a payment method string, defaulting to
// CASH.
func ValidatePaymentMethod(method string) (domain.PaymentMethod, error) {
	switch domain.PaymentMethod(method) {
	case domain.PaymentMethodCash, domain.PaymentMethodCard,
		domain.PaymentMethodWallet, domain.PaymentMethodInvoice:
		return domain.PaymentMethod(method), nil
	case "":
		return domain.PaymentMethodCash, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}
