package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const (
	// defaultAcceptanceWindow bounds how long an assignment offer holds a
	// driver before the lock expires and the driver becomes claimable again.
	defaultAcceptanceWindow = 30 * time.Second

	// rideLockTTL guards a ride against concurrent dispatch passes.
	rideLockTTL = 30 * time.Second
)

// DispatchOutcome reports how a dispatch pass ended.
type DispatchOutcome struct {
	Assigned  bool
	DriverID  string
	VehicleID string
}

// Dispatcher drives a ride from SEARCHING to DRIVER_ASSIGNED or
// NO_DRIVERS_AVAILABLE.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID, rideID string) (*DispatchOutcome, error)
}

// DispatchService is the matching state machine. It iterates ranked
// candidates and attempts an atomic conditional assignment per candidate,
// guaranteeing at most one successful assignment per ride even under
// concurrent dispatch attempts.
type DispatchService struct {
	rideRepo         repository.RideRepository
	search           DriverSearcher
	assigner         repository.AssignmentStore
	lockStore        redis.LockStoreInterface // nil disables locking
	cacheStore       *redis.CacheStore        // nil disables cache invalidation
	publisher        events.Publisher
	acceptanceWindow time.Duration
	logger           *zap.Logger
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	rideRepo repository.RideRepository,
	search DriverSearcher,
	assigner repository.AssignmentStore,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
	publisher events.Publisher,
	acceptanceWindow time.Duration,
	logger *zap.Logger,
) *DispatchService {
	if acceptanceWindow <= 0 {
		acceptanceWindow = defaultAcceptanceWindow
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchService{
		rideRepo:         rideRepo,
		search:           search,
		assigner:         assigner,
		lockStore:        lockStore,
		cacheStore:       cacheStore,
		publisher:        publisher,
		acceptanceWindow: acceptanceWindow,
		logger:           logger,
	}
}

// Dispatch finds and assigns a driver for a searching ride. Candidates are
// tried sequentially in ranked order; per-candidate failures are expected
// contention and never abort the pass. Every path terminates in a
// well-defined ride status.
func (s *DispatchService) Dispatch(ctx context.Context, tenantID, rideID string) (*DispatchOutcome, error) {
	log := s.logger.With(zap.String("tenant_id", tenantID), zap.String("ride_id", rideID))

	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireRideLock(ctx, rideID, rideLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			// Another dispatch pass is already handling this ride.
			log.Info("dispatch already in progress")
			return nil, ErrRideNotSearching
		}
		defer func() {
			_ = s.lockStore.ReleaseRideLock(ctx, rideID)
		}()
	}

	ride, err := s.rideRepo.GetByID(ctx, tenantID, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}

	// Idempotency guard against duplicate dispatch triggers.
	if ride.Status != domain.RideStatusSearching {
		log.Info("ride left searching state before dispatch", zap.String("status", string(ride.Status)))
		return nil, ErrRideNotSearching
	}

	candidates, err := s.search.FindNearby(ctx, tenantID, ride.PickupLat, ride.PickupLng, ride.VehicleType)
	if err != nil {
		// A failed search must not strand the ride in SEARCHING.
		log.Error("nearby driver search failed", zap.Error(err))
		return s.finishNoDrivers(ctx, log, ride)
	}

	if len(candidates) == 0 {
		log.Info("no candidate drivers nearby")
		return s.finishNoDrivers(ctx, log, ride)
	}

	for _, cand := range candidates {
		outcome, ok := s.tryCandidate(ctx, log, ride, cand)
		if ok {
			return outcome, nil
		}
	}

	log.Info("all candidates exhausted", zap.Int("candidates", len(candidates)))
	return s.finishNoDrivers(ctx, log, ride)
}

// tryCandidate attempts one atomic assignment. A false return means the
// candidate was lost to contention or an error; the caller moves on.
func (s *DispatchService) tryCandidate(ctx context.Context, log *zap.Logger, ride *domain.Ride, cand domain.CandidateDriver) (*DispatchOutcome, bool) {
	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireDriverLock(ctx, cand.DriverID, s.acceptanceWindow)
		if err != nil {
			log.Warn("driver lock error", zap.String("driver_id", cand.DriverID), zap.Error(err))
			return nil, false
		}
		if !locked {
			// Driver is being offered another ride.
			return nil, false
		}
	}

	vehicleID, err := s.assigner.AssignIfSearching(ctx, ride.TenantID, ride.ID, cand.DriverID)
	if err != nil {
		if s.lockStore != nil {
			_ = s.lockStore.ReleaseDriverLock(ctx, cand.DriverID)
		}
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			// Expected contention: driver taken or ride moved on.
			return nil, false
		}
		// Unexpected persistence error: treated as this candidate failing,
		// not as a fatal abort of the whole pass.
		log.Error("assignment attempt failed", zap.String("driver_id", cand.DriverID), zap.Error(err))
		return nil, false
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, cand.DriverID)
		_ = s.cacheStore.RemoveAvailableDriver(ctx, ride.TenantID, cand.DriverID)
	}

	log.Info("driver assigned",
		zap.String("driver_id", cand.DriverID),
		zap.String("vehicle_id", vehicleID),
		zap.Float64("distance_m", cand.DistanceM))

	s.publish(events.RideAssigned{
		RideID:    ride.ID,
		TenantID:  ride.TenantID,
		RiderID:   ride.RiderID,
		DriverID:  cand.DriverID,
		VehicleID: vehicleID,
		ETASec:    cand.ETASeconds,
	})

	// Success: the driver lock expires with the acceptance window.
	return &DispatchOutcome{Assigned: true, DriverID: cand.DriverID, VehicleID: vehicleID}, true
}

// finishNoDrivers transitions the ride to its NO_DRIVERS_AVAILABLE terminal
// state. The conditional update quietly loses to a concurrent cancellation.
func (s *DispatchService) finishNoDrivers(ctx context.Context, log *zap.Logger, ride *domain.Ride) (*DispatchOutcome, error) {
	err := s.rideRepo.UpdateStatusFrom(ctx, ride.TenantID, ride.ID,
		domain.RideStatusSearching, domain.RideStatusNoDriversAvailable)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			log.Info("ride no longer searching, skipping no-drivers transition")
			return &DispatchOutcome{Assigned: false}, nil
		}
		return nil, err
	}

	s.publish(events.NoDriversAvailable{
		RideID:   ride.ID,
		TenantID: ride.TenantID,
		RiderID:  ride.RiderID,
	})

	return &DispatchOutcome{Assigned: false}, nil
}

// publish delivers an event fire-and-forget; dispatch never waits on the
// broker.
func (s *DispatchService) publish(ev events.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("event publish failed", zap.String("kind", ev.Kind()), zap.Error(err))
		}
	}()
}

var _ Dispatcher = (*DispatchService)(nil)
