package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const (
	// defaultSearchRadiusKm bounds the nearby-driver query.
	defaultSearchRadiusKm = 10.0
	// defaultMaxCandidates bounds the candidate list per dispatch pass.
	defaultMaxCandidates = 20
)

// DriverSearcher finds ranked candidate drivers near a pickup location.
type DriverSearcher interface {
	FindNearby(ctx context.Context, tenantID string, lat, lng float64, vehicleType domain.VehicleType) ([]domain.CandidateDriver, error)
}

// DriverSearchService queries the Redis geo index for nearby drivers and
// hydrates them into ranked candidates, cache-first.
type DriverSearchService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore // nil disables the cache fast path
	driverRepo    repository.DriverRepository
	radiusKm      float64
	maxCandidates int
	logger        *zap.Logger
}

// NewDriverSearchService creates a new DriverSearchService. Zero radius or
// candidate limit take the design defaults.
func NewDriverSearchService(
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
	driverRepo repository.DriverRepository,
	radiusKm float64,
	maxCandidates int,
	logger *zap.Logger,
) *DriverSearchService {
	if radiusKm <= 0 {
		radiusKm = defaultSearchRadiusKm
	}
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverSearchService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		radiusKm:      radiusKm,
		maxCandidates: maxCandidates,
		logger:        logger,
	}
}

// FindNearby returns available drivers of the tenant within the search
// radius, matching the requested vehicle type (STANDARD matches any),
// ascending by distance with ties broken by lower ETA. An empty result is not
// an error.
func (s *DriverSearchService) FindNearby(ctx context.Context, tenantID string, lat, lng float64, vehicleType domain.VehicleType) ([]domain.CandidateDriver, error) {
	locations, err := s.locationStore.FindNearbyDrivers(ctx, tenantID, lat, lng, s.radiusKm, s.maxCandidates)
	if err != nil {
		return nil, err
	}

	if len(locations) == 0 {
		return []domain.CandidateDriver{}, nil
	}

	driverIDs := make([]string, len(locations))
	for i, loc := range locations {
		driverIDs[i] = loc.DriverID
	}

	cached := s.getCachedBatch(ctx, driverIDs)

	candidates := make([]domain.CandidateDriver, 0, len(locations))
	for _, loc := range locations {
		var info *redis.CachedDriver
		if c, ok := cached[loc.DriverID]; ok {
			info = c
		} else {
			info = s.hydrateFromDB(ctx, tenantID, loc.DriverID)
			if info == nil {
				continue
			}
		}

		if info.Status != string(domain.DriverStatusOnline) {
			continue
		}
		if !vehicleType.Matches(domain.VehicleType(info.VehicleType)) {
			continue
		}

		candidates = append(candidates, domain.CandidateDriver{
			DriverID:   loc.DriverID,
			Lat:        loc.Lat,
			Lng:        loc.Lng,
			DistanceM:  loc.DistanceM,
			ETASeconds: loc.DistanceM / (fallbackSpeedKmh * 1000 / 3600),
			Rating:     info.Rating,
			Vehicle: domain.Vehicle{
				ID:       info.VehicleID,
				DriverID: loc.DriverID,
				TenantID: tenantID,
				Type:     domain.VehicleType(info.VehicleType),
				Make:     info.VehicleMake,
				Model:    info.VehicleModel,
				Color:    info.VehicleColor,
				Plate:    info.VehiclePlate,
				Active:   true,
			},
		})
	}

	// The geo index already returns ascending distance; the stable sort
	// enforces it after filtering and breaks ties by ETA.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DistanceM != candidates[j].DistanceM {
			return candidates[i].DistanceM < candidates[j].DistanceM
		}
		return candidates[i].ETASeconds < candidates[j].ETASeconds
	})

	return candidates, nil
}

// getCachedBatch fetches drivers from cache, returning an empty map when the
// cache is unavailable.
func (s *DriverSearchService) getCachedBatch(ctx context.Context, driverIDs []string) map[string]*redis.CachedDriver {
	if s.cacheStore == nil {
		return map[string]*redis.CachedDriver{}
	}
	cached, _, err := s.cacheStore.GetDriversBatch(ctx, driverIDs)
	if err != nil {
		s.logger.Warn("driver cache batch fetch failed", zap.Error(err))
		return map[string]*redis.CachedDriver{}
	}
	return cached
}

// hydrateFromDB loads a driver and their active vehicle from the database,
// warming the cache for subsequent searches. Returns nil when the driver does
// not qualify (gone, or no active vehicle).
func (s *DriverSearchService) hydrateFromDB(ctx context.Context, tenantID, driverID string) *redis.CachedDriver {
	driver, err := s.driverRepo.GetByID(ctx, tenantID, driverID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("driver lookup failed", zap.String("driver_id", driverID), zap.Error(err))
		}
		return nil
	}

	vehicle, err := s.driverRepo.GetActiveVehicle(ctx, driverID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("vehicle lookup failed", zap.String("driver_id", driverID), zap.Error(err))
		}
		return nil
	}

	info := &redis.CachedDriver{
		ID:           driver.ID,
		TenantID:     driver.TenantID,
		Name:         driver.Name,
		Phone:        driver.Phone,
		Rating:       driver.Rating,
		Status:       string(driver.Status),
		VehicleID:    vehicle.ID,
		VehicleType:  string(vehicle.Type),
		VehicleMake:  vehicle.Make,
		VehicleModel: vehicle.Model,
		VehicleColor: vehicle.Color,
		VehiclePlate: vehicle.Plate,
	}

	if s.cacheStore != nil {
		go func() {
			_ = s.cacheStore.SetDriver(context.Background(), info)
		}()
	}

	return info
}

var _ DriverSearcher = (*DriverSearchService)(nil)
