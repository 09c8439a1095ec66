package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// DriverService handles driver registration, presence and location updates.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore
	driverRepo    repository.DriverRepository
	logger        *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
	driverRepo repository.DriverRepository,
	logger *zap.Logger,
) *DriverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		logger:        logger,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver
// together with their active vehicle.
type RegisterDriverRequest struct {
	TenantID     string
	Name         string
	Phone        string
	VehicleType  domain.VehicleType
	VehicleMake  string
	VehicleModel string
	VehicleColor string
	PlateNumber  string
}

// RegisterDriver creates a driver and their vehicle. The driver starts OFFLINE
// and becomes dispatchable once they report a location.
func (s *DriverService) RegisterDriver(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.TenantID == "" {
		return nil, ErrInvalidTenantID
	}
	if req.VehicleType == "" {
		req.VehicleType = domain.VehicleTypeStandard
	}
	if !req.VehicleType.Valid() {
		return nil, ErrInvalidVehicleType
	}

	driver := &domain.Driver{
		ID:       uuid.New().String(),
		TenantID: req.TenantID,
		Name:     req.Name,
		Phone:    req.Phone,
		Status:   domain.DriverStatusOffline,
	}
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, err
	}

	vehicle := &domain.Vehicle{
		ID:       uuid.New().String(),
		DriverID: driver.ID,
		TenantID: req.TenantID,
		Type:     req.VehicleType,
		Make:     req.VehicleMake,
		Model:    req.VehicleModel,
		Color:    req.VehicleColor,
		Plate:    req.PlateNumber,
		Active:   true,
	}
	if err := s.driverRepo.CreateVehicle(ctx, vehicle); err != nil {
		return nil, err
	}

	s.logger.Info("driver registered",
		zap.String("tenant_id", req.TenantID),
		zap.String("driver_id", driver.ID),
		zap.String("vehicle_type", string(req.VehicleType)))

	return driver, nil
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	TenantID string
	DriverID string
	Lat      float64
	Lng      float64
}

// UpdateLocation updates a driver's location in Redis and sets them ONLINE
// unless they are currently on a trip.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.TenantID == "" {
		return ErrInvalidTenantID
	}
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return ErrInvalidLocation
	}

	if err := s.locationStore.UpdateLocation(ctx, req.TenantID, req.DriverID, req.Lat, req.Lng); err != nil {
		return err
	}

	driver, err := s.driverRepo.GetByID(ctx, req.TenantID, req.DriverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidDriverID
		}
		return err
	}

	// A location ping only flips OFFLINE drivers back to ONLINE. Drivers
	// on a trip keep streaming positions without changing status.
	if driver.Status == domain.DriverStatusOffline {
		if err := s.driverRepo.UpdateStatus(ctx, req.DriverID, domain.DriverStatusOnline); err != nil {
			return err
		}
		driver.Status = domain.DriverStatusOnline
	}

	if s.cacheStore != nil {
		if driver.Status == domain.DriverStatusOnline {
			_ = s.cacheStore.AddAvailableDriver(ctx, req.TenantID, req.DriverID)
		}
		s.refreshDriverCache(ctx, driver)
	}

	return nil
}

// SetDriverOffline takes a driver out of the dispatch pool.
func (s *DriverService) SetDriverOffline(ctx context.Context, tenantID, driverID string) error {
	if tenantID == "" {
		return ErrInvalidTenantID
	}
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}

	if err := s.locationStore.RemoveLocation(ctx, tenantID, driverID); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
		_ = s.cacheStore.RemoveAvailableDriver(ctx, tenantID, driverID)
	}

	return nil
}

// GetDriver returns a driver scoped to the tenant.
func (s *DriverService) GetDriver(ctx context.Context, tenantID, driverID string) (*domain.Driver, error) {
	if tenantID == "" {
		return nil, ErrInvalidTenantID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	driver, err := s.driverRepo.GetByID(ctx, tenantID, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidDriverID
		}
		return nil, err
	}
	return driver, nil
}

func (s *DriverService) refreshDriverCache(ctx context.Context, driver *domain.Driver) {
	cached := &redis.CachedDriver{
		ID:       driver.ID,
		TenantID: driver.TenantID,
		Name:     driver.Name,
		Phone:    driver.Phone,
		Rating:   driver.Rating,
		Status:   string(driver.Status),
	}

	vctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if vehicle, err := s.driverRepo.GetActiveVehicle(vctx, driver.ID); err == nil {
		cached.VehicleID = vehicle.ID
		cached.VehicleType = string(vehicle.Type)
		cached.VehicleMake = vehicle.Make
		cached.VehicleModel = vehicle.Model
		cached.VehicleColor = vehicle.Color
		cached.VehiclePlate = vehicle.Plate
	}

	if err := s.cacheStore.SetDriver(ctx, cached); err != nil {
		s.logger.Debug("driver cache refresh failed",
			zap.String("driver_id", driver.ID), zap.Error(err))
	}
}
