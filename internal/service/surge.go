package service

import (
	"context"

	"go.uber.org/zap"

	"dispatch/internal/geo"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// SurgeConfig contains surge pricing configuration.
type SurgeConfig struct {
	RadiusKm      float64 // radius to measure supply and demand over
	LowRatio      float64 // demand/supply ratio for the first surge tier
	MedRatio      float64 // demand/supply ratio for the second tier
	HighRatio     float64 // demand/supply ratio for the third tier
	ExtremeRatio  float64 // demand/supply ratio for the maximum tier
	MaxMultiplier float64 // hard cap on the multiplier
}

// DefaultSurgeConfig returns the default surge configuration.
func DefaultSurgeConfig() SurgeConfig {
	return SurgeConfig{
		RadiusKm:      5.0,
		LowRatio:      1.2,
		MedRatio:      1.5,
		HighRatio:     2.0,
		ExtremeRatio:  3.0,
		MaxMultiplier: 3.0,
	}
}

// SurgeService derives the surge multiplier for a pickup location from the
// ratio of open ride requests to available drivers nearby.
type SurgeService struct {
	locationStore redis.LocationStoreInterface
	rideRepo      repository.RideRepository
	cfg           SurgeConfig
	logger        *zap.Logger
}

// NewSurgeService creates a new SurgeService.
func NewSurgeService(
	locationStore redis.LocationStoreInterface,
	rideRepo repository.RideRepository,
	cfg SurgeConfig,
	logger *zap.Logger,
) *SurgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurgeService{
		locationStore: locationStore,
		rideRepo:      rideRepo,
		cfg:           cfg,
		logger:        logger,
	}
}

// Multiplier returns the surge multiplier for the given pickup location,
// always >= 1.0 and capped at the configured maximum.
func (s *SurgeService) Multiplier(ctx context.Context, tenantID string, lat, lng float64) float64 {
	supply := s.countDriversInArea(ctx, tenantID, lat, lng)
	demand := s.countOpenRequestsInArea(ctx, tenantID, lat, lng)

	m := s.multiplierFor(supply, demand)
	if m > 1.0 {
		s.logger.Info("surge active",
			zap.String("tenant_id", tenantID),
			zap.Int("supply", supply),
			zap.Int("demand", demand),
			zap.Float64("multiplier", m))
	}
	return m
}

// countDriversInArea returns the number of available drivers within radius.
func (s *SurgeService) countDriversInArea(ctx context.Context, tenantID string, lat, lng float64) int {
	drivers, err := s.locationStore.FindNearbyDrivers(ctx, tenantID, lat, lng, s.cfg.RadiusKm, 0)
	if err != nil {
		// Fail open: assume plenty of supply rather than surging on an
		// infrastructure error.
		s.logger.Warn("surge supply lookup failed", zap.Error(err))
		return 10
	}
	return len(drivers)
}

// countOpenRequestsInArea returns the number of rides still awaiting a driver
// with a pickup within radius.
func (s *SurgeService) countOpenRequestsInArea(ctx context.Context, tenantID string, lat, lng float64) int {
	rides, err := s.rideRepo.GetOpenByTenant(ctx, tenantID)
	if err != nil {
		s.logger.Warn("surge demand lookup failed", zap.Error(err))
		return 0
	}

	radiusM := s.cfg.RadiusKm * 1000
	count := 0
	for _, ride := range rides {
		if geo.WithinRadius(ride.PickupLat, ride.PickupLng, lat, lng, radiusM) {
			count++
		}
	}
	return count
}

// multiplierFor maps a supply/demand pair to a surge tier.
func (s *SurgeService) multiplierFor(supply, demand int) float64 {
	if supply == 0 {
		if demand > 0 {
			return s.cfg.MaxMultiplier
		}
		return 1.0
	}

	ratio := float64(demand) / float64(supply)

	switch {
	case ratio >= s.cfg.ExtremeRatio:
		return s.cfg.MaxMultiplier
	case ratio >= s.cfg.HighRatio:
		return 2.0
	case ratio >= s.cfg.MedRatio:
		return 1.5
	case ratio >= s.cfg.LowRatio:
		return 1.25
	default:
		return 1.0
	}
}

var _ SurgePolicy = (*SurgeService)(nil)
