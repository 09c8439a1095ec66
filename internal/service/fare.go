package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/repository"
	"dispatch/internal/routing"
)

const (
	// fallbackSpeedKmh is the assumed urban average speed used to derive
	// duration when no routing provider is available. The same speed is used
	// for candidate ETA estimation.
	fallbackSpeedKmh = 30.0

	// fallbackRoadFactor inflates the great-circle distance to approximate
	// road distance: streets do not follow geodesics.
	fallbackRoadFactor = 1.15

	// defaultVATRate is the platform-wide passenger-transport VAT rate,
	// applied when a tenant's config leaves the rate unset.
	defaultVATRate = 0.10

	// defaultMaxSurge caps the surge multiplier when a tenant did not set a
	// cap of its own.
	defaultMaxSurge = 3.0
)

// SurgePolicy derives a demand/supply multiplier for a pickup location.
// Implementations must return a value >= 1.0.
type SurgePolicy interface {
	Multiplier(ctx context.Context, tenantID string, lat, lng float64) float64
}

// FareService computes fare estimates and final fares from tenant pricing
// configuration, trip metrics, vehicle class and surge.
type FareService struct {
	tenantRepo repository.TenantRepository
	provider   routing.Provider // nil means geodesic fallback only
	surge      SurgePolicy      // nil disables surge entirely
	logger     *zap.Logger
}

// NewFareService creates a new FareService.
func NewFareService(
	tenantRepo repository.TenantRepository,
	provider routing.Provider,
	surge SurgePolicy,
	logger *zap.Logger,
) *FareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FareService{
		tenantRepo: tenantRepo,
		provider:   provider,
		surge:      surge,
		logger:     logger,
	}
}

// Estimate computes a fare estimate for a prospective trip. Routing-provider
// failures are recovered with a geodesic estimate and never surfaced.
func (s *FareService) Estimate(ctx context.Context, tenantID string, pickupLat, pickupLng, dropoffLat, dropoffLng float64, vehicleType domain.VehicleType) (*domain.FareEstimate, error) {
	cfg, err := s.tenantRepo.GetPricing(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidTenant
		}
		return nil, err
	}

	distanceM, durationS := s.routeOrFallback(ctx, pickupLat, pickupLng, dropoffLat, dropoffLng)

	multiplier := 1.0
	if cfg.SurgeEnabled && s.surge != nil {
		multiplier = clampSurge(s.surge.Multiplier(ctx, tenantID, pickupLat, pickupLng), cfg)
	}

	return s.Quote(cfg, vehicleType, distanceM, durationS, multiplier), nil
}

// Quote prices a trip of known distance and duration against a tenant's
// pricing configuration. It is pure: identical inputs yield identical output.
func (s *FareService) Quote(cfg *domain.PricingConfig, vehicleType domain.VehicleType, distanceM, durationS, surgeMultiplier float64) *domain.FareEstimate {
	if surgeMultiplier < 1.0 {
		surgeMultiplier = 1.0
	}

	// The vehicle multiplier scales the metered components only, never the
	// booking fee.
	vm := vehicleType.FareMultiplier()
	baseFare := cfg.BaseFare * vm
	distanceFare := (distanceM / 1000) * cfg.PerKmRate * vm
	timeFare := (durationS / 60) * cfg.PerMinuteRate * vm
	bookingFee := cfg.BookingFee

	surgeAmount := 0.0
	if surgeMultiplier > 1.0 {
		surgeAmount = (baseFare + distanceFare + timeFare) * (surgeMultiplier - 1)
	}

	subtotal := baseFare + distanceFare + timeFare + surgeAmount + bookingFee
	total := math.Max(subtotal, cfg.MinimumFare)
	total = round2(total)

	vatRate := cfg.VATRate
	if vatRate == 0 {
		vatRate = defaultVATRate
	}
	// VAT is extracted from the VAT-inclusive total, not added on top.
	vatAmount := round2(total * vatRate / (1 + vatRate))

	return &domain.FareEstimate{
		BaseFare:        round2(baseFare),
		DistanceFare:    round2(distanceFare),
		TimeFare:        round2(timeFare),
		BookingFee:      round2(bookingFee),
		SurgeMultiplier: surgeMultiplier,
		SurgeAmount:     round2(surgeAmount),
		Subtotal:        round2(subtotal),
		VATAmount:       vatAmount,
		Total:           total,
		Currency:        cfg.Currency,
		DistanceMeters:  distanceM,
		DurationSeconds: durationS,
	}
}

// Finalize computes the final fare at completion from the actual trip
// metrics, preserving the surge multiplier locked in at request time. A
// taximeter reading, when present, is the legal fare of record and overrides
// the computed total.
func (s *FareService) Finalize(cfg *domain.PricingConfig, ride *domain.Ride, actualDistanceM, actualDurationS float64, taximeter *domain.TaximeterReading) *domain.FareEstimate {
	final := s.Quote(cfg, ride.VehicleType, actualDistanceM, actualDurationS, ride.Estimate.SurgeMultiplier)

	if taximeter != nil {
		vatRate := cfg.VATRate
		if vatRate == 0 {
			vatRate = defaultVATRate
		}
		final.Total = round2(taximeter.Fare)
		final.Subtotal = final.Total
		final.VATAmount = round2(final.Total * vatRate / (1 + vatRate))
		s.logger.Info("taximeter fare override",
			zap.String("ride_id", ride.ID),
			zap.String("taximeter_serial", taximeter.SerialNumber),
			zap.Float64("fare", final.Total))
	}

	return final
}

// routeOrFallback obtains distance and duration from the routing provider,
// falling back to a geodesic estimate at an assumed urban speed. The fallback
// is silent for callers but logged as a degraded-precision path.
func (s *FareService) routeOrFallback(ctx context.Context, originLat, originLng, destLat, destLng float64) (distanceM, durationS float64) {
	if s.provider != nil {
		route, err := s.provider.Route(ctx, originLat, originLng, destLat, destLng)
		if err == nil {
			return route.DistanceMeters, route.DurationSeconds
		}
		s.logger.Warn("routing provider failed, using geodesic fallback",
			zap.Error(err))
	} else {
		s.logger.Debug("no routing provider configured, using geodesic fallback")
	}

	distanceM = geo.Distance(originLat, originLng, destLat, destLng) * fallbackRoadFactor
	durationS = distanceM / (fallbackSpeedKmh * 1000 / 3600)
	return distanceM, durationS
}

// clampSurge bounds a surge multiplier into [1.0, tenant max].
func clampSurge(m float64, cfg *domain.PricingConfig) float64 {
	maxSurge := cfg.MaxSurge
	if maxSurge <= 1.0 {
		maxSurge = defaultMaxSurge
	}
	if m < 1.0 {
		return 1.0
	}
	if m > maxSurge {
		return maxSurge
	}
	return m
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
