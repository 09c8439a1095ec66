package tests

import (
	"context"
	"math"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// stubSurge returns a fixed multiplier.
type stubSurge struct{ m float64 }

func (s stubSurge) Multiplier(ctx context.Context, tenantID string, lat, lng float64) float64 {
	return s.m
}

func helsinkiPricing() *domain.PricingConfig {
	return &domain.PricingConfig{
		TenantID:      "tenant-1",
		BaseFare:      5.90,
		PerKmRate:     1.60,
		PerMinuteRate: 0.80,
		MinimumFare:   8.00,
		BookingFee:    1.00,
		VATRate:       0.135,
		Currency:      "EUR",
	}
}

func approxEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestQuoteCityTrip(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()

	// 2 km, 6 minutes, no surge.
	fare := svc.Quote(cfg, domain.VehicleTypeStandard, 2000, 360, 1.0)

	if fare.BaseFare != 5.90 {
		t.Errorf("base fare = %v, want 5.90", fare.BaseFare)
	}
	if fare.DistanceFare != 3.20 {
		t.Errorf("distance fare = %v, want 3.20", fare.DistanceFare)
	}
	if fare.TimeFare != 4.80 {
		t.Errorf("time fare = %v, want 4.80", fare.TimeFare)
	}
	if fare.BookingFee != 1.00 {
		t.Errorf("booking fee = %v, want 1.00", fare.BookingFee)
	}
	if fare.Total != 14.90 {
		t.Errorf("total = %v, want 14.90", fare.Total)
	}
	if fare.VATAmount != 1.77 {
		t.Errorf("vat = %v, want 1.77", fare.VATAmount)
	}
	if fare.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", fare.Currency)
	}
}

func TestQuoteMinimumFareFloor(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()
	cfg.MinimumFare = 12.00

	// 500 m, 1 minute: metered fare well below the floor.
	fare := svc.Quote(cfg, domain.VehicleTypeStandard, 500, 60, 1.0)

	if fare.Total != 12.00 {
		t.Errorf("total = %v, want minimum fare 12.00", fare.Total)
	}
	// VAT still extracted from the floored total.
	want := math.Round(12.00*0.135/1.135*100) / 100
	if fare.VATAmount != want {
		t.Errorf("vat = %v, want %v", fare.VATAmount, want)
	}
}

func TestQuoteVehicleMultiplierSparesBookingFee(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()

	standard := svc.Quote(cfg, domain.VehicleTypeStandard, 2000, 360, 1.0)
	comfort := svc.Quote(cfg, domain.VehicleTypeComfort, 2000, 360, 1.0)

	if !approxEqual(comfort.BaseFare, standard.BaseFare*1.3, 0.01) {
		t.Errorf("comfort base = %v, want %v", comfort.BaseFare, standard.BaseFare*1.3)
	}
	if !approxEqual(comfort.DistanceFare, standard.DistanceFare*1.3, 0.01) {
		t.Errorf("comfort distance = %v, want %v", comfort.DistanceFare, standard.DistanceFare*1.3)
	}
	if !approxEqual(comfort.TimeFare, standard.TimeFare*1.3, 0.01) {
		t.Errorf("comfort time = %v, want %v", comfort.TimeFare, standard.TimeFare*1.3)
	}
	if comfort.BookingFee != standard.BookingFee {
		t.Errorf("booking fee scaled by vehicle multiplier: %v != %v", comfort.BookingFee, standard.BookingFee)
	}
}

func TestQuoteSurgeAmount(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()

	fare := svc.Quote(cfg, domain.VehicleTypeStandard, 2000, 360, 1.5)

	// Surge applies to the metered components only, not the booking fee.
	wantSurge := (5.90 + 3.20 + 4.80) * 0.5
	if !approxEqual(fare.SurgeAmount, wantSurge, 0.01) {
		t.Errorf("surge amount = %v, want %v", fare.SurgeAmount, wantSurge)
	}
	if fare.SurgeMultiplier != 1.5 {
		t.Errorf("surge multiplier = %v, want 1.5", fare.SurgeMultiplier)
	}
	wantTotal := math.Round((5.90+3.20+4.80+wantSurge+1.00)*100) / 100
	if fare.Total != wantTotal {
		t.Errorf("total = %v, want %v", fare.Total, wantTotal)
	}
}

func TestQuoteSubMultiplierClampedToOne(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	fare := svc.Quote(helsinkiPricing(), domain.VehicleTypeStandard, 2000, 360, 0.5)

	if fare.SurgeMultiplier != 1.0 {
		t.Errorf("surge multiplier = %v, want 1.0", fare.SurgeMultiplier)
	}
	if fare.SurgeAmount != 0 {
		t.Errorf("surge amount = %v, want 0", fare.SurgeAmount)
	}
}

func TestQuoteIdempotent(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()

	first := svc.Quote(cfg, domain.VehicleTypeXL, 7250, 913, 1.25)
	second := svc.Quote(cfg, domain.VehicleTypeXL, 7250, 913, 1.25)

	if *first != *second {
		t.Errorf("identical inputs produced different quotes: %+v vs %+v", first, second)
	}
}

func TestQuoteDefaultVATRate(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()
	cfg.VATRate = 0

	fare := svc.Quote(cfg, domain.VehicleTypeStandard, 2000, 360, 1.0)

	// Unset VAT rate falls back to the platform default of 10%.
	want := math.Round(14.90*0.10/1.10*100) / 100
	if fare.VATAmount != want {
		t.Errorf("vat = %v, want %v", fare.VATAmount, want)
	}
}

func TestEstimateGeodesicFallback(t *testing.T) {
	tenantRepo := NewMockTenantRepository()
	tenantRepo.SetPricing(helsinkiPricing())
	svc := service.NewFareService(tenantRepo, nil, nil, nil)

	// Helsinki to Tampere with no routing provider configured.
	est, err := svc.Estimate(context.Background(), "tenant-1",
		60.1699, 24.9384, 61.4978, 23.7610, domain.VehicleTypeStandard)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}

	if est.DistanceMeters < 170000 || est.DistanceMeters > 190000 {
		t.Errorf("fallback distance = %v m, want 170-190 km", est.DistanceMeters)
	}

	// Duration derived from the assumed 30 km/h urban speed.
	wantDuration := est.DistanceMeters / (30.0 * 1000 / 3600)
	if !approxEqual(est.DurationSeconds, wantDuration, 1) {
		t.Errorf("fallback duration = %v s, want %v", est.DurationSeconds, wantDuration)
	}
}

func TestEstimateUnknownTenant(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)

	_, err := svc.Estimate(context.Background(), "nobody",
		60.1699, 24.9384, 60.1700, 24.9400, domain.VehicleTypeStandard)
	if err != service.ErrInvalidTenant {
		t.Errorf("err = %v, want ErrInvalidTenant", err)
	}
}

func TestEstimateSurgeClampedToTenantCap(t *testing.T) {
	tenantRepo := NewMockTenantRepository()
	cfg := helsinkiPricing()
	cfg.SurgeEnabled = true
	cfg.MaxSurge = 2.0
	tenantRepo.SetPricing(cfg)

	svc := service.NewFareService(tenantRepo, nil, stubSurge{m: 5.0}, nil)

	est, err := svc.Estimate(context.Background(), "tenant-1",
		60.1699, 24.9384, 60.1800, 24.9500, domain.VehicleTypeStandard)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if est.SurgeMultiplier != 2.0 {
		t.Errorf("surge multiplier = %v, want clamped 2.0", est.SurgeMultiplier)
	}
}

func TestEstimateSurgeDisabled(t *testing.T) {
	tenantRepo := NewMockTenantRepository()
	cfg := helsinkiPricing()
	cfg.SurgeEnabled = false
	tenantRepo.SetPricing(cfg)

	svc := service.NewFareService(tenantRepo, nil, stubSurge{m: 3.0}, nil)

	est, err := svc.Estimate(context.Background(), "tenant-1",
		60.1699, 24.9384, 60.1800, 24.9500, domain.VehicleTypeStandard)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if est.SurgeMultiplier != 1.0 {
		t.Errorf("surge multiplier = %v, want 1.0 when disabled", est.SurgeMultiplier)
	}
}

func TestFinalizeRecomputesFromActuals(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()

	ride := &domain.Ride{
		ID:          "ride-1",
		VehicleType: domain.VehicleTypeStandard,
		Estimate:    *svc.Quote(cfg, domain.VehicleTypeStandard, 2000, 360, 1.5),
	}

	// The trip ran longer than estimated; surge stays locked at 1.5.
	final := svc.Finalize(cfg, ride, 3500, 600, nil)

	if final.SurgeMultiplier != 1.5 {
		t.Errorf("final surge = %v, want request-time 1.5", final.SurgeMultiplier)
	}
	want := svc.Quote(cfg, domain.VehicleTypeStandard, 3500, 600, 1.5)
	if final.Total != want.Total {
		t.Errorf("final total = %v, want %v", final.Total, want.Total)
	}
}

func TestFinalizeTaximeterOverride(t *testing.T) {
	svc := service.NewFareService(NewMockTenantRepository(), nil, nil, nil)
	cfg := helsinkiPricing()

	ride := &domain.Ride{
		ID:          "ride-1",
		VehicleType: domain.VehicleTypeStandard,
		Estimate:    *svc.Quote(cfg, domain.VehicleTypeStandard, 2000, 360, 1.0),
	}

	final := svc.Finalize(cfg, ride, 2000, 360, &domain.TaximeterReading{
		Fare:          23.50,
		SerialNumber:  "TMX-0042",
		ReceiptNumber: "R-1001",
	})

	if final.Total != 23.50 {
		t.Errorf("final total = %v, want taximeter 23.50", final.Total)
	}
	wantVAT := math.Round(23.50*0.135/1.135*100) / 100
	if final.VATAmount != wantVAT {
		t.Errorf("final vat = %v, want %v", final.VATAmount, wantVAT)
	}
}
