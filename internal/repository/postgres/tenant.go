package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// TenantRepository is a PostgreSQL implementation of repository.TenantRepository.
type TenantRepository struct {
	q Querier
}

// NewTenantRepository creates a new PostgreSQL tenant repository.
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{q: db}
}

// GetPricing retrieves a tenant's pricing configuration.
func (r *TenantRepository) GetPricing(ctx context.Context, tenantID string) (*domain.PricingConfig, error) {
	query := `
		SELECT tenant_id, base_fare, per_km_rate, per_minute_rate, minimum_fare,
		       booking_fee, surge_enabled, max_surge, vat_rate, currency
		FROM tenant_pricing WHERE tenant_id = $1
	`

	var cfg domain.PricingConfig
	err := r.q.QueryRowContext(ctx, query, tenantID).Scan(
		&cfg.TenantID,
		&cfg.BaseFare,
		&cfg.PerKmRate,
		&cfg.PerMinuteRate,
		&cfg.MinimumFare,
		&cfg.BookingFee,
		&cfg.SurgeEnabled,
		&cfg.MaxSurge,
		&cfg.VATRate,
		&cfg.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &cfg, nil
}

// UpsertPricing creates or replaces a tenant's pricing configuration.
func (r *TenantRepository) UpsertPricing(ctx context.Context, cfg *domain.PricingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO tenant_pricing (tenant_id, base_fare, per_km_rate, per_minute_rate,
		                            minimum_fare, booking_fee, surge_enabled, max_surge, vat_rate, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id) DO UPDATE SET
			base_fare = EXCLUDED.base_fare,
			per_km_rate = EXCLUDED.per_km_rate,
			per_minute_rate = EXCLUDED.per_minute_rate,
			minimum_fare = EXCLUDED.minimum_fare,
			booking_fee = EXCLUDED.booking_fee,
			surge_enabled = EXCLUDED.surge_enabled,
			max_surge = EXCLUDED.max_surge,
			vat_rate = EXCLUDED.vat_rate,
			currency = EXCLUDED.currency
	`

	_, err := r.q.ExecContext(ctx, query,
		cfg.TenantID, cfg.BaseFare, cfg.PerKmRate, cfg.PerMinuteRate,
		cfg.MinimumFare, cfg.BookingFee, cfg.SurgeEnabled, cfg.MaxSurge, cfg.VATRate, cfg.Currency)
	return err
}
