package repository

import (
	"context"

	"dispatch/internal/domain"
)

// TenantRepository defines access to tenant pricing configuration. The
// dispatch core only ever reads it.
type TenantRepository interface {
	// GetPricing retrieves a tenant's pricing configuration. Returns
	// ErrNotFound when the tenant has none.
	GetPricing(ctx context.Context, tenantID string) (*domain.PricingConfig, error)

	// UpsertPricing creates or replaces a tenant's pricing configuration.
	UpsertPricing(ctx context.Context, cfg *domain.PricingConfig) error
}
