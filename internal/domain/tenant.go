package domain

import "errors"

// Tenant is one white-label operator instance. All rides, drivers and pricing
// are scoped to it.
type Tenant struct {
	ID   string
	Name string
}

// PricingConfig holds a tenant's fare parameters. It is read-only from the
// dispatch core's perspective.
type PricingConfig struct {
	TenantID      string
	BaseFare      float64
	PerKmRate     float64
	PerMinuteRate float64
	MinimumFare   float64
	BookingFee    float64
	SurgeEnabled  bool
	MaxSurge      float64 // 0 means the platform default applies
	VATRate       float64 // 0 means the platform default applies
	Currency      string
}

// ErrInvalidPricingConfig is returned by Validate for out-of-range rates.
var ErrInvalidPricingConfig = errors.New("invalid pricing config")

// Validate checks the pricing invariants: all monetary rates are non-negative
// and the VAT rate lies in [0,1).
func (c *PricingConfig) Validate() error {
	if c.BaseFare < 0 || c.PerKmRate < 0 || c.PerMinuteRate < 0 ||
		c.MinimumFare < 0 || c.BookingFee < 0 {
		return ErrInvalidPricingConfig
	}
	if c.VATRate < 0 || c.VATRate >= 1 {
		return ErrInvalidPricingConfig
	}
	return nil
}
