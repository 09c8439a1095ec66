package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/repository"
)

// TenantHandler handles HTTP requests for tenant pricing configuration.
type TenantHandler struct {
	tenantRepo repository.TenantRepository
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(tenantRepo repository.TenantRepository) *TenantHandler {
	return &TenantHandler{tenantRepo: tenantRepo}
}

// PricingRequest is the HTTP request body for setting tenant pricing.
type PricingRequest struct {
	BaseFare      float64 `json:"base_fare"`
	PerKmRate     float64 `json:"per_km_rate"`
	PerMinuteRate float64 `json:"per_minute_rate"`
	MinimumFare   float64 `json:"minimum_fare"`
	BookingFee    float64 `json:"booking_fee"`
	SurgeEnabled  bool    `json:"surge_enabled"`
	MaxSurge      float64 `json:"max_surge,omitempty"`
	VATRate       float64 `json:"vat_rate,omitempty"`
	Currency      string  `json:"currency"`
}

// PricingResponse is the HTTP representation of tenant pricing.
type PricingResponse struct {
	TenantID      string  `json:"tenant_id"`
	BaseFare      float64 `json:"base_fare"`
	PerKmRate     float64 `json:"per_km_rate"`
	PerMinuteRate float64 `json:"per_minute_rate"`
	MinimumFare   float64 `json:"minimum_fare"`
	BookingFee    float64 `json:"booking_fee"`
	SurgeEnabled  bool    `json:"surge_enabled"`
	MaxSurge      float64 `json:"max_surge"`
	VATRate       float64 `json:"vat_rate"`
	Currency      string  `json:"currency"`
}

func pricingResponse(cfg *domain.PricingConfig) PricingResponse {
	return PricingResponse{
		TenantID:      cfg.TenantID,
		BaseFare:      cfg.BaseFare,
		PerKmRate:     cfg.PerKmRate,
		PerMinuteRate: cfg.PerMinuteRate,
		MinimumFare:   cfg.MinimumFare,
		BookingFee:    cfg.BookingFee,
		SurgeEnabled:  cfg.SurgeEnabled,
		MaxSurge:      cfg.MaxSurge,
		VATRate:       cfg.VATRate,
		Currency:      cfg.Currency,
	}
}

// GetPricing handles GET /v1/pricing
func (h *TenantHandler) GetPricing(c *gin.Context) {
	cfg, err := h.tenantRepo.GetPricing(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, pricingResponse(cfg))
}

// SetPricing handles PUT /v1/pricing
func (h *TenantHandler) SetPricing(c *gin.Context) {
	var req PricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	cfg := &domain.PricingConfig{
		TenantID:      middleware.TenantID(c),
		BaseFare:      req.BaseFare,
		PerKmRate:     req.PerKmRate,
		PerMinuteRate: req.PerMinuteRate,
		MinimumFare:   req.MinimumFare,
		BookingFee:    req.BookingFee,
		SurgeEnabled:  req.SurgeEnabled,
		MaxSurge:      req.MaxSurge,
		VATRate:       req.VATRate,
		Currency:      req.Currency,
	}

	if err := h.tenantRepo.UpsertPricing(c.Request.Context(), cfg); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, pricingResponse(cfg))
}
