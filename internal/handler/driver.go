package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
	search        service.DriverSearcher
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, search service.DriverSearcher) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		search:        search,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehicleType  string `json:"vehicle_type,omitempty"`
	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
	VehicleColor string `json:"vehicle_color,omitempty"`
	PlateNumber  string `json:"plate_number,omitempty"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Rating float64 `json:"rating"`
	Status string  `json:"status"`
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NearbyDriverResponse is one candidate in a nearby search result.
type NearbyDriverResponse struct {
	DriverID   string  `json:"driver_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceM  float64 `json:"distance_m"`
	ETASeconds float64 `json:"eta_seconds"`
	Rating     float64 `json:"rating"`
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	driver, err := h.driverService.RegisterDriver(c.Request.Context(), service.RegisterDriverRequest{
		TenantID:     middleware.TenantID(c),
		Name:         req.Name,
		Phone:        req.Phone,
		VehicleType:  domain.VehicleType(req.VehicleType),
		VehicleMake:  req.VehicleMake,
		VehicleModel: req.VehicleModel,
		VehicleColor: req.VehicleColor,
		PlateNumber:  req.PlateNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, DriverResponse{
		ID:     driver.ID,
		Name:   driver.Name,
		Phone:  driver.Phone,
		Rating: driver.Rating,
		Status: string(driver.Status),
	})
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DriverResponse{
		ID:     driver.ID,
		Name:   driver.Name,
		Phone:  driver.Phone,
		Rating: driver.Rating,
		Status: string(driver.Status),
	})
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		TenantID: middleware.TenantID(c),
		DriverID: c.Param("id"),
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	err := h.driverService.SetDriverOffline(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Nearby handles GET /v1/drivers/nearby
func (h *DriverHandler) Nearby(c *gin.Context) {
	var query struct {
		Lat         float64 `form:"lat"`
		Lng         float64 `form:"lng"`
		VehicleType string  `form:"vehicle_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query parameters"})
		return
	}

	candidates, err := h.search.FindNearby(c.Request.Context(), middleware.TenantID(c),
		query.Lat, query.Lng, domain.VehicleType(query.VehicleType))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyDriverResponse, 0, len(candidates))
	for _, cand := range candidates {
		response = append(response, NearbyDriverResponse{
			DriverID:   cand.DriverID,
			Lat:        cand.Lat,
			Lng:        cand.Lng,
			DistanceM:  cand.DistanceM,
			ETASeconds: cand.ETASeconds,
			Rating:     cand.Rating,
		})
	}

	c.JSON(http.StatusOK, response)
}
