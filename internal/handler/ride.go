package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
	fareService *service.FareService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, fareService *service.FareService) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		fareService: fareService,
	}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	RiderID        string  `json:"rider_id"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffLat     float64 `json:"dropoff_lat"`
	DropoffLng     float64 `json:"dropoff_lng"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
	VehicleType    string  `json:"vehicle_type,omitempty"`
	PassengerCount int     `json:"passenger_count,omitempty"`
	PaymentMethod  string  `json:"payment_method,omitempty"` // CASH, CARD, WALLET, INVOICE
	ScheduledFor   string  `json:"scheduled_for,omitempty"`  // RFC 3339
}

// EstimateRequest is the HTTP request body for a standalone fare estimate.
type EstimateRequest struct {
	PickupLat   float64 `json:"pickup_lat"`
	PickupLng   float64 `json:"pickup_lng"`
	DropoffLat  float64 `json:"dropoff_lat"`
	DropoffLng  float64 `json:"dropoff_lng"`
	VehicleType string  `json:"vehicle_type,omitempty"`
}

// UpdateStatusRequest is the HTTP request body for a status transition.
type UpdateStatusRequest struct {
	Status          string  `json:"status"`
	ActualDistanceM float64 `json:"actual_distance_m,omitempty"`
	ActualDurationS float64 `json:"actual_duration_s,omitempty"`

	TaximeterFare    float64 `json:"taximeter_fare,omitempty"`
	TaximeterSerial  string  `json:"taximeter_serial,omitempty"`
	TaximeterReceipt string  `json:"taximeter_receipt,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	CancelledBy string `json:"cancelled_by"`
	ByDriver    bool   `json:"by_driver,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// FareResponse is the JSON shape of a fare breakdown.
type FareResponse struct {
	BaseFare        float64 `json:"base_fare"`
	DistanceFare    float64 `json:"distance_fare"`
	TimeFare        float64 `json:"time_fare"`
	BookingFee      float64 `json:"booking_fee"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	SurgeAmount     float64 `json:"surge_amount"`
	Subtotal        float64 `json:"subtotal"`
	VATAmount       float64 `json:"vat_amount"`
	Total           float64 `json:"total"`
	Currency        string  `json:"currency"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID             string        `json:"id"`
	RiderID        string        `json:"rider_id"`
	DriverID       string        `json:"driver_id,omitempty"`
	VehicleID      string        `json:"vehicle_id,omitempty"`
	Status         string        `json:"status"`
	VehicleType    string        `json:"vehicle_type"`
	PickupLat      float64       `json:"pickup_lat"`
	PickupLng      float64       `json:"pickup_lng"`
	PickupAddress  string        `json:"pickup_address,omitempty"`
	DropoffLat     float64       `json:"dropoff_lat"`
	DropoffLng     float64       `json:"dropoff_lng"`
	DropoffAddress string        `json:"dropoff_address,omitempty"`
	PassengerCount int           `json:"passenger_count"`
	PaymentMethod  string        `json:"payment_method"`
	ScheduledFor   string        `json:"scheduled_for,omitempty"`
	Estimate       FareResponse  `json:"estimate"`
	Final          *FareResponse `json:"final,omitempty"`
	CancelledAt    string        `json:"cancelled_at,omitempty"`
	CancelledBy    string        `json:"cancelled_by,omitempty"`
	CancelReason   string        `json:"cancel_reason,omitempty"`
	CreatedAt      string        `json:"created_at"`
	CompletedAt    string        `json:"completed_at,omitempty"`
}

func fareResponse(f domain.FareEstimate) FareResponse {
	return FareResponse{
		BaseFare:        f.BaseFare,
		DistanceFare:    f.DistanceFare,
		TimeFare:        f.TimeFare,
		BookingFee:      f.BookingFee,
		SurgeMultiplier: f.SurgeMultiplier,
		SurgeAmount:     f.SurgeAmount,
		Subtotal:        f.Subtotal,
		VATAmount:       f.VATAmount,
		Total:           f.Total,
		Currency:        f.Currency,
		DistanceMeters:  f.DistanceMeters,
		DurationSeconds: f.DurationSeconds,
	}
}

func rideResponse(ride *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:             ride.ID,
		RiderID:        ride.RiderID,
		DriverID:       ride.DriverID,
		VehicleID:      ride.VehicleID,
		Status:         string(ride.Status),
		VehicleType:    string(ride.VehicleType),
		PickupLat:      ride.PickupLat,
		PickupLng:      ride.PickupLng,
		PickupAddress:  ride.PickupAddress,
		DropoffLat:     ride.DropoffLat,
		DropoffLng:     ride.DropoffLng,
		DropoffAddress: ride.DropoffAddress,
		PassengerCount: ride.PassengerCount,
		PaymentMethod:  string(ride.PaymentMethod),
		Estimate:       fareResponse(ride.Estimate),
		CreatedAt:      ride.CreatedAt.Format(time.RFC3339),
	}
	if ride.Scheduled {
		resp.ScheduledFor = ride.ScheduledFor.Format(time.RFC3339)
	}
	if ride.Final != nil {
		f := fareResponse(*ride.Final)
		resp.Final = &f
	}
	if !ride.CancelledAt.IsZero() {
		resp.CancelledAt = ride.CancelledAt.Format(time.RFC3339)
		resp.CancelledBy = ride.CancelledBy
		resp.CancelReason = ride.CancelReason
	}
	if !ride.CompletedAt.IsZero() {
		resp.CompletedAt = ride.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var scheduledFor *time.Time
	if req.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid scheduled_for, expected RFC 3339"})
			return
		}
		scheduledFor = &t
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		TenantID:       middleware.TenantID(c),
		RiderID:        req.RiderID,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		PickupAddress:  req.PickupAddress,
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,
		DropoffAddress: req.DropoffAddress,
		VehicleType:    domain.VehicleType(req.VehicleType),
		PassengerCount: req.PassengerCount,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		ScheduledFor:   scheduledFor,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, rideResponse(ride))
}

// Estimate handles POST /v1/estimates
func (h *RideHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	estimate, err := h.fareService.Estimate(c.Request.Context(), middleware.TenantID(c),
		req.PickupLat, req.PickupLng, req.DropoffLat, req.DropoffLng,
		domain.VehicleType(req.VehicleType))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, fareResponse(*estimate))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// UpdateStatus handles POST /v1/rides/:id/status
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	svcReq := service.UpdateStatusRequest{
		TenantID:        middleware.TenantID(c),
		RideID:          c.Param("id"),
		NewStatus:       domain.RideStatus(req.Status),
		ActualDistanceM: req.ActualDistanceM,
		ActualDurationS: req.ActualDurationS,
	}
	if req.TaximeterFare > 0 {
		svcReq.Taximeter = &domain.TaximeterReading{
			Fare:          req.TaximeterFare,
			SerialNumber:  req.TaximeterSerial,
			ReceiptNumber: req.TaximeterReceipt,
		}
	}

	ride, err := h.rideService.UpdateStatus(c.Request.Context(), svcReq)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), service.CancelRideRequest{
		TenantID:    middleware.TenantID(c),
		RideID:      c.Param("id"),
		CancelledBy: req.CancelledBy,
		ByDriver:    req.ByDriver,
		Reason:      req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rideResponse(ride))
}
