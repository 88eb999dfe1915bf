package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlevanov/flightbooking/internal/domain"
	"github.com/mlevanov/flightbooking/internal/service/booking"
	"github.com/mlevanov/flightbooking/internal/service/flights"
)

// AdminHandler exposes the bulk operations and the inventory override.
type AdminHandler struct {
	bookings booking.BookingUseCase
	flights  flights.FlightUseCase
}

func NewAdminHandler(bookings booking.BookingUseCase, flightSvc flights.FlightUseCase) *AdminHandler {
	return &AdminHandler{bookings: bookings, flights: flightSvc}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.POST("/bookings/confirm", h.confirmBookings)
	router.POST("/bookings/cancel", h.cancelBookings)
	router.PUT("/bookings/:id/status", h.setBookingStatus)
	router.POST("/flights", h.createFlight)
	router.DELETE("/flights/:id", h.deleteFlight)
	router.POST("/flights/mark-full", h.markFlightsFull)
	router.POST("/flights/increase-price", h.increaseFlightPrices)
}

type bulkBookingRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

type increasePriceRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
	// Percent defaults to 10, the standard bulk raise.
	Percent int `json:"percent"`
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING CONFIRMED CANCELLED"`
}

type createFlightRequest struct {
	FlightNumber   string `json:"flight_number" binding:"required"`
	Airline        string `json:"airline" binding:"required"`
	DepartureCity  string `json:"departure_city" binding:"required"`
	ArrivalCity    string `json:"arrival_city" binding:"required"`
	DepartureTime  string `json:"departure_time" binding:"required"`
	ArrivalTime    string `json:"arrival_time" binding:"required"`
	TotalSeats     int    `json:"total_seats" binding:"required,min=1"`
	AvailableSeats int    `json:"available_seats"`
	PriceCents     int64  `json:"price_cents" binding:"required,min=1"`
}

func (h *AdminHandler) confirmBookings(c *gin.Context) {
	var req bulkBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	count, err := h.bookings.ConfirmBookings(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": count})
}

func (h *AdminHandler) cancelBookings(c *gin.Context) {
	var req bulkBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	count, err := h.bookings.CancelBookings(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": count})
}

func (h *AdminHandler) setBookingStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	b, applied, err := h.bookings.SetBookingStatus(c.Request.Context(), id, domain.BookingStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b), "applied": applied})
}

func (h *AdminHandler) createFlight(c *gin.Context) {
	var req createFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	departure, err := time.Parse(time.RFC3339, req.DepartureTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "departure_time must be RFC3339"})
		return
	}
	arrival, err := time.Parse(time.RFC3339, req.ArrivalTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "arrival_time must be RFC3339"})
		return
	}

	flight := &domain.Flight{
		FlightNumber:   req.FlightNumber,
		Airline:        req.Airline,
		DepartureCity:  req.DepartureCity,
		ArrivalCity:    req.ArrivalCity,
		DepartureTime:  departure,
		ArrivalTime:    arrival,
		TotalSeats:     req.TotalSeats,
		AvailableSeats: req.AvailableSeats,
		PriceCents:     req.PriceCents,
	}
	if err := h.flights.Create(c.Request.Context(), flight); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flight)
}

func (h *AdminHandler) deleteFlight(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.flights.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) markFlightsFull(c *gin.Context) {
	var req bulkBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	updated, err := h.flights.MarkFull(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *AdminHandler) increaseFlightPrices(c *gin.Context) {
	var req increasePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Percent == 0 {
		req.Percent = 10
	}
	updated, err := h.flights.IncreasePrices(c.Request.Context(), req.IDs, req.Percent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "percent": req.Percent})
}
