package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlevanov/flightbooking/internal/domain"
	"github.com/mlevanov/flightbooking/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.listByEmail)
	router.GET("/:id", h.get)
	router.GET("/reference/:reference", h.getByReference)
	router.PUT("/:id/confirm", h.confirm)
	router.PUT("/:id/cancel", h.cancel)
	router.PUT("/:id/seats", h.amendSeats)
}

type createBookingRequest struct {
	FlightID        int64  `json:"flight_id" binding:"required"`
	AccountID       *int64 `json:"account_id"`
	PassengerName   string `json:"passenger_name" binding:"required"`
	PassengerEmail  string `json:"passenger_email" binding:"required,email"`
	PassengerPhone  string `json:"passenger_phone"`
	SeatsBooked     int    `json:"seats_booked" binding:"required,min=1"`
	SpecialRequests string `json:"special_requests"`

	// Mock payment fields: accepted for interface compatibility, never
	// validated or charged.
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_expiry"`
	CardCVV    string `json:"card_cvv"`
}

type amendSeatsRequest struct {
	SeatsBooked int `json:"seats_booked" binding:"required,min=1"`
}

type bookingResponse struct {
	ID              int64  `json:"id"`
	Reference       string `json:"booking_reference"`
	FlightID        int64  `json:"flight_id"`
	PassengerName   string `json:"passenger_name"`
	PassengerEmail  string `json:"passenger_email"`
	SeatsBooked     int    `json:"seats_booked"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	ConfirmedAt     string `json:"confirmed_at,omitempty"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:              b.ID,
		Reference:       b.Reference,
		FlightID:        b.FlightID,
		PassengerName:   b.PassengerName,
		PassengerEmail:  b.PassengerEmail,
		SeatsBooked:     b.SeatsBooked,
		TotalPriceCents: b.TotalPriceCents,
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
	}
	if b.ConfirmedAt != nil {
		resp.ConfirmedAt = b.ConfirmedAt.Format(time.RFC3339)
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.Format(time.RFC3339)
	}
	return resp
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// The public purchase flow books seats immediately.
	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		FlightID:        req.FlightID,
		AccountID:       req.AccountID,
		PassengerName:   req.PassengerName,
		PassengerEmail:  req.PassengerEmail,
		PassengerPhone:  req.PassengerPhone,
		Seats:           req.SeatsBooked,
		SpecialRequests: req.SpecialRequests,
		InitialStatus:   domain.BookingStatusConfirmed,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	active, err := h.service.IsActive(c.Request.Context(), b)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := toBookingResponse(b)
	c.JSON(http.StatusOK, gin.H{"booking": resp, "is_active": active})
}

func (h *BookingHandler) getByReference(c *gin.Context) {
	b, err := h.service.GetBookingByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) listByEmail(c *gin.Context) {
	email := c.Query("email")
	bookings, err := h.service.ListBookingsByEmail(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) confirm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, applied, err := h.service.ConfirmBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b), "applied": applied})
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, applied, err := h.service.CancelBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b), "applied": applied})
}

func (h *BookingHandler) amendSeats(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req amendSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	b, err := h.service.AmendSeats(c.Request.Context(), id, req.SeatsBooked)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
