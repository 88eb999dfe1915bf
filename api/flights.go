package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlevanov/flightbooking/internal/domain"
	"github.com/mlevanov/flightbooking/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.POST("/search", h.search)
}

type searchRequest struct {
	DepartureCity string `json:"departure_city" binding:"required"`
	ArrivalCity   string `json:"arrival_city" binding:"required"`
	DepartureDate string `json:"departure_date" binding:"required"`
	ReturnDate    string `json:"return_date"`
	TripType      string `json:"trip_type"`
	Adults        int    `json:"adults"`
	Children      int    `json:"children"`
	Infants       int    `json:"infants"`
}

type flightResponse struct {
	ID             int64  `json:"id"`
	FlightNumber   string `json:"flight_number"`
	Airline        string `json:"airline"`
	DepartureCity  string `json:"departure_city"`
	ArrivalCity    string `json:"arrival_city"`
	DepartureTime  string `json:"departure_time"`
	ArrivalTime    string `json:"arrival_time"`
	Duration       string `json:"duration"`
	PriceCents     int64  `json:"price_cents"`
	AvailableSeats int    `json:"available_seats"`
	TotalSeats     int    `json:"total_seats"`
}

func (h *FlightHandler) list(c *gin.Context) {
	flightList, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flightList)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	departureDate, err := time.Parse("2006-01-02", req.DepartureDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "departure_date must be YYYY-MM-DD"})
		return
	}

	input := flights.SearchInput{
		DepartureCity: req.DepartureCity,
		ArrivalCity:   req.ArrivalCity,
		DepartureDate: departureDate,
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
	}
	if req.TripType == "round-trip" && req.ReturnDate != "" {
		returnDate, err := time.Parse("2006-01-02", req.ReturnDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "return_date must be YYYY-MM-DD"})
			return
		}
		input.ReturnDate = &returnDate
	}

	result, err := h.service.Search(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"trip_type":        req.TripType,
		"outbound_flights": toFlightResponses(result.Outbound),
	}
	if result.Return != nil {
		resp["return_flights"] = toFlightResponses(result.Return)
	}
	c.JSON(http.StatusOK, resp)
}

func toFlightResponses(list []domain.Flight) []flightResponse {
	out := make([]flightResponse, 0, len(list))
	for i := range list {
		f := &list[i]
		out = append(out, flightResponse{
			ID:             f.ID,
			FlightNumber:   f.FlightNumber,
			Airline:        f.Airline,
			DepartureCity:  f.DepartureCity,
			ArrivalCity:    f.ArrivalCity,
			DepartureTime:  f.DepartureTime.Format(time.RFC3339),
			ArrivalTime:    f.ArrivalTime.Format(time.RFC3339),
			Duration:       f.Duration(),
			PriceCents:     f.PriceCents,
			AvailableSeats: f.AvailableSeats,
			TotalSeats:     f.TotalSeats,
		})
	}
	return out
}
