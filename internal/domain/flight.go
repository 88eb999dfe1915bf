package domain

import (
	"fmt"
	"time"
)

// Flight is the capacity and availability record for one scheduled flight.
// AvailableSeats is the single source of truth for how many seats are left;
// it is mutated only inside the booking transition transactions.
type Flight struct {
	ID             int64     `json:"id"`
	FlightNumber   string    `json:"flight_number"`
	Airline        string    `json:"airline"`
	DepartureCity  string    `json:"departure_city"`
	ArrivalCity    string    `json:"arrival_city"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	PriceCents     int64     `json:"price_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the flight invariants before it is persisted.
func (f *Flight) Validate() error {
	if f.FlightNumber == "" {
		return &ValidationError{Field: "flight_number", Reason: "is required"}
	}
	if f.DepartureCity == "" || f.ArrivalCity == "" {
		return &ValidationError{Field: "route", Reason: "departure and arrival cities are required"}
	}
	if !f.DepartureTime.Before(f.ArrivalTime) {
		return &ValidationError{Field: "arrival_time", Reason: "must be after departure time"}
	}
	if f.TotalSeats < 1 {
		return &ValidationError{Field: "total_seats", Reason: "must be at least 1"}
	}
	if f.AvailableSeats < 0 || f.AvailableSeats > f.TotalSeats {
		return &ValidationError{Field: "available_seats", Reason: "must be between 0 and total seats"}
	}
	if f.PriceCents <= 0 {
		return &ValidationError{Field: "price_cents", Reason: "must be positive"}
	}
	return nil
}

// ApplySeatDelta adjusts AvailableSeats by the signed delta. It is the
// last-resort guard for the 0 <= available <= total invariant; the ledger's
// pre-check under the row lock should make a violation here unreachable.
func (f *Flight) ApplySeatDelta(delta int) error {
	next := f.AvailableSeats + delta
	if next < 0 || next > f.TotalSeats {
		return &InvariantViolationError{
			FlightID:  f.ID,
			Available: f.AvailableSeats,
			Total:     f.TotalSeats,
			Delta:     delta,
		}
	}
	f.AvailableSeats = next
	return nil
}

// IsBookable reports whether the flight can still accept bookings.
func (f *Flight) IsBookable(now time.Time) bool {
	return f.AvailableSeats > 0 && f.DepartureTime.After(now)
}

// Duration returns the scheduled flight time as "3h 45m".
func (f *Flight) Duration() string {
	d := f.ArrivalTime.Sub(f.DepartureTime)
	if d <= 0 {
		return "N/A"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%dh %dm", total/3600, total%3600/60)
}

// PercentFull returns the occupied share of seats as a whole percentage.
func (f *Flight) PercentFull() int {
	if f.TotalSeats <= 0 {
		return 0
	}
	return (f.TotalSeats - f.AvailableSeats) * 100 / f.TotalSeats
}
