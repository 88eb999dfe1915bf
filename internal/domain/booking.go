package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is a passenger's reservation against a flight. Bookings are never
// physically deleted; cancellation is a status change.
type Booking struct {
	ID              int64         `json:"id"`
	AccountID       *int64        `json:"account_id,omitempty"`
	FlightID        int64         `json:"flight_id"`
	Reference       string        `json:"booking_reference"`
	PassengerName   string        `json:"passenger_name"`
	PassengerEmail  string        `json:"passenger_email"`
	PassengerPhone  string        `json:"passenger_phone,omitempty"`
	SeatsBooked     int           `json:"seats_booked"`
	TotalPriceCents int64         `json:"total_price_cents"`
	Status          BookingStatus `json:"status"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ConfirmedAt     *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
}

// TransitionPlan is the seat and timestamp effect of one legal status
// transition, looked up from the transition table. SetConfirmedAt stamps
// confirmed_at and clears cancelled_at; SetCancelledAt does the reverse, so
// at most one of the two timestamps is set at any time.
type TransitionPlan struct {
	SeatDelta      int
	SetConfirmedAt bool
	SetCancelledAt bool
	// NoOp marks an equal-state transition that must be reported as
	// applied=false without touching inventory.
	NoOp bool
}

type transitionKey struct {
	from BookingStatus
	to   BookingStatus
}

// legalTransitions maps every permitted (from, to) pair to its seat effect.
// Seat deltas are expressed per booked seat and scaled by PlanTransition.
// Anything absent from the table is an illegal transition.
var legalTransitions = map[transitionKey]TransitionPlan{
	{BookingStatusPending, BookingStatusConfirmed}:   {SeatDelta: -1, SetConfirmedAt: true},
	{BookingStatusConfirmed, BookingStatusCancelled}: {SeatDelta: +1, SetCancelledAt: true},
	{BookingStatusCancelled, BookingStatusConfirmed}: {SeatDelta: -1, SetConfirmedAt: true},
	{BookingStatusPending, BookingStatusCancelled}:   {SetCancelledAt: true},

	// Equal-state transitions are idempotent no-ops.
	{BookingStatusPending, BookingStatusPending}:     {NoOp: true},
	{BookingStatusConfirmed, BookingStatusConfirmed}: {NoOp: true},
	{BookingStatusCancelled, BookingStatusCancelled}: {NoOp: true},
}

// PlanTransition looks up the transition from the table and scales its seat
// effect by the booking's seat count. Pairs not in the table (for example
// Confirmed back to Pending) fail with ErrIllegalTransition.
func PlanTransition(from, to BookingStatus, seatsBooked int) (TransitionPlan, error) {
	plan, ok := legalTransitions[transitionKey{from, to}]
	if !ok {
		return TransitionPlan{}, ErrIllegalTransition
	}
	plan.SeatDelta *= seatsBooked
	return plan, nil
}

// PlanInitial returns the seat effect of creating a booking directly in the
// given status. Only Pending and Confirmed are valid starting states.
func PlanInitial(status BookingStatus, seatsBooked int) (TransitionPlan, error) {
	switch status {
	case BookingStatusPending:
		return TransitionPlan{}, nil
	case BookingStatusConfirmed:
		return TransitionPlan{SeatDelta: -seatsBooked, SetConfirmedAt: true}, nil
	default:
		return TransitionPlan{}, ErrIllegalTransition
	}
}

// PlanAmend returns the signed seat difference for changing a Confirmed
// booking's seat count. Amendment of any other status is illegal.
func PlanAmend(status BookingStatus, oldSeats, newSeats int) (TransitionPlan, error) {
	if status != BookingStatusConfirmed {
		return TransitionPlan{}, ErrIllegalTransition
	}
	if newSeats < 1 {
		return TransitionPlan{}, &ValidationError{Field: "seats_booked", Reason: "must be at least 1"}
	}
	return TransitionPlan{SeatDelta: -(newSeats - oldSeats)}, nil
}

// ApplyTransition mutates the booking's status and timestamps per the plan.
// Seat effects are applied to the flight row separately, inside the same
// transaction.
func (b *Booking) ApplyTransition(plan TransitionPlan, to BookingStatus, now time.Time) {
	if plan.NoOp {
		return
	}
	b.Status = to
	if plan.SetConfirmedAt {
		t := now
		b.ConfirmedAt = &t
		b.CancelledAt = nil
	}
	if plan.SetCancelledAt {
		t := now
		b.CancelledAt = &t
		b.ConfirmedAt = nil
	}
}

// CanCancel reports whether the booking may be cancelled: it must be
// Confirmed and its flight must not have departed. A booking whose flight
// already departed is permanently non-cancellable.
func (b *Booking) CanCancel(flight *Flight, now time.Time) bool {
	return b.Status == BookingStatusConfirmed && flight.DepartureTime.After(now)
}

// IsActive reports whether the booking is Confirmed on a flight that has
// not yet departed. Used by dashboards.
func (b *Booking) IsActive(flight *Flight, now time.Time) bool {
	return b.Status == BookingStatusConfirmed && flight.DepartureTime.After(now)
}

// Validate checks booking invariants that do not need the flight row.
func (b *Booking) Validate() error {
	if b.FlightID == 0 {
		return &ValidationError{Field: "flight_id", Reason: "is required"}
	}
	if b.PassengerName == "" {
		return &ValidationError{Field: "passenger_name", Reason: "is required"}
	}
	if b.PassengerEmail == "" {
		return &ValidationError{Field: "passenger_email", Reason: "is required"}
	}
	if b.SeatsBooked < 1 {
		return &ValidationError{Field: "seats_booked", Reason: "must be at least 1"}
	}
	return nil
}
