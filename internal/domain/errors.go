package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced flight or booking does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIllegalTransition is returned for a (from, to) status pair absent
	// from the transition table.
	ErrIllegalTransition = errors.New("illegal booking status transition")

	// ErrBusy is returned when the flight row lock could not be acquired in
	// time. The operation left no partial state and may be retried.
	ErrBusy = errors.New("inventory is busy, try again")

	// ErrFlightHasBookings is returned when deleting a flight that bookings
	// still reference.
	ErrFlightHasBookings = errors.New("flight has bookings and cannot be deleted")

	// ErrReferenceTaken signals a booking reference collision. Collisions are
	// re-rolled internally; the caller sees this error only when every
	// attempt collided.
	ErrReferenceTaken = errors.New("booking reference already taken")
)

// ValidationError reports malformed or out-of-range input. No mutation has
// occurred when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// InsufficientSeatsError reports that the requested seat delta exceeded the
// availability observed under the row lock.
type InsufficientSeatsError struct {
	FlightID  int64
	Requested int
	Available int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("flight %d: requested %d seat(s), only %d available", e.FlightID, e.Requested, e.Available)
}

// InvariantViolationError means the seat-count guard fired. It should be
// unreachable given correct pre-checks and is treated as a bug-class error:
// logged, transaction aborted.
type InvariantViolationError struct {
	FlightID  int64
	Available int
	Total     int
	Delta     int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("flight %d: seat delta %d would leave %d/%d seats", e.FlightID, e.Delta, e.Available+e.Delta, e.Total)
}
