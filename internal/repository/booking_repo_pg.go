package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlevanov/flightbooking/internal/domain"
)

const bookingColumns = `id, account_id, flight_id, booking_reference, passenger_name, passenger_email, passenger_phone, seats_booked, total_price_cents, status, special_requests, created_at, confirmed_at, cancelled_at`

// lockTimeout bounds how long a transaction waits for the flight row lock.
// Past it the store raises lock_not_available, which surfaces as ErrBusy.
const lockTimeout = "3s"

type BookingRepository interface {
	// Create inserts the booking and, when its status is Confirmed, deducts
	// the seats in the same transaction. The total price is fixed from the
	// flight's price read under the row lock.
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Booking, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	// Confirm applies Pending -> Confirmed. Any other current status is an
	// applied=false no-op.
	Confirm(ctx context.Context, id int64) (*domain.Booking, bool, error)
	// Cancel applies Confirmed -> Cancelled when the flight has not departed;
	// otherwise it is an applied=false no-op.
	Cancel(ctx context.Context, id int64) (*domain.Booking, bool, error)
	// SetStatus applies any transition the table permits, including the
	// Cancelled -> Confirmed re-confirm. Equal-state calls are applied=false
	// no-ops; pairs outside the table fail with ErrIllegalTransition.
	SetStatus(ctx context.Context, id int64, to domain.BookingStatus) (*domain.Booking, bool, error)
	// AmendSeats changes a Confirmed booking's seat count, adjusting
	// inventory by the signed difference.
	AmendSeats(ctx context.Context, id int64, newSeats int) (*domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	plan, err := domain.PlanInitial(booking.Status, booking.SeatsBooked)
	if err != nil {
		return err
	}

	tx, err := r.beginLocked(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	flight, err := lockFlightTx(ctx, tx, booking.FlightID)
	if err != nil {
		return err
	}

	// Price is fixed at lock time, before any mutation.
	booking.TotalPriceCents = int64(booking.SeatsBooked) * flight.PriceCents

	if err := applySeatDelta(ctx, tx, flight, plan.SeatDelta, booking.SeatsBooked); err != nil {
		return err
	}

	now := time.Now().UTC()
	if plan.SetConfirmedAt {
		booking.ConfirmedAt = &now
	}
	err = tx.QueryRow(ctx, `INSERT INTO bookings (account_id, flight_id, booking_reference, passenger_name, passenger_email, passenger_phone, seats_booked, total_price_cents, status, special_requests, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		booking.AccountID, booking.FlightID, booking.Reference, booking.PassengerName,
		booking.PassengerEmail, booking.PassengerPhone, booking.SeatsBooked,
		booking.TotalPriceCents, booking.Status, booking.SpecialRequests, booking.ConfirmedAt).
		Scan(&booking.ID, &booking.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	var b domain.Booking
	if err := scanBooking(row, &b); err != nil {
		return nil, mapPgError(err)
	}
	return &b, nil
}

func (r *PGBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_reference=$1`, reference)
	var b domain.Booking
	if err := scanBooking(row, &b); err != nil {
		return nil, mapPgError(err)
	}
	return &b, nil
}

func (r *PGBookingRepository) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE passenger_email=$1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		var b domain.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, mapPgError(rows.Err())
}

func (r *PGBookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_reference=$1)`, reference).Scan(&exists)
	return exists, mapPgError(err)
}

func (r *PGBookingRepository) Confirm(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	return r.transition(ctx, id, domain.BookingStatusConfirmed, func(b *domain.Booking, f *domain.Flight, now time.Time) bool {
		return b.Status == domain.BookingStatusPending
	})
}

func (r *PGBookingRepository) Cancel(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	return r.transition(ctx, id, domain.BookingStatusCancelled, func(b *domain.Booking, f *domain.Flight, now time.Time) bool {
		return b.CanCancel(f, now)
	})
}

func (r *PGBookingRepository) SetStatus(ctx context.Context, id int64, to domain.BookingStatus) (*domain.Booking, bool, error) {
	return r.transition(ctx, id, to, nil)
}

// transition runs one atomic status transition: lock the flight row, re-read
// the booking's persisted state under the same transaction, plan the seat
// delta from the table, guard availability, and commit both mutations
// together. The gate decides, from locked state, whether the operation
// applies at all; a closed gate is an applied=false no-op.
func (r *PGBookingRepository) transition(ctx context.Context, id int64, to domain.BookingStatus, gate func(*domain.Booking, *domain.Flight, time.Time) bool) (*domain.Booking, bool, error) {
	tx, err := r.beginLocked(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	booking, err := lockBookingTx(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	flight, err := lockFlightTx(ctx, tx, booking.FlightID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	if gate != nil && !gate(booking, flight, now) {
		return booking, false, nil
	}

	plan, err := domain.PlanTransition(booking.Status, to, booking.SeatsBooked)
	if err != nil {
		return nil, false, err
	}
	if plan.NoOp {
		return booking, false, nil
	}

	if err := applySeatDelta(ctx, tx, flight, plan.SeatDelta, booking.SeatsBooked); err != nil {
		return nil, false, err
	}

	booking.ApplyTransition(plan, to, now)
	if err := updateBookingTx(ctx, tx, booking); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, mapPgError(err)
	}
	return booking, true, nil
}

func (r *PGBookingRepository) AmendSeats(ctx context.Context, id int64, newSeats int) (*domain.Booking, error) {
	tx, err := r.beginLocked(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	booking, err := lockBookingTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	flight, err := lockFlightTx(ctx, tx, booking.FlightID)
	if err != nil {
		return nil, err
	}

	plan, err := domain.PlanAmend(booking.Status, booking.SeatsBooked, newSeats)
	if err != nil {
		return nil, err
	}
	delta := newSeats - booking.SeatsBooked
	if delta == 0 {
		return booking, nil
	}

	if err := applySeatDelta(ctx, tx, flight, plan.SeatDelta, delta); err != nil {
		return nil, err
	}

	booking.SeatsBooked = newSeats
	if err := updateBookingTx(ctx, tx, booking); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return booking, nil
}

// beginLocked starts a transaction with a bounded lock wait so a contended
// flight row cannot stall callers indefinitely.
func (r *PGBookingRepository) beginLocked(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `SET LOCAL lock_timeout = '`+lockTimeout+`'`); err != nil {
		_ = tx.Rollback(ctx)
		return nil, mapPgError(err)
	}
	return tx, nil
}

// applySeatDelta validates a deduction against locked availability, runs the
// domain invariant guard, and persists the new count. requested is only used
// to report how many seats the caller actually asked for.
func applySeatDelta(ctx context.Context, tx pgx.Tx, flight *domain.Flight, delta, requested int) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 && -delta > flight.AvailableSeats {
		if requested < 0 {
			requested = -requested
		}
		return &domain.InsufficientSeatsError{
			FlightID:  flight.ID,
			Requested: requested,
			Available: flight.AvailableSeats,
		}
	}
	if err := flight.ApplySeatDelta(delta); err != nil {
		return err
	}
	return updateFlightSeatsTx(ctx, tx, flight)
}

func lockBookingTx(ctx context.Context, tx pgx.Tx, id int64) (*domain.Booking, error) {
	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id)
	var b domain.Booking
	if err := scanBooking(row, &b); err != nil {
		return nil, mapPgError(err)
	}
	return &b, nil
}

func updateBookingTx(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	_, err := tx.Exec(ctx, `UPDATE bookings SET status=$1, seats_booked=$2, confirmed_at=$3, cancelled_at=$4 WHERE id=$5`,
		b.Status, b.SeatsBooked, b.ConfirmedAt, b.CancelledAt, b.ID)
	return mapPgError(err)
}

func scanBooking(row pgx.Row, b *domain.Booking) error {
	return row.Scan(&b.ID, &b.AccountID, &b.FlightID, &b.Reference, &b.PassengerName,
		&b.PassengerEmail, &b.PassengerPhone, &b.SeatsBooked, &b.TotalPriceCents,
		&b.Status, &b.SpecialRequests, &b.CreatedAt, &b.ConfirmedAt, &b.CancelledAt)
}

var _ BookingRepository = (*PGBookingRepository)(nil)
