package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlevanov/flightbooking/internal/domain"
)

const flightColumns = `id, flight_number, airline, departure_city, arrival_city, departure_time, arrival_time, total_seats, available_seats, price_cents, created_at, updated_at`

// SearchQuery filters flights by route and departure date. After is the
// reference time for the future-departure filter.
type SearchQuery struct {
	DepartureCity string
	ArrivalCity   string
	DepartureDate time.Time
	After         time.Time
}

type FlightRepository interface {
	Create(ctx context.Context, flight *domain.Flight) error
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, q SearchQuery) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	// Delete refuses to remove a flight that bookings still reference.
	Delete(ctx context.Context, id int64) error
	// MarkFull is the administrative override: it forces available_seats to
	// zero outside the transition engine and returns the number of flights
	// updated.
	MarkFull(ctx context.Context, ids []int64) (int64, error)
	// IncreasePrices raises price_cents by the given percentage on the
	// selected flights. Existing bookings keep the total captured when they
	// were made.
	IncreasePrices(ctx context.Context, ids []int64, percent int) (int64, error)
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	err := r.db.QueryRow(ctx, `INSERT INTO flights (flight_number, airline, departure_city, arrival_city, departure_time, arrival_time, total_seats, available_seats, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		flight.FlightNumber, flight.Airline, flight.DepartureCity, flight.ArrivalCity,
		flight.DepartureTime, flight.ArrivalTime, flight.TotalSeats, flight.AvailableSeats, flight.PriceCents).
		Scan(&flight.ID, &flight.CreatedAt, &flight.UpdatedAt)
	return mapPgError(err)
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanFlights(rows)
}

func (r *PGFlightRepository) Search(ctx context.Context, q SearchQuery) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights
		WHERE lower(departure_city) = lower($1)
		  AND lower(arrival_city) = lower($2)
		  AND departure_time >= $3 AND departure_time < $3 + interval '1 day'
		  AND departure_time > $4
		  AND available_seats > 0
		ORDER BY departure_time`,
		q.DepartureCity, q.ArrivalCity, q.DepartureDate, q.After)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanFlights(rows)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id)
	var f domain.Flight
	if err := scanFlight(row, &f); err != nil {
		return nil, mapPgError(err)
	}
	return &f, nil
}

func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGFlightRepository) MarkFull(ctx context.Context, ids []int64) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE flights SET available_seats = 0, updated_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, mapPgError(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *PGFlightRepository) IncreasePrices(ctx context.Context, ids []int64, percent int) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE flights SET price_cents = price_cents + price_cents * $2 / 100, updated_at = now() WHERE id = ANY($1)`, ids, percent)
	if err != nil {
		return 0, mapPgError(err)
	}
	return cmd.RowsAffected(), nil
}

// lockFlightTx acquires the exclusive row lock on the flight and returns its
// current state. Every seat mutation in the booking repository goes through
// this lock, which serializes writers per flight for the transaction's
// lifetime.
func lockFlightTx(ctx context.Context, tx pgx.Tx, flightID int64) (*domain.Flight, error) {
	row := tx.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1 FOR UPDATE`, flightID)
	var f domain.Flight
	if err := scanFlight(row, &f); err != nil {
		return nil, mapPgError(err)
	}
	return &f, nil
}

// updateFlightSeatsTx persists the already-guarded seat count.
func updateFlightSeatsTx(ctx context.Context, tx pgx.Tx, flight *domain.Flight) error {
	_, err := tx.Exec(ctx, `UPDATE flights SET available_seats=$1, updated_at=now() WHERE id=$2`, flight.AvailableSeats, flight.ID)
	return mapPgError(err)
}

func scanFlight(row pgx.Row, f *domain.Flight) error {
	return row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.DepartureCity, &f.ArrivalCity,
		&f.DepartureTime, &f.ArrivalTime, &f.TotalSeats, &f.AvailableSeats, &f.PriceCents,
		&f.CreatedAt, &f.UpdatedAt)
}

func scanFlights(rows pgx.Rows) ([]domain.Flight, error) {
	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := scanFlight(rows, &f); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, mapPgError(rows.Err())
}

var _ FlightRepository = (*PGFlightRepository)(nil)
