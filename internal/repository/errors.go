package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mlevanov/flightbooking/internal/domain"
)

// Postgres error codes the repositories care about.
const (
	pgCodeLockNotAvailable   = "55P03"
	pgCodeDeadlockDetected   = "40P01"
	pgCodeForeignKeyRestrict = "23503"
	pgCodeUniqueViolation    = "23505"
)

// mapPgError translates driver errors into the domain taxonomy. Lock waits
// that ran out and deadlock victims become ErrBusy (retryable, nothing was
// committed); restricted deletes and reference collisions get their own
// sentinels.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeLockNotAvailable, pgCodeDeadlockDetected:
			return domain.ErrBusy
		case pgCodeForeignKeyRestrict:
			return domain.ErrFlightHasBookings
		case pgCodeUniqueViolation:
			if pgErr.ConstraintName == "bookings_booking_reference_key" {
				return domain.ErrReferenceTaken
			}
		}
	}
	return err
}
