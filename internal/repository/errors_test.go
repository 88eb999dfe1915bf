package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/mlevanov/flightbooking/internal/domain"
)

func TestMapPgError(t *testing.T) {
	assert.NoError(t, mapPgError(nil))

	assert.ErrorIs(t, mapPgError(pgx.ErrNoRows), domain.ErrNotFound)

	assert.ErrorIs(t, mapPgError(&pgconn.PgError{Code: pgCodeLockNotAvailable}), domain.ErrBusy)
	assert.ErrorIs(t, mapPgError(&pgconn.PgError{Code: pgCodeDeadlockDetected}), domain.ErrBusy)

	assert.ErrorIs(t, mapPgError(&pgconn.PgError{Code: pgCodeForeignKeyRestrict}), domain.ErrFlightHasBookings)

	refErr := &pgconn.PgError{Code: pgCodeUniqueViolation, ConstraintName: "bookings_booking_reference_key"}
	assert.ErrorIs(t, mapPgError(refErr), domain.ErrReferenceTaken)

	otherUnique := &pgconn.PgError{Code: pgCodeUniqueViolation, ConstraintName: "flights_flight_number_key"}
	assert.NotErrorIs(t, mapPgError(otherUnique), domain.ErrReferenceTaken)

	plain := errors.New("boom")
	assert.Equal(t, plain, mapPgError(plain))
}
