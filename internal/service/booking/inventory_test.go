package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlevanov/flightbooking/internal/domain"
	"github.com/mlevanov/flightbooking/internal/repository"
)

// memoryStore backs both repository interfaces with in-memory state so the
// seat accounting can be exercised under real goroutine contention. The
// single mutex stands in for the flight row lock: every mutation reads and
// writes inventory atomically, exactly as the transactional repository does.
type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	flights  map[int64]*domain.Flight
	bookings map[int64]*domain.Booking
}

func newMemoryStore(flights ...*domain.Flight) *memoryStore {
	s := &memoryStore{
		flights:  make(map[int64]*domain.Flight),
		bookings: make(map[int64]*domain.Booking),
	}
	for _, f := range flights {
		s.flights[f.ID] = f
	}
	return s
}

func (s *memoryStore) applySeatDelta(flight *domain.Flight, delta, requested int) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 && -delta > flight.AvailableSeats {
		if requested < 0 {
			requested = -requested
		}
		return &domain.InsufficientSeatsError{FlightID: flight.ID, Requested: requested, Available: flight.AvailableSeats}
	}
	return flight.ApplySeatDelta(delta)
}

func (s *memoryStore) Create(ctx context.Context, booking *domain.Booking) error {
	plan, err := domain.PlanInitial(booking.Status, booking.SeatsBooked)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flight, ok := s.flights[booking.FlightID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, existing := range s.bookings {
		if existing.Reference == booking.Reference {
			return domain.ErrReferenceTaken
		}
	}

	booking.TotalPriceCents = int64(booking.SeatsBooked) * flight.PriceCents
	if err := s.applySeatDelta(flight, plan.SeatDelta, booking.SeatsBooked); err != nil {
		return err
	}

	now := time.Now().UTC()
	if plan.SetConfirmedAt {
		booking.ConfirmedAt = &now
	}
	s.nextID++
	booking.ID = s.nextID
	booking.CreatedAt = now

	stored := *booking
	s.bookings[booking.ID] = &stored
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *memoryStore) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.Reference == reference {
			copied := *b
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memoryStore) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if b.PassengerEmail == email {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memoryStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) Confirm(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	return s.transition(id, domain.BookingStatusConfirmed, func(b *domain.Booking, f *domain.Flight, now time.Time) bool {
		return b.Status == domain.BookingStatusPending
	})
}

func (s *memoryStore) Cancel(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	return s.transition(id, domain.BookingStatusCancelled, func(b *domain.Booking, f *domain.Flight, now time.Time) bool {
		return b.CanCancel(f, now)
	})
}

func (s *memoryStore) SetStatus(ctx context.Context, id int64, to domain.BookingStatus) (*domain.Booking, bool, error) {
	return s.transition(id, to, nil)
}

func (s *memoryStore) transition(id int64, to domain.BookingStatus, gate func(*domain.Booking, *domain.Flight, time.Time) bool) (*domain.Booking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	flight, ok := s.flights[booking.FlightID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}

	now := time.Now().UTC()
	if gate != nil && !gate(booking, flight, now) {
		copied := *booking
		return &copied, false, nil
	}

	plan, err := domain.PlanTransition(booking.Status, to, booking.SeatsBooked)
	if err != nil {
		return nil, false, err
	}
	if plan.NoOp {
		copied := *booking
		return &copied, false, nil
	}

	if err := s.applySeatDelta(flight, plan.SeatDelta, booking.SeatsBooked); err != nil {
		return nil, false, err
	}
	booking.ApplyTransition(plan, to, now)

	copied := *booking
	return &copied, true, nil
}

func (s *memoryStore) AmendSeats(ctx context.Context, id int64, newSeats int) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	flight, ok := s.flights[booking.FlightID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	plan, err := domain.PlanAmend(booking.Status, booking.SeatsBooked, newSeats)
	if err != nil {
		return nil, err
	}
	delta := newSeats - booking.SeatsBooked
	if delta == 0 {
		copied := *booking
		return &copied, nil
	}

	if err := s.applySeatDelta(flight, plan.SeatDelta, delta); err != nil {
		return nil, err
	}
	booking.SeatsBooked = newSeats

	copied := *booking
	return &copied, nil
}

func (s *memoryStore) CreateFlight(ctx context.Context, flight *domain.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	flight.ID = s.nextID
	s.flights[flight.ID] = flight
	return nil
}

func (s *memoryStore) List(ctx context.Context) ([]domain.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Flight, 0, len(s.flights))
	for _, f := range s.flights {
		out = append(out, *f)
	}
	return out, nil
}

func (s *memoryStore) Search(ctx context.Context, q repository.SearchQuery) ([]domain.Flight, error) {
	return nil, nil
}

func (s *memoryStore) GetFlightByID(ctx context.Context, id int64) (*domain.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (s *memoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.FlightID == id {
			return domain.ErrFlightHasBookings
		}
	}
	delete(s.flights, id)
	return nil
}

func (s *memoryStore) IncreasePrices(ctx context.Context, ids []int64, percent int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if f, ok := s.flights[id]; ok {
			f.PriceCents += f.PriceCents * int64(percent) / 100
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) MarkFull(ctx context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if f, ok := s.flights[id]; ok {
			f.AvailableSeats = 0
			n++
		}
	}
	return n, nil
}

// flightStore projects the flight half of the memoryStore onto the flight
// repository interface, with Create and GetByID renamed to avoid colliding
// with the booking methods on the same struct.
type flightStore struct {
	*memoryStore
}

func (f flightStore) Create(ctx context.Context, flight *domain.Flight) error {
	return f.CreateFlight(ctx, flight)
}

func (f flightStore) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return f.GetFlightByID(ctx, id)
}

var (
	_ repository.BookingRepository = (*memoryStore)(nil)
	_ repository.FlightRepository  = flightStore{}
)

func testFlight(id int64, seats int) *domain.Flight {
	now := time.Now().UTC()
	return &domain.Flight{
		ID:             id,
		FlightNumber:   "FB100",
		Airline:        "FlightBooking Air",
		DepartureCity:  "Moscow",
		ArrivalCity:    "Kazan",
		DepartureTime:  now.Add(48 * time.Hour),
		ArrivalTime:    now.Add(50 * time.Hour),
		TotalSeats:     seats,
		AvailableSeats: seats,
		PriceCents:     20000,
	}
}

func newTestService(store *memoryStore) *BookingService {
	return NewBookingService(store, flightStore{store}, nil, "")
}

func TestConcurrentCreate_NoOverbooking(t *testing.T) {
	const seats = 5
	const contenders = 20

	store := newMemoryStore(testFlight(1, seats))
	service := newTestService(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.CreateBooking(ctx, CreateBookingInput{
				FlightID:       1,
				PassengerName:  fmt.Sprintf("Passenger %d", i),
				PassengerEmail: fmt.Sprintf("p%d@example.com", i),
				Seats:          1,
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			var insufficient *domain.InsufficientSeatsError
			require.ErrorAs(t, err, &insufficient)
			rejected++
		}
	}

	assert.Equal(t, seats, succeeded)
	assert.Equal(t, contenders-seats, rejected)

	flight, err := store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, flight.AvailableSeats, "every seat is booked exactly once")
}

func TestConcurrentTransitions_SeatsConserved(t *testing.T) {
	const seats = 50
	const bookings = 30

	store := newMemoryStore(testFlight(1, seats))
	service := newTestService(store)
	ctx := context.Background()

	ids := make([]int64, 0, bookings)
	for i := 0; i < bookings; i++ {
		b, err := service.CreateBooking(ctx, CreateBookingInput{
			FlightID:       1,
			PassengerName:  fmt.Sprintf("Passenger %d", i),
			PassengerEmail: fmt.Sprintf("p%d@example.com", i),
			Seats:          1,
		})
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	// Hammer the same bookings with racing cancels and re-confirms. Whatever
	// interleaving wins, booked seats plus available seats must equal capacity.
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _, _ = service.CancelBooking(ctx, id)
		}(id)
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _, _ = service.SetBookingStatus(ctx, id, domain.BookingStatusConfirmed)
		}(id)
	}
	wg.Wait()

	flight, err := store.GetFlightByID(ctx, 1)
	require.NoError(t, err)

	booked := 0
	for _, id := range ids {
		b, err := store.GetByID(ctx, id)
		require.NoError(t, err)
		if b.Status == domain.BookingStatusConfirmed {
			booked += b.SeatsBooked
		}
	}
	assert.Equal(t, flight.TotalSeats, flight.AvailableSeats+booked)
}

func TestBookingLifecycle(t *testing.T) {
	store := newMemoryStore(testFlight(1, 100))
	service := newTestService(store)
	ctx := context.Background()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		FlightID:       1,
		PassengerName:  "John Smith",
		PassengerEmail: "john@example.com",
		Seats:          3,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, int64(60000), booking.TotalPriceCents)
	assert.NotNil(t, booking.ConfirmedAt)
	assert.Nil(t, booking.CancelledAt)

	flight, err := store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 97, flight.AvailableSeats)

	cancelled, applied, err := service.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Nil(t, cancelled.ConfirmedAt)

	flight, err = store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, flight.AvailableSeats, "cancellation releases the seats")

	// A second cancel changes nothing.
	again, applied, err := service.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.BookingStatusCancelled, again.Status)

	flight, err = store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, flight.AvailableSeats)
}

func TestCancelAfterDeparture_NoOp(t *testing.T) {
	flight := testFlight(1, 10)
	store := newMemoryStore(flight)
	service := newTestService(store)
	ctx := context.Background()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		FlightID:       1,
		PassengerName:  "John Smith",
		PassengerEmail: "john@example.com",
		Seats:          2,
	})
	require.NoError(t, err)

	store.mu.Lock()
	flight.DepartureTime = time.Now().UTC().Add(-time.Hour)
	store.mu.Unlock()

	b, applied, err := service.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)

	got, err := store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, got.AvailableSeats, "seats stay committed after departure")
}

func TestAmendSeats_AdjustsInventoryBySignedDelta(t *testing.T) {
	store := newMemoryStore(testFlight(1, 10))
	service := newTestService(store)
	ctx := context.Background()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		FlightID:       1,
		PassengerName:  "John Smith",
		PassengerEmail: "john@example.com",
		Seats:          2,
	})
	require.NoError(t, err)

	amended, err := service.AmendSeats(ctx, booking.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, amended.SeatsBooked)
	assert.Equal(t, int64(40000), amended.TotalPriceCents, "price is fixed at confirmation, never recomputed")

	flight, err := store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, flight.AvailableSeats)

	amended, err = service.AmendSeats(ctx, booking.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, amended.SeatsBooked)

	flight, err = store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, flight.AvailableSeats)

	// More seats than the flight has left.
	_, err = service.AmendSeats(ctx, booking.ID, 50)
	var insufficient *domain.InsufficientSeatsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 9, insufficient.Available)
}

func TestSetStatus_ReconfirmRestoresSeats(t *testing.T) {
	store := newMemoryStore(testFlight(1, 10))
	service := newTestService(store)
	ctx := context.Background()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		FlightID:       1,
		PassengerName:  "John Smith",
		PassengerEmail: "john@example.com",
		Seats:          4,
	})
	require.NoError(t, err)

	_, applied, err := service.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.True(t, applied)

	reconfirmed, applied, err := service.SetBookingStatus(ctx, booking.ID, domain.BookingStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.BookingStatusConfirmed, reconfirmed.Status)
	assert.NotNil(t, reconfirmed.ConfirmedAt)
	assert.Nil(t, reconfirmed.CancelledAt)

	flight, err := store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, flight.AvailableSeats)
}

func TestIncreasePrices_LeavesExistingBookingsPriced(t *testing.T) {
	store := newMemoryStore(testFlight(1, 10))
	service := newTestService(store)
	ctx := context.Background()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		FlightID:       1,
		PassengerName:  "John Smith",
		PassengerEmail: "john@example.com",
		Seats:          2,
	})
	require.NoError(t, err)
	require.Equal(t, int64(40000), booking.TotalPriceCents)

	updated, err := store.IncreasePrices(ctx, []int64{1}, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated)

	flight, err := store.GetFlightByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(22000), flight.PriceCents)

	got, err := store.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), got.TotalPriceCents, "raise applies to future bookings only")
}

func TestSetStatus_IllegalPairRejected(t *testing.T) {
	store := newMemoryStore(testFlight(1, 10))
	service := newTestService(store)
	ctx := context.Background()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		FlightID:       1,
		PassengerName:  "John Smith",
		PassengerEmail: "john@example.com",
		Seats:          1,
	})
	require.NoError(t, err)

	_, _, err = service.SetBookingStatus(ctx, booking.ID, domain.BookingStatusPending)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}
