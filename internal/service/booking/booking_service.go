package booking

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mlevanov/flightbooking/internal/domain"
	"github.com/mlevanov/flightbooking/internal/kafka"
	"github.com/mlevanov/flightbooking/internal/pkg/logger"
	"github.com/mlevanov/flightbooking/internal/pkg/metrics"
	"github.com/mlevanov/flightbooking/internal/repository"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*domain.Booking, error)
	ListBookingsByEmail(ctx context.Context, email string) ([]domain.Booking, error)
	ConfirmBooking(ctx context.Context, id int64) (*domain.Booking, bool, error)
	CancelBooking(ctx context.Context, id int64) (*domain.Booking, bool, error)
	SetBookingStatus(ctx context.Context, id int64, to domain.BookingStatus) (*domain.Booking, bool, error)
	AmendSeats(ctx context.Context, id int64, newSeats int) (*domain.Booking, error)
	ConfirmBookings(ctx context.Context, ids []int64) (int, error)
	CancelBookings(ctx context.Context, ids []int64) (int, error)
	IsActive(ctx context.Context, booking *domain.Booking) (bool, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	flights            repository.FlightRepository
	producer           Producer
	metrics            *metrics.Metrics
	bookingTopic       string
	notificationsTopic string
}

type CreateBookingInput struct {
	FlightID        int64
	AccountID       *int64
	PassengerName   string
	PassengerEmail  string
	PassengerPhone  string
	Seats           int
	SpecialRequests string
	// InitialStatus defaults to Confirmed, the immediate-purchase flow.
	InitialStatus domain.BookingStatus
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithMetrics(m *metrics.Metrics) BookingServiceOption {
	return func(s *BookingService) {
		s.metrics = m
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		flights:      flights,
		producer:     producer,
		bookingTopic: bookingTopic,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	status := input.InitialStatus
	if status == "" {
		status = domain.BookingStatusConfirmed
	}
	if status != domain.BookingStatusPending && status != domain.BookingStatusConfirmed {
		s.count("rejected_validation")
		return nil, &domain.ValidationError{Field: "status", Reason: "initial status must be PENDING or CONFIRMED"}
	}

	booking := &domain.Booking{
		AccountID:       input.AccountID,
		FlightID:        input.FlightID,
		PassengerName:   input.PassengerName,
		PassengerEmail:  input.PassengerEmail,
		PassengerPhone:  input.PassengerPhone,
		SeatsBooked:     input.Seats,
		SpecialRequests: input.SpecialRequests,
		Status:          status,
	}
	if err := booking.Validate(); err != nil {
		s.count("rejected_validation")
		return nil, err
	}

	// Collisions on the unique reference index are re-rolled, never
	// surfaced to the caller.
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		booking.Reference, err = NewReference()
		if err != nil {
			return nil, err
		}
		if exists, checkErr := s.bookings.ReferenceExists(ctx, booking.Reference); checkErr == nil && exists {
			err = domain.ErrReferenceTaken
			continue
		}
		err = s.bookings.Create(ctx, booking)
		if !errors.Is(err, domain.ErrReferenceTaken) {
			break
		}
	}
	if err != nil {
		s.countError(err)
		return nil, err
	}

	s.count("created")
	s.publish(ctx, "booking_created", booking)
	s.refreshSeatGauge(ctx, booking.FlightID)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) GetBookingByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	return s.bookings.GetByReference(ctx, reference)
}

func (s *BookingService) ListBookingsByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	if email == "" {
		return nil, &domain.ValidationError{Field: "email", Reason: "is required"}
	}
	return s.bookings.ListByEmail(ctx, email)
}

func (s *BookingService) ConfirmBooking(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	booking, applied, err := s.bookings.Confirm(ctx, id)
	if err != nil {
		s.countError(err)
		return nil, false, err
	}
	if applied {
		s.count("confirmed")
		s.publish(ctx, "booking_confirmed", booking)
		s.refreshSeatGauge(ctx, booking.FlightID)
	}
	return booking, applied, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	booking, applied, err := s.bookings.Cancel(ctx, id)
	if err != nil {
		s.countError(err)
		return nil, false, err
	}
	if applied {
		s.count("cancelled")
		s.publish(ctx, "booking_cancelled", booking)
		s.refreshSeatGauge(ctx, booking.FlightID)
	}
	return booking, applied, nil
}

// SetBookingStatus is the administrative escape hatch for transitions the
// public operations do not cover, such as re-confirming a cancelled booking.
// It still runs through the transition table and its seat accounting.
func (s *BookingService) SetBookingStatus(ctx context.Context, id int64, to domain.BookingStatus) (*domain.Booking, bool, error) {
	booking, applied, err := s.bookings.SetStatus(ctx, id, to)
	if err != nil {
		s.countError(err)
		return nil, false, err
	}
	if applied {
		switch to {
		case domain.BookingStatusConfirmed:
			s.count("confirmed")
			s.publish(ctx, "booking_confirmed", booking)
		case domain.BookingStatusCancelled:
			s.count("cancelled")
			s.publish(ctx, "booking_cancelled", booking)
		}
		s.refreshSeatGauge(ctx, booking.FlightID)
	}
	return booking, applied, nil
}

func (s *BookingService) AmendSeats(ctx context.Context, id int64, newSeats int) (*domain.Booking, error) {
	if newSeats < 1 {
		s.count("rejected_validation")
		return nil, &domain.ValidationError{Field: "seats_booked", Reason: "must be at least 1"}
	}
	booking, err := s.bookings.AmendSeats(ctx, id, newSeats)
	if err != nil {
		s.countError(err)
		return nil, err
	}
	s.count("amended")
	s.publish(ctx, "booking_amended", booking)
	s.refreshSeatGauge(ctx, booking.FlightID)
	return booking, nil
}

// ConfirmBookings confirms each selected booking and reports how many
// actually transitioned. Failures on individual bookings are logged and do
// not stop the batch.
func (s *BookingService) ConfirmBookings(ctx context.Context, ids []int64) (int, error) {
	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		_, applied, err := s.ConfirmBooking(ctx, id)
		if err != nil {
			logger.Warn("bulk confirm: skipping booking", zap.Int64("booking_id", id), zap.Error(err))
			continue
		}
		if applied {
			count++
		}
	}
	return count, nil
}

func (s *BookingService) CancelBookings(ctx context.Context, ids []int64) (int, error) {
	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		_, applied, err := s.CancelBooking(ctx, id)
		if err != nil {
			logger.Warn("bulk cancel: skipping booking", zap.Int64("booking_id", id), zap.Error(err))
			continue
		}
		if applied {
			count++
		}
	}
	return count, nil
}

// IsActive reports whether the booking is confirmed on a flight that has not
// departed yet.
func (s *BookingService) IsActive(ctx context.Context, booking *domain.Booking) (bool, error) {
	flight, err := s.flights.GetByID(ctx, booking.FlightID)
	if err != nil {
		return false, err
	}
	return booking.IsActive(flight, time.Now().UTC()), nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		ID:              uuid.NewString(),
		Type:            eventType,
		Reference:       booking.Reference,
		FlightID:        booking.FlightID,
		SeatsBooked:     booking.SeatsBooked,
		Email:           booking.PassengerEmail,
		Status:          string(booking.Status),
		TotalPriceCents: booking.TotalPriceCents,
		OccurredAt:      time.Now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.Reference, event); err != nil {
		logger.Warn("publish booking event", zap.String("type", eventType), zap.String("reference", booking.Reference), zap.Error(err))
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.Reference, event); err != nil {
			logger.Warn("publish notification event", zap.String("type", eventType), zap.String("reference", booking.Reference), zap.Error(err))
		}
	}
}

func (s *BookingService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *BookingService) countError(err error) {
	var insufficient *domain.InsufficientSeatsError
	var invariant *domain.InvariantViolationError
	switch {
	case errors.As(err, &insufficient):
		s.count("rejected_inventory")
	case errors.As(err, &invariant):
		// Bug-class: the guard should be unreachable behind the pre-check.
		logger.Error("inventory invariant violation", zap.Error(err))
		s.count("error")
	case errors.Is(err, domain.ErrBusy):
		s.count("busy")
	default:
		s.count("error")
	}
}

func (s *BookingService) refreshSeatGauge(ctx context.Context, flightID int64) {
	if s.metrics == nil {
		return
	}
	flight, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		return
	}
	s.metrics.AvailableSeats.WithLabelValues(strconv.FormatInt(flightID, 10)).Set(float64(flight.AvailableSeats))
}

var _ BookingUseCase = (*BookingService)(nil)
