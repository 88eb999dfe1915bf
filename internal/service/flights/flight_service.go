package flights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlevanov/flightbooking/internal/domain"
	"github.com/mlevanov/flightbooking/internal/pkg/logger"
	"github.com/mlevanov/flightbooking/internal/repository"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Search(ctx context.Context, input SearchInput) (*SearchResult, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Delete(ctx context.Context, id int64) error
	MarkFull(ctx context.Context, ids []int64) (int64, error)
	IncreasePrices(ctx context.Context, ids []int64, percent int) (int64, error)
	RefreshCache(ctx context.Context) error
}

// Cache is the read-path cache for flight listings. Entries may be slightly
// stale under contention; correctness is enforced at mutation time under the
// row lock, never here.
type Cache interface {
	GetFlights(ctx context.Context, key string) ([]domain.Flight, error)
	SetFlights(ctx context.Context, key string, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

// SearchInput mirrors the public search form: route plus departure date,
// optionally a return date for round trips. Passenger counts are accepted
// for seat-count hints but bookings fix the count at creation.
type SearchInput struct {
	DepartureCity string
	ArrivalCity   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Adults        int
	Children      int
	Infants       int
}

type SearchResult struct {
	Outbound []domain.Flight `json:"outbound_flights"`
	Return   []domain.Flight `json:"return_flights,omitempty"`
}

type FlightService struct {
	repo  repository.FlightRepository
	cache Cache
}

func NewFlightService(repo repository.FlightRepository, cache Cache) *FlightService {
	return &FlightService{repo: repo, cache: cache}
}

const listCacheKey = "cache:flights"

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx, listCacheKey); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, listCacheKey, flights)
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	if err := validateSearch(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	outbound, err := s.searchLeg(ctx, input.DepartureCity, input.ArrivalCity, input.DepartureDate, now)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Outbound: outbound}

	if input.ReturnDate != nil {
		// Return leg flies the reversed route.
		ret, err := s.searchLeg(ctx, input.ArrivalCity, input.DepartureCity, *input.ReturnDate, now)
		if err != nil {
			return nil, err
		}
		result.Return = ret
	}
	return result, nil
}

func (s *FlightService) searchLeg(ctx context.Context, from, to string, date, now time.Time) ([]domain.Flight, error) {
	key := searchCacheKey(from, to, date)
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.Search(ctx, repository.SearchQuery{
		DepartureCity: from,
		ArrivalCity:   to,
		DepartureDate: date,
		After:         now,
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, key, flights)
	}
	return flights, nil
}

func (s *FlightService) Create(ctx context.Context, flight *domain.Flight) error {
	if flight.AvailableSeats == 0 {
		flight.AvailableSeats = flight.TotalSeats
	}
	if err := flight.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *FlightService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// MarkFull forces available_seats to zero on the selected flights. This is
// the audited administrative override; it deliberately bypasses the
// transition engine.
func (s *FlightService) MarkFull(ctx context.Context, ids []int64) (int64, error) {
	updated, err := s.repo.MarkFull(ctx, ids)
	if err != nil {
		return 0, err
	}
	logger.Warn("admin override: flights marked full", zap.Int64s("flight_ids", ids), zap.Int64("updated", updated))
	s.invalidate(ctx)
	return updated, nil
}

// IncreasePrices applies a bulk percentage price raise to the selected
// flights. Bookings are unaffected: their total was fixed when the seats
// were taken.
func (s *FlightService) IncreasePrices(ctx context.Context, ids []int64, percent int) (int64, error) {
	if percent <= 0 {
		return 0, &domain.ValidationError{Field: "percent", Reason: "must be positive"}
	}
	updated, err := s.repo.IncreasePrices(ctx, ids, percent)
	if err != nil {
		return 0, err
	}
	logger.Info("admin: flight prices raised", zap.Int64s("flight_ids", ids), zap.Int("percent", percent), zap.Int64("updated", updated))
	s.invalidate(ctx)
	return updated, nil
}

// RefreshCache re-reads the flight list from the store and rewrites the
// cache entry. The worker calls this on a ticker to keep reads warm.
func (s *FlightService) RefreshCache(ctx context.Context) error {
	flights, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.SetFlights(ctx, listCacheKey, flights)
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		logger.Warn("invalidate flight cache", zap.Error(err))
	}
}

func validateSearch(input SearchInput) error {
	if input.DepartureCity == "" {
		return &domain.ValidationError{Field: "departure_city", Reason: "is required"}
	}
	if input.ArrivalCity == "" {
		return &domain.ValidationError{Field: "arrival_city", Reason: "is required"}
	}
	if strings.EqualFold(input.DepartureCity, input.ArrivalCity) {
		return &domain.ValidationError{Field: "arrival_city", Reason: "must differ from departure city"}
	}
	if input.DepartureDate.IsZero() {
		return &domain.ValidationError{Field: "departure_date", Reason: "is required"}
	}
	if input.ReturnDate != nil && input.ReturnDate.Before(input.DepartureDate) {
		return &domain.ValidationError{Field: "return_date", Reason: "must not be before departure date"}
	}
	if input.Adults < 0 || input.Children < 0 || input.Infants < 0 {
		return &domain.ValidationError{Field: "passengers", Reason: "counts must not be negative"}
	}
	return nil
}

func searchCacheKey(from, to string, date time.Time) string {
	return fmt.Sprintf("cache:flights:search:%s:%s:%s",
		strings.ToLower(from), strings.ToLower(to), date.Format("2006-01-02"))
}

var _ FlightUseCase = (*FlightService)(nil)
