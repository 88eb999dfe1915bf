package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application's prometheus collectors.
type Metrics struct {
	// HTTP traffic by method, path and status code.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Booking mutations by outcome: created, confirmed, cancelled, amended,
	// rejected_inventory, rejected_validation, busy, error.
	BookingsTotal *prometheus.CounterVec

	// Seats currently available, per flight.
	AvailableSeats *prometheus.GaugeVec
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking operations by outcome",
			},
			[]string{"outcome"},
		),
		AvailableSeats: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flight_available_seats",
				Help: "Seats currently available on a flight",
			},
			[]string{"flight_id"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.AvailableSeats,
	)
	return m
}
