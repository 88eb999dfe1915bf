package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mlevanov/flightbooking/api"
	"github.com/mlevanov/flightbooking/config"
	"github.com/mlevanov/flightbooking/internal/pkg/logger"
	"github.com/mlevanov/flightbooking/internal/pkg/metrics"
	"github.com/mlevanov/flightbooking/internal/service/booking"
	"github.com/mlevanov/flightbooking/internal/service/flights"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, m *metrics.Metrics, flightSvc flights.FlightUseCase, bookingSvc booking.BookingUseCase) error {
	router := newRouter(m, flightSvc, bookingSvc)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func newRouter(m *metrics.Metrics, flightSvc flights.FlightUseCase, bookingSvc booking.BookingUseCase) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestLogger(logger.Get()))
	if m != nil {
		router.Use(api.Prometheus(m))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api.NewFlightHandler(flightSvc).Register(router.Group("/flights"))
	api.NewBookingHandler(bookingSvc).Register(router.Group("/bookings"))
	api.NewAdminHandler(bookingSvc, flightSvc).Register(router.Group("/admin"))

	logger.Info("router configured", zap.Int("routes", len(router.Routes())))
	return router
}
