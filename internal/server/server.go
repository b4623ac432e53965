package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"rail-reservation/internal/config"
	"rail-reservation/internal/models"
)

// HealthChecker reports database statistics for /health.
type HealthChecker interface {
	Health() map[string]string
}

type BookingService interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error)
	CancelBooking(ctx context.Context, req models.CancelRequest) error
	SearchAvailable(ctx context.Context, fromCode, toCode, date string) ([]models.TrainAvailability, error)
	ListBookings(ctx context.Context, userID int64) ([]models.Booking, error)
	ListStations(ctx context.Context) ([]models.Station, error)
}

type AccountService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, error)
}

type Server struct {
	db       HealthChecker
	bookings BookingService
	accounts AccountService
	limiter  *ipRateLimiter
}

// NewServer wires the handlers into an *http.Server listening on the
// configured port.
func NewServer(cfg *config.Config, db HealthChecker, bookings BookingService, accounts AccountService) *http.Server {
	s := &Server{
		db:       db,
		bookings: bookings,
		accounts: accounts,
		limiter:  newIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 10*time.Minute),
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      s.RegisterRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
