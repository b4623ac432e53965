package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	// PostgreSQL driver
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"rail-reservation/internal/apperror"
	"rail-reservation/internal/config"
	"rail-reservation/internal/models"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error

	// Migrate applies all pending schema migrations.
	Migrate(ctx context.Context) error

	// WithTx runs fn inside a read-committed transaction. The transaction
	// commits only if fn returns nil; any error or panic rolls it back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	ListStations(ctx context.Context) ([]models.Station, error)
	GetStationByCode(ctx context.Context, code string) (*models.Station, error)
	SearchTrains(ctx context.Context, fromStationID, toStationID int64, travelDate time.Time) ([]models.TrainAvailability, error)

	GetBookingByPNR(ctx context.Context, pnr string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID int64) ([]models.Booking, error)
	// CancelBooking flips a CONFIRMED booking owned by userID to CANCELLED
	// and reports whether a row changed.
	CancelBooking(ctx context.Context, pnr string, userID int64) (bool, error)
}

type service struct {
	db   *sql.DB
	name string
}

// New opens a pooled connection to the configured PostgreSQL database.
func New(cfg config.DatabaseConfig) (Service, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	return &service{db: db, name: cfg.Database}, nil
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = "database unreachable"
		log.Error().Err(err).Msg("database health check failed")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Info().Str("database", s.name).Msg("disconnected from database")
	return s.db.Close()
}

func (s *service) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING user_id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return classify(err, "insert user")
	}
	return nil
}

func (s *service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT user_id, username, email, password_hash, created_at
		FROM users
		WHERE username = $1
	`
	var user models.User
	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.KindNotFound, err, "user not found")
	}
	if err != nil {
		return nil, classify(err, "select user by username")
	}
	return &user, nil
}

func (s *service) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station_id, code, name FROM stations ORDER BY code`)
	if err != nil {
		return nil, classify(err, "select stations")
	}
	defer rows.Close()

	stations := []models.Station{}
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.ID, &st.Code, &st.Name); err != nil {
			return nil, classify(err, "scan station")
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate stations")
	}
	return stations, nil
}

func (s *service) GetStationByCode(ctx context.Context, code string) (*models.Station, error) {
	var st models.Station
	err := s.db.QueryRowContext(ctx, `SELECT station_id, code, name FROM stations WHERE code = $1`, code).
		Scan(&st.ID, &st.Code, &st.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.KindNotFound, err, "station not found")
	}
	if err != nil {
		return nil, classify(err, "select station by code")
	}
	return &st, nil
}

func (s *service) SearchTrains(ctx context.Context, fromStationID, toStationID int64, travelDate time.Time) ([]models.TrainAvailability, error) {
	query := `
		SELECT t.train_id, t.name,
		       t.total_seats - (
		           SELECT COUNT(p.passenger_id)
		           FROM bookings b
		           JOIN passengers p ON p.booking_id = b.booking_id
		           WHERE b.train_id = t.train_id
		             AND b.travel_date = $3
		             AND b.status = 'CONFIRMED'
		       ) AS available_seats
		FROM trains t
		WHERE t.source_station_id = $1 AND t.destination_station_id = $2
		ORDER BY t.train_id
	`
	rows, err := s.db.QueryContext(ctx, query, fromStationID, toStationID, travelDate)
	if err != nil {
		return nil, classify(err, "search trains")
	}
	defer rows.Close()

	trains := []models.TrainAvailability{}
	for rows.Next() {
		var ta models.TrainAvailability
		if err := rows.Scan(&ta.TrainID, &ta.TrainName, &ta.AvailableSeats); err != nil {
			return nil, classify(err, "scan train availability")
		}
		trains = append(trains, ta)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate train availability")
	}
	return trains, nil
}

func (s *service) GetBookingByPNR(ctx context.Context, pnr string) (*models.Booking, error) {
	query := `
		SELECT booking_id, pnr_code, user_id, train_id, travel_date, booking_date, status
		FROM bookings
		WHERE pnr_code = $1
	`
	var b models.Booking
	err := s.db.QueryRowContext(ctx, query, pnr).
		Scan(&b.ID, &b.PNR, &b.UserID, &b.TrainID, &b.TravelDate, &b.BookingDate, &b.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.KindNotFound, err, "booking not found")
	}
	if err != nil {
		return nil, classify(err, "select booking by pnr")
	}
	return &b, nil
}

func (s *service) ListBookingsByUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	query := `
		SELECT b.booking_id, b.pnr_code, b.user_id, b.train_id, t.name,
		       b.travel_date, b.booking_date, b.status,
		       p.passenger_id, p.name, p.age, p.gender, p.seat_number
		FROM bookings b
		JOIN trains t ON t.train_id = b.train_id
		LEFT JOIN passengers p ON p.booking_id = b.booking_id
		WHERE b.user_id = $1
		ORDER BY b.booking_date DESC, b.booking_id DESC, p.seat_number
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify(err, "select bookings by user")
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		var (
			b           models.Booking
			passengerID sql.NullInt64
			name        sql.NullString
			age         sql.NullInt64
			gender      sql.NullString
			seat        sql.NullInt64
		)
		err := rows.Scan(
			&b.ID, &b.PNR, &b.UserID, &b.TrainID, &b.TrainName,
			&b.TravelDate, &b.BookingDate, &b.Status,
			&passengerID, &name, &age, &gender, &seat,
		)
		if err != nil {
			return nil, classify(err, "scan booking row")
		}

		// Rows arrive grouped by booking; start a new entry when the id changes.
		if n := len(bookings); n == 0 || bookings[n-1].ID != b.ID {
			b.Passengers = []models.Passenger{}
			bookings = append(bookings, b)
		}
		if passengerID.Valid {
			last := &bookings[len(bookings)-1]
			last.Passengers = append(last.Passengers, models.Passenger{
				ID:         passengerID.Int64,
				BookingID:  b.ID,
				Name:       name.String,
				Age:        int(age.Int64),
				Gender:     gender.String,
				SeatNumber: int(seat.Int64),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate bookings")
	}
	return bookings, nil
}

func (s *service) CancelBooking(ctx context.Context, pnr string, userID int64) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'CANCELLED'
		WHERE pnr_code = $1 AND user_id = $2 AND status = 'CONFIRMED'
	`
	res, err := s.db.ExecContext(ctx, query, pnr, userID)
	if err != nil {
		return false, classify(err, "cancel booking")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "cancel booking rows affected")
	}
	return n > 0, nil
}
