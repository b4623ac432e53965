// Package booking implements the reservation flows: searching trains,
// creating bookings atomically and cancelling them.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rail-reservation/internal/apperror"
	"rail-reservation/internal/database"
	"rail-reservation/internal/models"
	"rail-reservation/internal/validation"
)

const defaultPNRAttempts = 5

// Store is the part of the database the booking flows need.
type Store interface {
	WithTx(ctx context.Context, fn func(tx database.Tx) error) error
	ListStations(ctx context.Context) ([]models.Station, error)
	GetStationByCode(ctx context.Context, code string) (*models.Station, error)
	SearchTrains(ctx context.Context, fromStationID, toStationID int64, travelDate time.Time) ([]models.TrainAvailability, error)
	GetBookingByPNR(ctx context.Context, pnr string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID int64) ([]models.Booking, error)
	CancelBooking(ctx context.Context, pnr string, userID int64) (bool, error)
}

type Manager struct {
	store       Store
	generatePNR func() (string, error)
	pnrAttempts int
}

type Option func(*Manager)

// WithPNRGenerator replaces the random code source.
func WithPNRGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.generatePNR = gen }
}

// WithPNRAttempts bounds how many codes are tried before giving up.
func WithPNRAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.pnrAttempts = n
		}
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		generatePNR: GeneratePNR,
		pnrAttempts: defaultPNRAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateBooking confirms a booking for every passenger in req or fails
// without persisting anything.
func (m *Manager) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	travelDate, err := parseDate(req.TravelDate)
	if err != nil {
		return nil, err
	}
	for i, p := range req.Passengers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, apperror.Validation(fmt.Sprintf("passengers[%d].name is required", i))
		}
		if strings.ContainsRune(p.Name, 0) {
			return nil, apperror.Validation(fmt.Sprintf("passengers[%d].name contains invalid characters", i))
		}
	}

	logger := zerolog.Ctx(ctx).With().
		Int64("user_id", req.UserID).
		Int64("train_id", req.TrainID).
		Str("travel_date", req.TravelDate).
		Int("passengers", len(req.Passengers)).
		Logger()

	var result *models.BookingResult
	err = m.store.WithTx(ctx, func(tx database.Tx) error {
		train, err := tx.LockTrain(ctx, req.TrainID)
		if err != nil {
			return err
		}

		exists, err := tx.UserExists(ctx, req.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NotFound("user not found")
		}

		occupied, err := tx.OccupiedSeats(ctx, train.ID, travelDate)
		if err != nil {
			return err
		}
		seats := allocateSeats(occupied, train.TotalSeats, len(req.Passengers))
		if seats == nil {
			available := max(train.TotalSeats-len(occupied), 0)
			return apperror.New(apperror.KindCapacityExceeded,
				fmt.Sprintf("not enough seats: %d requested, %d available", len(req.Passengers), available))
		}

		pnr, err := m.uniquePNR(ctx, tx)
		if err != nil {
			return err
		}

		booking := &models.Booking{
			PNR:        pnr,
			UserID:     req.UserID,
			TrainID:    train.ID,
			TravelDate: travelDate,
			Status:     models.BookingConfirmed,
		}
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}

		for i, p := range req.Passengers {
			passenger := &models.Passenger{
				BookingID:  booking.ID,
				Name:       strings.TrimSpace(p.Name),
				Age:        p.Age,
				Gender:     p.Gender,
				SeatNumber: seats[i],
			}
			if err := tx.InsertPassenger(ctx, passenger); err != nil {
				return err
			}
		}

		result = &models.BookingResult{BookingID: booking.ID, PNR: pnr, SeatNumbers: seats}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Str("kind", apperror.KindOf(err).String()).Msg("booking failed")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	logger.Info().Str("pnr", result.PNR).Ints("seats", result.SeatNumbers).Msg("booking confirmed")
	return result, nil
}

func (m *Manager) uniquePNR(ctx context.Context, tx database.Tx) (string, error) {
	for attempt := 1; attempt <= m.pnrAttempts; attempt++ {
		code, err := m.generatePNR()
		if err != nil {
			return "", apperror.Wrap(apperror.KindInternal, err, "generate pnr")
		}
		if !ValidPNR(code) {
			return "", apperror.New(apperror.KindInternal, fmt.Sprintf("generated pnr %q is malformed", code))
		}
		taken, err := tx.PNRExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		zerolog.Ctx(ctx).Debug().Int("attempt", attempt).Msg("pnr collision")
	}
	return "", apperror.New(apperror.KindCodeGenerationExhausted, "could not allocate a unique PNR, please retry")
}

// CancelBooking moves a confirmed booking owned by the caller to
// CANCELLED. Cancelling an already cancelled booking reports
// KindAlreadyCancelled and changes nothing.
func (m *Manager) CancelBooking(ctx context.Context, req models.CancelRequest) error {
	req.PNR = strings.ToUpper(strings.TrimSpace(req.PNR))
	if err := validation.Struct(req); err != nil {
		return err
	}

	changed, err := m.store.CancelBooking(ctx, req.PNR, req.UserID)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if changed {
		zerolog.Ctx(ctx).Info().Str("pnr", req.PNR).Int64("user_id", req.UserID).Msg("booking cancelled")
		return nil
	}

	// Nothing changed: work out why.
	booking, err := m.store.GetBookingByPNR(ctx, req.PNR)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if booking.UserID != req.UserID {
		return apperror.New(apperror.KindForbidden, "booking belongs to another user")
	}
	if booking.Status == models.BookingCancelled {
		return apperror.New(apperror.KindAlreadyCancelled, fmt.Sprintf("booking %s is already cancelled", req.PNR))
	}
	return apperror.New(apperror.KindInternal, "booking could not be cancelled")
}

// SearchAvailable lists trains running from one station code to another
// with their free seats on the date. Unknown stations yield no trains.
func (m *Manager) SearchAvailable(ctx context.Context, fromCode, toCode, date string) ([]models.TrainAvailability, error) {
	fromCode = strings.ToUpper(strings.TrimSpace(fromCode))
	toCode = strings.ToUpper(strings.TrimSpace(toCode))
	if fromCode == "" || toCode == "" {
		return nil, apperror.Validation("from and to station codes are required")
	}
	travelDate, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	from, err := m.store.GetStationByCode(ctx, fromCode)
	if apperror.Is(err, apperror.KindNotFound) {
		return []models.TrainAvailability{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search trains: %w", err)
	}
	to, err := m.store.GetStationByCode(ctx, toCode)
	if apperror.Is(err, apperror.KindNotFound) {
		return []models.TrainAvailability{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search trains: %w", err)
	}

	trains, err := m.store.SearchTrains(ctx, from.ID, to.ID, travelDate)
	if err != nil {
		return nil, fmt.Errorf("search trains: %w", err)
	}
	for i := range trains {
		trains[i].AvailableSeats = max(trains[i].AvailableSeats, 0)
	}
	return trains, nil
}

func (m *Manager) ListBookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	if userID <= 0 {
		return nil, apperror.Validation("user_id must be greater than 0")
	}
	bookings, err := m.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (m *Manager) ListStations(ctx context.Context) ([]models.Station, error) {
	stations, err := m.store.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return stations, nil
}

func parseDate(value string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperror.Wrap(apperror.KindValidation, err, "date must be in YYYY-MM-DD format")
	}
	return d, nil
}
