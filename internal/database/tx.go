package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"rail-reservation/internal/apperror"
	"rail-reservation/internal/models"
)

// Tx is the set of statements the booking flow runs inside one
// transaction.
type Tx interface {
	// LockTrain loads the train and holds its row lock until the
	// transaction ends, serialising bookings for that train.
	LockTrain(ctx context.Context, trainID int64) (*models.Train, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	// OccupiedSeats returns the seat numbers held by CONFIRMED bookings on
	// the train and date, in ascending order.
	OccupiedSeats(ctx context.Context, trainID int64, travelDate time.Time) ([]int, error)
	PNRExists(ctx context.Context, pnr string) (bool, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	InsertPassenger(ctx context.Context, passenger *models.Passenger) error
}

type tx struct {
	tx *sql.Tx
}

func (s *service) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classify(err, "commit transaction")
	}
	return nil
}

func (t *tx) LockTrain(ctx context.Context, trainID int64) (*models.Train, error) {
	query := `
		SELECT train_id, name, source_station_id, destination_station_id, total_seats
		FROM trains
		WHERE train_id = $1
		FOR UPDATE
	`
	var train models.Train
	err := t.tx.QueryRowContext(ctx, query, trainID).Scan(
		&train.ID,
		&train.Name,
		&train.SourceStationID,
		&train.DestinationStationID,
		&train.TotalSeats,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.KindNotFound, err, "train not found")
	}
	if err != nil {
		return nil, classify(err, "lock train")
	}
	return &train, nil
}

func (t *tx) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, classify(err, "check user exists")
	}
	return exists, nil
}

func (t *tx) OccupiedSeats(ctx context.Context, trainID int64, travelDate time.Time) ([]int, error) {
	query := `
		SELECT p.seat_number
		FROM passengers p
		JOIN bookings b ON b.booking_id = p.booking_id
		WHERE b.train_id = $1 AND b.travel_date = $2 AND b.status = 'CONFIRMED'
		ORDER BY p.seat_number
	`
	rows, err := t.tx.QueryContext(ctx, query, trainID, travelDate)
	if err != nil {
		return nil, classify(err, "select occupied seats")
	}
	defer rows.Close()

	var seats []int
	for rows.Next() {
		var seat int
		if err := rows.Scan(&seat); err != nil {
			return nil, classify(err, "scan occupied seat")
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate occupied seats")
	}
	return seats, nil
}

func (t *tx) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE pnr_code = $1)`, pnr).Scan(&exists)
	if err != nil {
		return false, classify(err, "check pnr exists")
	}
	return exists, nil
}

func (t *tx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (pnr_code, user_id, train_id, travel_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING booking_id, booking_date
	`
	err := t.tx.QueryRowContext(
		ctx,
		query,
		booking.PNR,
		booking.UserID,
		booking.TrainID,
		booking.TravelDate,
		string(booking.Status),
	).Scan(&booking.ID, &booking.BookingDate)
	if err != nil {
		return classify(err, "insert booking")
	}
	return nil
}

func (t *tx) InsertPassenger(ctx context.Context, passenger *models.Passenger) error {
	query := `
		INSERT INTO passengers (booking_id, name, age, gender, seat_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING passenger_id
	`
	err := t.tx.QueryRowContext(
		ctx,
		query,
		passenger.BookingID,
		passenger.Name,
		passenger.Age,
		passenger.Gender,
		passenger.SeatNumber,
	).Scan(&passenger.ID)
	if err != nil {
		return classify(err, "insert passenger")
	}
	return nil
}
