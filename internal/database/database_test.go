package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rail-reservation/internal/apperror"
	"rail-reservation/internal/models"
)

func newMock(t *testing.T) (*service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &service{db: db, name: "test"}, mock
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

func TestHealth_Up(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectPing()

	stats := s.Health()

	assert.Equal(t, "up", stats["status"])
	assert.Contains(t, stats, "open_connections")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth_Down(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	stats := s.Health()

	assert.Equal(t, "down", stats["status"])
	assert.NotContains(t, stats["error"], "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("INSERT INTO users (username, email, password_hash)")).
		WithArgs("asha", "asha@example.com", "$2a$hash").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at"}).AddRow(int64(11), created))

	user := &models.User{Username: "asha", Email: "asha@example.com", PasswordHash: "$2a$hash"}
	err := s.CreateUser(context.Background(), user)

	require.NoError(t, err)
	assert.Equal(t, int64(11), user.ID)
	assert.Equal(t, created, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(q("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := s.CreateUser(context.Background(), &models.User{Username: "asha"})

	require.Error(t, err)
	assert.Equal(t, apperror.KindConstraintViolation, apperror.KindOf(err))
	assert.NotContains(t, apperror.PublicMessage(err), "users_username_key")
}

func TestGetUserByUsername_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(q("FROM users")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "email", "password_hash", "created_at"}))

	user, err := s.GetUserByUsername(context.Background(), "ghost")

	assert.Nil(t, user)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestListStations(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(q("SELECT station_id, code, name FROM stations ORDER BY code")).
		WillReturnRows(sqlmock.NewRows([]string{"station_id", "code", "name"}).
			AddRow(int64(2), "MMCT", "Mumbai Central").
			AddRow(int64(1), "NDLS", "New Delhi"))

	stations, err := s.ListStations(context.Background())

	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "MMCT", stations[0].Code)
	assert.Equal(t, "New Delhi", stations[1].Name)
}

func TestGetStationByCode_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(q("FROM stations WHERE code = $1")).
		WithArgs("XXXX").
		WillReturnRows(sqlmock.NewRows([]string{"station_id", "code", "name"}))

	_, err := s.GetStationByCode(context.Background(), "XXXX")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestSearchTrains(t *testing.T) {
	s, mock := newMock(t)
	date := time.Date(2025, time.October, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM trains t")).
		WithArgs(int64(1), int64(2), date).
		WillReturnRows(sqlmock.NewRows([]string{"train_id", "name", "available_seats"}).
			AddRow(int64(1), "Rajdhani Express", 197).
			AddRow(int64(4), "Capital Express", 120))

	trains, err := s.SearchTrains(context.Background(), 1, 2, date)

	require.NoError(t, err)
	assert.Equal(t, []models.TrainAvailability{
		{TrainID: 1, TrainName: "Rajdhani Express", AvailableSeats: 197},
		{TrainID: 4, TrainName: "Capital Express", AvailableSeats: 120},
	}, trains)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchTrains_Empty(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(q("FROM trains t")).
		WillReturnRows(sqlmock.NewRows([]string{"train_id", "name", "available_seats"}))

	trains, err := s.SearchTrains(context.Background(), 1, 3, time.Now())

	require.NoError(t, err)
	assert.NotNil(t, trains)
	assert.Empty(t, trains)
}

func TestListBookingsByUser_GroupsPassengers(t *testing.T) {
	s, mock := newMock(t)
	travel := time.Date(2025, time.October, 10, 0, 0, 0, 0, time.UTC)
	booked := time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC)

	cols := []string{
		"booking_id", "pnr_code", "user_id", "train_id", "name", "travel_date", "booking_date", "status",
		"passenger_id", "name", "age", "gender", "seat_number",
	}
	mock.ExpectQuery(q("WHERE b.user_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(9), "QW12ER", int64(7), int64(1), "Rajdhani Express", travel, booked, "CONFIRMED", int64(21), "Ravi", int64(30), "Male", int64(1)).
			AddRow(int64(9), "QW12ER", int64(7), int64(1), "Rajdhani Express", travel, booked, "CONFIRMED", int64(22), "Meera", int64(28), "Female", int64(2)).
			AddRow(int64(5), "ZX98CV", int64(7), int64(2), "Shatabdi Express", travel, booked, "CANCELLED", int64(11), "Ravi", int64(30), "Male", int64(4)))

	bookings, err := s.ListBookingsByUser(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "QW12ER", bookings[0].PNR)
	assert.Equal(t, "Rajdhani Express", bookings[0].TrainName)
	require.Len(t, bookings[0].Passengers, 2)
	assert.Equal(t, 2, bookings[0].Passengers[1].SeatNumber)
	assert.Equal(t, models.BookingCancelled, bookings[1].Status)
	assert.Len(t, bookings[1].Passengers, 1)
}

func TestGetBookingByPNR_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(q("FROM bookings")).
		WithArgs("NOPE00").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "pnr_code", "user_id", "train_id", "travel_date", "booking_date", "status"}))

	_, err := s.GetBookingByPNR(context.Background(), "NOPE00")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestCancelBooking(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(q("UPDATE bookings")).
		WithArgs("QW12ER", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE bookings")).
		WithArgs("QW12ER", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := s.CancelBooking(context.Background(), "QW12ER", 7)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.CancelBooking(context.Background(), "QW12ER", 8)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitsBookingAndPassengers(t *testing.T) {
	s, mock := newMock(t)
	travel := time.Date(2025, time.October, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"train_id", "name", "source_station_id", "destination_station_id", "total_seats"}).
			AddRow(int64(1), "Rajdhani Express", int64(1), int64(2), 200))
	mock.ExpectQuery(q("SELECT p.seat_number")).
		WithArgs(int64(1), travel).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(q("INSERT INTO bookings")).
		WithArgs("AB12CD", int64(7), int64(1), travel, "CONFIRMED").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "booking_date"}).AddRow(int64(42), time.Now()))
	mock.ExpectQuery(q("INSERT INTO passengers")).
		WithArgs(int64(42), "Ravi", 30, "Male", 3).
		WillReturnRows(sqlmock.NewRows([]string{"passenger_id"}).AddRow(int64(100)))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		train, err := tx.LockTrain(context.Background(), 1)
		if err != nil {
			return err
		}
		assert.Equal(t, 200, train.TotalSeats)

		seats, err := tx.OccupiedSeats(context.Background(), 1, travel)
		if err != nil {
			return err
		}
		assert.Equal(t, []int{1, 2}, seats)

		b := &models.Booking{PNR: "AB12CD", UserID: 7, TrainID: 1, TravelDate: travel, Status: models.BookingConfirmed}
		if err := tx.InsertBooking(context.Background(), b); err != nil {
			return err
		}
		assert.Equal(t, int64(42), b.ID)

		p := &models.Passenger{BookingID: b.ID, Name: "Ravi", Age: 30, Gender: "Male", SeatNumber: 3}
		return tx.InsertPassenger(context.Background(), p)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackWhenPassengerInsertFails(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "booking_date"}).AddRow(int64(42), time.Now()))
	mock.ExpectQuery(q("INSERT INTO passengers")).
		WillReturnRows(sqlmock.NewRows([]string{"passenger_id"}).AddRow(int64(100)))
	mock.ExpectQuery(q("INSERT INTO passengers")).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "passengers_age_check"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		b := &models.Booking{PNR: "AB12CD", UserID: 7, TrainID: 1, TravelDate: time.Now(), Status: models.BookingConfirmed}
		if err := tx.InsertBooking(context.Background(), b); err != nil {
			return err
		}
		for _, age := range []int{30, 0} {
			p := &models.Passenger{BookingID: b.ID, Name: "Ravi", Age: age, Gender: "Male", SeatNumber: 1}
			if err := tx.InsertPassenger(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, apperror.KindConstraintViolation, apperror.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = s.WithTx(context.Background(), func(tx Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFails(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(&pgconn.PgError{Code: "08006"})

	called := false
	err := s.WithTx(context.Background(), func(tx Tx) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Equal(t, apperror.KindStoreUnavailable, apperror.KindOf(err))
}

func TestLockTrain_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"train_id", "name", "source_station_id", "destination_station_id", "total_seats"}))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		_, err := tx.LockTrain(context.Background(), 99)
		return err
	})

	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBooking_DuplicatePNR(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO bookings")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: pnrUniqueConstraint})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		return tx.InsertBooking(context.Background(), &models.Booking{PNR: "AB12CD", Status: models.BookingConfirmed})
	})

	assert.Equal(t, apperror.KindCodeGenerationExhausted, apperror.KindOf(err))
}

func TestPNRAndUserExists(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q("SELECT EXISTS (SELECT 1 FROM bookings WHERE pnr_code = $1)")).
		WithArgs("AB12CD").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		ok, err := tx.UserExists(context.Background(), 7)
		require.NoError(t, err)
		assert.True(t, ok)

		taken, err := tx.PNRExists(context.Background(), "AB12CD")
		require.NoError(t, err)
		assert.False(t, taken)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil, "noop"))
	assert.Equal(t, apperror.KindStoreUnavailable, apperror.KindOf(classify(context.DeadlineExceeded, "query")))
	assert.Equal(t, apperror.KindConstraintViolation, apperror.KindOf(classify(&pgconn.PgError{Code: "23503"}, "insert")))
	assert.Equal(t, apperror.KindStoreUnavailable, apperror.KindOf(classify(&pgconn.PgError{Code: "40001"}, "insert")))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(classify(errors.New("syntax"), "query")))
}

func TestClassify_DataExceptionIsValidation(t *testing.T) {
	for _, code := range []string{"22021", "22P02", "22001"} {
		err := classify(&pgconn.PgError{Code: code, Message: "invalid byte sequence for encoding \"UTF8\": 0x00"}, "insert passenger")
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err), code)
		assert.Equal(t, "request contains an invalid value", apperror.PublicMessage(err))
	}
}
