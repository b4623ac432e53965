package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"rail-reservation/internal/apperror"
	"rail-reservation/internal/database"
	"rail-reservation/internal/models"
)

// fakeStore is an in-memory Store. WithTx holds the store lock for the
// whole transaction and only publishes staged rows on success.
type fakeStore struct {
	mu         sync.Mutex
	users      map[int64]bool
	stations   map[string]models.Station
	trains     map[int64]models.Train
	bookings   []models.Booking
	passengers []models.Passenger
	nextID     int64

	// failPassengerInsert makes the n-th passenger insert of a
	// transaction fail. Zero disables it.
	failPassengerInsert int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]bool{1: true, 2: true},
		stations: map[string]models.Station{
			"NDLS": {ID: 1, Code: "NDLS", Name: "New Delhi"},
			"MMCT": {ID: 2, Code: "MMCT", Name: "Mumbai Central"},
			"MAS":  {ID: 3, Code: "MAS", Name: "Chennai Central"},
		},
		trains: map[int64]models.Train{
			1: {ID: 1, Name: "Rajdhani Express", SourceStationID: 1, DestinationStationID: 2, TotalSeats: 100},
			2: {ID: 2, Name: "Shatabdi Express", SourceStationID: 1, DestinationStationID: 3, TotalSeats: 3},
		},
	}
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.bookings = append(s.bookings, tx.bookings...)
	s.passengers = append(s.passengers, tx.passengers...)
	return nil
}

func (s *fakeStore) ListStations(ctx context.Context) ([]models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stations := make([]models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		stations = append(stations, st)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].Code < stations[j].Code })
	return stations, nil
}

func (s *fakeStore) GetStationByCode(ctx context.Context, code string) (*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[code]
	if !ok {
		return nil, apperror.NotFound("station not found")
	}
	return &st, nil
}

func (s *fakeStore) SearchTrains(ctx context.Context, fromStationID, toStationID int64, travelDate time.Time) ([]models.TrainAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.TrainAvailability{}
	for _, t := range s.trains {
		if t.SourceStationID != fromStationID || t.DestinationStationID != toStationID {
			continue
		}
		held := len(s.occupied(t.ID, travelDate, nil))
		result = append(result, models.TrainAvailability{TrainID: t.ID, TrainName: t.Name, AvailableSeats: t.TotalSeats - held})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TrainID < result[j].TrainID })
	return result, nil
}

func (s *fakeStore) GetBookingByPNR(ctx context.Context, pnr string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.PNR == pnr {
			return &b, nil
		}
	}
	return nil, apperror.NotFound("booking not found")
}

func (s *fakeStore) ListBookingsByUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.Booking{}
	for i := len(s.bookings) - 1; i >= 0; i-- {
		b := s.bookings[i]
		if b.UserID != userID {
			continue
		}
		for _, p := range s.passengers {
			if p.BookingID == b.ID {
				b.Passengers = append(b.Passengers, p)
			}
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *fakeStore) CancelBooking(ctx context.Context, pnr string, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		b := &s.bookings[i]
		if b.PNR == pnr && b.UserID == userID && b.Status == models.BookingConfirmed {
			b.Status = models.BookingCancelled
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) bookingCount() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings), len(s.passengers)
}

func (s *fakeStore) statusOf(pnr string) models.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.PNR == pnr {
			return b.Status
		}
	}
	return ""
}

// occupied must be called with mu held.
func (s *fakeStore) occupied(trainID int64, date time.Time, staged *fakeTx) []int {
	bookings := s.bookings
	passengers := s.passengers
	if staged != nil {
		bookings = append(append([]models.Booking{}, bookings...), staged.bookings...)
		passengers = append(append([]models.Passenger{}, passengers...), staged.passengers...)
	}
	confirmed := map[int64]bool{}
	for _, b := range bookings {
		if b.TrainID == trainID && b.TravelDate.Equal(date) && b.Status == models.BookingConfirmed {
			confirmed[b.ID] = true
		}
	}
	var seats []int
	for _, p := range passengers {
		if confirmed[p.BookingID] {
			seats = append(seats, p.SeatNumber)
		}
	}
	sort.Ints(seats)
	return seats
}

type fakeTx struct {
	store      *fakeStore
	bookings   []models.Booking
	passengers []models.Passenger
	inserts    int
}

func (t *fakeTx) LockTrain(ctx context.Context, trainID int64) (*models.Train, error) {
	train, ok := t.store.trains[trainID]
	if !ok {
		return nil, apperror.NotFound("train not found")
	}
	return &train, nil
}

func (t *fakeTx) UserExists(ctx context.Context, userID int64) (bool, error) {
	return t.store.users[userID], nil
}

func (t *fakeTx) OccupiedSeats(ctx context.Context, trainID int64, travelDate time.Time) ([]int, error) {
	return t.store.occupied(trainID, travelDate, t), nil
}

func (t *fakeTx) PNRExists(ctx context.Context, pnr string) (bool, error) {
	for _, b := range append(append([]models.Booking{}, t.store.bookings...), t.bookings...) {
		if b.PNR == pnr {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	t.store.nextID++
	booking.ID = t.store.nextID
	booking.BookingDate = time.Now()
	t.bookings = append(t.bookings, *booking)
	return nil
}

func (t *fakeTx) InsertPassenger(ctx context.Context, passenger *models.Passenger) error {
	t.inserts++
	if t.store.failPassengerInsert > 0 && t.inserts == t.store.failPassengerInsert {
		return apperror.Wrap(apperror.KindStoreUnavailable, errors.New("connection reset"), "database temporarily unavailable")
	}
	t.store.nextID++
	passenger.ID = t.store.nextID
	t.passengers = append(t.passengers, *passenger)
	return nil
}
