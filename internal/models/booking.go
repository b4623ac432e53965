package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format of travel dates.
const DateLayout = "2006-01-02"

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID          int64         `json:"booking_id"`
	PNR         string        `json:"pnr_number"`
	UserID      int64         `json:"user_id"`
	TrainID     int64         `json:"train_id"`
	TrainName   string        `json:"train_name,omitempty"`
	TravelDate  time.Time     `json:"travel_date"`
	BookingDate time.Time     `json:"booking_date"`
	Status      BookingStatus `json:"status"`
	Passengers  []Passenger   `json:"passengers,omitempty"`
}

// MarshalJSON writes travel_date in the same YYYY-MM-DD form requests use.
func (b Booking) MarshalJSON() ([]byte, error) {
	type booking Booking
	return json.Marshal(struct {
		booking
		TravelDate string `json:"travel_date"`
	}{
		booking:    booking(b),
		TravelDate: b.TravelDate.Format(DateLayout),
	})
}

// BookingRequest is the payload of POST /book_ticket.
type BookingRequest struct {
	UserID     int64              `json:"user_id" validate:"required,gt=0"`
	TrainID    int64              `json:"train_id" validate:"required,gt=0"`
	TravelDate string             `json:"travel_date" validate:"required,datetime=2006-01-02"`
	Passengers []PassengerRequest `json:"passengers" validate:"required,min=1,max=6,dive"`
}

// BookingResult is what a successful booking hands back to the caller.
type BookingResult struct {
	BookingID   int64  `json:"booking_id"`
	PNR         string `json:"pnr_number"`
	SeatNumbers []int  `json:"seat_numbers"`
}

type CancelRequest struct {
	PNR    string `json:"pnr_number" validate:"required,len=6,alphanum"`
	UserID int64  `json:"user_id" validate:"required,gt=0"`
}
