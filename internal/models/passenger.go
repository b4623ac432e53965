package models

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

type Passenger struct {
	ID         int64  `json:"passenger_id"`
	BookingID  int64  `json:"booking_id"`
	Name       string `json:"passenger_name"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	SeatNumber int    `json:"seat_number"`
}

type PassengerRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Age    int    `json:"age" validate:"required,min=1,max=120"`
	Gender string `json:"gender" validate:"required,oneof=Male Female Other"`
}
