package models

type Station struct {
	ID   int64  `json:"station_id"`
	Code string `json:"station_code"`
	Name string `json:"station_name"`
}

type Train struct {
	ID                   int64  `json:"train_id"`
	Name                 string `json:"train_name"`
	SourceStationID      int64  `json:"source_station_id"`
	DestinationStationID int64  `json:"destination_station_id"`
	TotalSeats           int    `json:"total_seats"`
}

// TrainAvailability is one row of a train search result.
type TrainAvailability struct {
	TrainID        int64  `json:"train_id"`
	TrainName      string `json:"train_name"`
	AvailableSeats int    `json:"available_seats"`
}
