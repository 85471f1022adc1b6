package domain

import "time"

// Booking references its flight and traveler by id. Either reference becomes
// nil once the flight or user is deleted.
type Booking struct {
	ID        int64
	FlightID  *int64
	UserID    *int64
	Seats     int
	SeatPrice int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b Booking) TotalPrice() int64 {
	return int64(b.Seats) * b.SeatPrice
}
