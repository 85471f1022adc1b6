package domain

import "time"

type Flight struct {
	ID        int64
	CompanyID int64
	Name      string
	Capacity  int
	BaseFare  int64
	DepartsAt time.Time
	ArrivesAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// Populated on reads only.
	CompanyName  string
	BookedSeats  int
	CurrentPrice int64
}

func (f Flight) AvailableSeats() int {
	return f.Capacity - f.BookedSeats
}
