package api

import (
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
)

type flightResponse struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	NoOfSeats      int       `json:"no_of_seats"`
	BasePrice      int64     `json:"base_price"`
	DepartsAt      time.Time `json:"departs_at"`
	ArrivesAt      time.Time `json:"arrives_at"`
	CompanyID      int64     `json:"company_id"`
	CompanyName    string    `json:"company_name"`
	BookedSeats    int       `json:"no_of_booked_seats"`
	AvailableSeats int       `json:"available_seats"`
	CurrentPrice   int64     `json:"current_price"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func presentFlight(f domain.Flight) flightResponse {
	return flightResponse{
		ID:             f.ID,
		Name:           f.Name,
		NoOfSeats:      f.Capacity,
		BasePrice:      f.BaseFare,
		DepartsAt:      f.DepartsAt,
		ArrivesAt:      f.ArrivesAt,
		CompanyID:      f.CompanyID,
		CompanyName:    f.CompanyName,
		BookedSeats:    f.BookedSeats,
		AvailableSeats: f.AvailableSeats(),
		CurrentPrice:   f.CurrentPrice,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

type bookingResponse struct {
	ID         int64     `json:"id"`
	NoOfSeats  int       `json:"no_of_seats"`
	SeatPrice  int64     `json:"seat_price"`
	TotalPrice int64     `json:"total_price"`
	FlightID   *int64    `json:"flight_id"`
	UserID     *int64    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func presentBooking(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		NoOfSeats:  b.Seats,
		SeatPrice:  b.SeatPrice,
		TotalPrice: b.TotalPrice(),
		FlightID:   b.FlightID,
		UserID:     b.UserID,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

type companyResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func presentCompany(c domain.Company) companyResponse {
	return companyResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

type userResponse struct {
	ID        int64       `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func presentUser(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func presentAll[T, R any](items []T, present func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, present(it))
	}
	return out
}
