package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
)

// Transactor runs fn in one transaction. Repositories called with the context
// passed to fn join that transaction. Nested calls reuse the outer one.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CompanyFilter struct {
	// ActiveAfter keeps companies with at least one flight departing after it.
	ActiveAfter *time.Time
}

type FlightFilter struct {
	CompanyID         *int64
	NameContains      string
	DepartsAt         *time.Time
	MinAvailableSeats *int
}

func (f FlightFilter) IsZero() bool {
	return f.CompanyID == nil && f.NameContains == "" && f.DepartsAt == nil && f.MinAvailableSeats == nil
}

type BookingFilter struct {
	UserID *int64
	// ActiveAfter keeps bookings whose flight departs after it.
	ActiveAfter *time.Time
}

type CompanyRepository interface {
	Transactor
	List(ctx context.Context, filter CompanyFilter) ([]domain.Company, error)
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
	// LockForUpdate row-locks the companies; ErrNotFound if any is missing.
	LockForUpdate(ctx context.Context, ids ...int64) error
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, company *domain.Company) error
	Update(ctx context.Context, company *domain.Company) error
	Delete(ctx context.Context, id int64) error
}

type FlightRepository interface {
	Transactor
	List(ctx context.Context, filter FlightFilter) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	ListByCompany(ctx context.Context, companyID int64) ([]domain.Flight, error)
	// LockForUpdate row-locks the flights in ascending id order and returns
	// them in that order; ErrNotFound if any is missing.
	LockForUpdate(ctx context.Context, ids ...int64) ([]domain.Flight, error)
	NameTaken(ctx context.Context, companyID int64, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Update(ctx context.Context, flight *domain.Flight) error
	Delete(ctx context.Context, id int64) error
}

type BookingRepository interface {
	Transactor
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	// SumSeats totals the seats of every booking referencing the flight.
	SumSeats(ctx context.Context, flightID int64) (int, error)
	Create(ctx context.Context, booking *domain.Booking) error
	Update(ctx context.Context, booking *domain.Booking) error
	Delete(ctx context.Context, id int64) error
}

type UserRepository interface {
	List(ctx context.Context) ([]domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id int64) error
	// RotateTokenVersion bumps the user's token version and returns the new one.
	RotateTokenVersion(ctx context.Context, id int64) (int, error)
}

type EventLogRepository interface {
	Append(ctx context.Context, entry domain.EventLogEntry) error
}
