package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/testutil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepositories(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.NotNil(t, NewFlightRepository(pool))
	assert.NotNil(t, NewBookingRepository(pool, WithMaxTxRetries(5)))
	assert.NotNil(t, NewCompanyRepository(pool))
	assert.NotNil(t, NewUserRepository(pool))
	assert.NotNil(t, NewEventLogRepository(pool))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryable(errors.New("boom")))
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 9}, sortedUnique([]int64{9, 3, 9, 1}))
}

func TestBuildFlightQuery(t *testing.T) {
	departs := time.Date(2030, 1, 2, 3, 4, 5, 600, time.UTC)
	seats := 3
	sql, args := buildFlightQuery(FlightFilter{NameContains: "50%", DepartsAt: &departs, MinAvailableSeats: &seats})

	assert.Contains(t, sql, "f.name ILIKE $1")
	assert.Contains(t, sql, "date_trunc('second', f.departs_at) = $2")
	assert.Contains(t, sql, "HAVING f.no_of_seats - COALESCE(SUM(b.no_of_seats), 0) >= $3")
	require.Len(t, args, 3)
	assert.Equal(t, `%50\%%`, args[0])
	assert.Equal(t, departs.Truncate(time.Second), args[1])
	assert.Equal(t, 3, args[2])
}

type pgFixture struct {
	companies CompanyRepository
	flights   FlightRepository
	bookings  BookingRepository
	users     UserRepository
}

func newPGFixture(t *testing.T) pgFixture {
	pool := testutil.NewTestPool(t)
	return pgFixture{
		companies: NewCompanyRepository(pool),
		flights:   NewFlightRepository(pool),
		bookings:  NewBookingRepository(pool),
		users:     NewUserRepository(pool),
	}
}

func (f pgFixture) company(t *testing.T, name string) *domain.Company {
	c := &domain.Company{Name: name}
	require.NoError(t, f.companies.Create(context.Background(), c))
	return c
}

func (f pgFixture) flight(t *testing.T, companyID int64, name string, capacity int, departs time.Time) *domain.Flight {
	fl := &domain.Flight{CompanyID: companyID, Name: name, Capacity: capacity, BaseFare: 100, DepartsAt: departs, ArrivesAt: departs.Add(2 * time.Hour)}
	require.NoError(t, f.flights.Create(context.Background(), fl))
	return fl
}

func (f pgFixture) user(t *testing.T, email string) *domain.User {
	u := &domain.User{FirstName: "Ana", Email: email, Role: domain.RoleTraveler, PasswordDigest: "x"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f pgFixture) booking(t *testing.T, flightID, userID int64, seats int) *domain.Booking {
	b := &domain.Booking{FlightID: &flightID, UserID: &userID, Seats: seats, SeatPrice: 10}
	require.NoError(t, f.bookings.Create(context.Background(), b))
	return b
}

func TestPG_FlightFiltersAndAggregates(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	c := f.company(t, "Croatia Airlines")
	zg := f.flight(t, c.ID, "Zagreb Split", 10, now.Add(48*time.Hour))
	f.flight(t, c.ID, "Zagreb Dubrovnik", 5, now.Add(96*time.Hour))
	u := f.user(t, "ana@example.com")
	f.booking(t, zg.ID, u.ID, 8)

	got, err := f.flights.GetByID(ctx, zg.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.BookedSeats)
	assert.Equal(t, "Croatia Airlines", got.CompanyName)

	byName, err := f.flights.List(ctx, FlightFilter{NameContains: "split"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, zg.ID, byName[0].ID)

	departs := zg.DepartsAt.Add(300 * time.Millisecond)
	byTime, err := f.flights.List(ctx, FlightFilter{DepartsAt: &departs})
	require.NoError(t, err)
	require.Len(t, byTime, 1)

	minSeats := 3
	bySeats, err := f.flights.List(ctx, FlightFilter{MinAvailableSeats: &minSeats})
	require.NoError(t, err)
	require.Len(t, bySeats, 1)
	assert.Equal(t, "Zagreb Dubrovnik", bySeats[0].Name)
}

func TestPG_ActiveCompaniesAreDistinct(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	busy := f.company(t, "Busy Air")
	f.flight(t, busy.ID, "B1", 10, now.Add(24*time.Hour))
	f.flight(t, busy.ID, "B2", 10, now.Add(72*time.Hour))
	past := f.company(t, "Past Air")
	f.flight(t, past.ID, "P1", 10, now.Add(-72*time.Hour))
	f.company(t, "Idle Air")

	active, err := f.companies.List(ctx, CompanyFilter{ActiveAfter: &now})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, busy.ID, active[0].ID)

	all, err := f.companies.List(ctx, CompanyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPG_CompanyNameUniqueCaseInsensitive(t *testing.T) {
	f := newPGFixture(t)
	f.company(t, "Lufthansa")

	err := f.companies.Create(context.Background(), &domain.Company{Name: "LUFTHANSA"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNameTaken))
}

func TestPG_BookingsOrderingAndNullify(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := f.company(t, "Order Air")
	late := f.flight(t, c.ID, "Late", 10, now.Add(72*time.Hour))
	early := f.flight(t, c.ID, "Early", 10, now.Add(24*time.Hour))
	u := f.user(t, "order@example.com")
	b1 := f.booking(t, late.ID, u.ID, 1)
	b2 := f.booking(t, early.ID, u.ID, 1)

	list, err := f.bookings.List(ctx, BookingFilter{UserID: &u.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b2.ID, list[0].ID)
	assert.Equal(t, b1.ID, list[1].ID)

	require.NoError(t, f.flights.Delete(ctx, early.ID))
	orphan, err := f.bookings.GetByID(ctx, b2.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan.FlightID)

	active, err := f.bookings.List(ctx, BookingFilter{ActiveAfter: &now})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b1.ID, active[0].ID)
}

func TestPG_LockForUpdateMissingRow(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	err := f.flights.WithTx(ctx, func(txCtx context.Context) error {
		_, err := f.flights.LockForUpdate(txCtx, 12345)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// A booking moving off a flight while that flight is deleted must not
// deadlock: both sides lock the booking before the flight.
func TestPG_DeleteFlightWhileBookingMovesOff(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := f.company(t, "Race Air")
	keep := f.flight(t, c.ID, "Keep", 10, now.Add(24*time.Hour))
	doomed := f.flight(t, c.ID, "Doomed", 10, now.Add(48*time.Hour))
	u := f.user(t, "race@example.com")
	b := f.booking(t, doomed.ID, u.ID, 2)

	locked := make(chan struct{})
	moveErr := make(chan error, 1)
	go func() {
		moveErr <- f.bookings.WithTx(ctx, func(ctx context.Context) error {
			current, err := f.bookings.GetForUpdate(ctx, b.ID)
			if err != nil {
				return err
			}
			if _, err := f.flights.LockForUpdate(ctx, keep.ID, doomed.ID); err != nil {
				return err
			}
			close(locked)
			time.Sleep(200 * time.Millisecond)
			current.FlightID = &keep.ID
			return f.bookings.Update(ctx, current)
		})
	}()

	<-locked
	require.NoError(t, f.flights.Delete(ctx, doomed.ID))
	require.NoError(t, <-moveErr)

	moved, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.FlightID)
	assert.Equal(t, keep.ID, *moved.FlightID)
	_, err = f.flights.GetByID(ctx, doomed.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPG_DeletesJoinCallerTx(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	boom := errors.New("boom")

	c := f.company(t, "Rollback Air")
	fl := f.flight(t, c.ID, "Stay", 10, now.Add(24*time.Hour))
	u := f.user(t, "rollback@example.com")
	b := f.booking(t, fl.ID, u.ID, 1)

	err := f.flights.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, f.bookings.Delete(ctx, b.ID))
		require.NoError(t, f.users.Delete(ctx, u.ID))
		require.NoError(t, f.companies.Delete(ctx, c.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	kept, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, kept.FlightID)
	assert.Equal(t, fl.ID, *kept.FlightID)
	_, err = f.users.GetByID(ctx, u.ID)
	assert.NoError(t, err)

	require.NoError(t, f.companies.Delete(ctx, c.ID))
	_, err = f.flights.GetByID(ctx, fl.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.companies.Delete(ctx, c.ID), domain.ErrNotFound)
}
