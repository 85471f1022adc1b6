package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGBookingRepository struct {
	pgStore
}

func NewBookingRepository(db *pgxpool.Pool, opts ...Option) BookingRepository {
	return &PGBookingRepository{pgStore: newPGStore(db, opts)}
}

const bookingColumns = `b.id, b.flight_id, b.user_id, b.no_of_seats, b.seat_price, b.created_at, b.updated_at`

func (r *PGBookingRepository) List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("b.user_id = $%d", len(args)))
	}
	if filter.ActiveAfter != nil {
		args = append(args, *filter.ActiveAfter)
		where = append(where, fmt.Sprintf("f.departs_at > $%d", len(args)))
	}

	sql := `SELECT ` + bookingColumns + ` FROM bookings b LEFT JOIN flights f ON f.id = b.flight_id`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY f.departs_at, f.name, b.created_at, b.id`

	rows, err := r.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=$1`, id)
}

func (r *PGBookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=$1 FOR UPDATE`, id)
}

func (r *PGBookingRepository) get(ctx context.Context, sql string, id int64) (*domain.Booking, error) {
	b, err := scanBooking(r.q(ctx).QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func (r *PGBookingRepository) SumSeats(ctx context.Context, flightID int64) (int, error) {
	var total int
	err := r.q(ctx).QueryRow(ctx, `SELECT COALESCE(SUM(no_of_seats), 0) FROM bookings WHERE flight_id=$1`, flightID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum booked seats: %w", err)
	}
	return total, nil
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	err := r.q(ctx).QueryRow(ctx, `
INSERT INTO bookings (flight_id, user_id, no_of_seats, seat_price)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`,
		booking.FlightID, booking.UserID, booking.Seats, booking.SeatPrice).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	return bookingWriteErr("create booking", err)
}

func (r *PGBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	err := r.q(ctx).QueryRow(ctx, `
UPDATE bookings SET flight_id=$1, user_id=$2, no_of_seats=$3, seat_price=$4, updated_at=now()
WHERE id=$5
RETURNING created_at, updated_at`,
		booking.FlightID, booking.UserID, booking.Seats, booking.SeatPrice, booking.ID).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return bookingWriteErr("update booking", err)
}

func (r *PGBookingRepository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		cmd, err := r.q(ctx).Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func bookingWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return domain.FieldError(domain.ErrNotFound, "must exist", "user")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.FlightID, &b.UserID, &b.Seats, &b.SeatPrice, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

var _ BookingRepository = (*PGBookingRepository)(nil)
