package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGFlightRepository struct {
	pgStore
}

func NewFlightRepository(db *pgxpool.Pool, opts ...Option) FlightRepository {
	return &PGFlightRepository{pgStore: newPGStore(db, opts)}
}

// flightSummarySelect joins the company name and the booked seat total.
const flightSummarySelect = `
SELECT f.id, f.company_id, f.name, f.no_of_seats, f.base_price, f.departs_at, f.arrives_at, f.created_at, f.updated_at,
       c.name, COALESCE(SUM(b.no_of_seats), 0)
FROM flights f
JOIN companies c ON c.id = f.company_id
LEFT JOIN bookings b ON b.flight_id = f.id`

const flightColumns = `id, company_id, name, no_of_seats, base_price, departs_at, arrives_at, created_at, updated_at`

func (r *PGFlightRepository) List(ctx context.Context, filter FlightFilter) ([]domain.Flight, error) {
	sql, args := buildFlightQuery(filter)
	rows, err := r.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlightSummary(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func buildFlightQuery(filter FlightFilter) (string, []any) {
	var (
		where  []string
		having string
		args   []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CompanyID != nil {
		where = append(where, "f.company_id = "+arg(*filter.CompanyID))
	}
	if filter.NameContains != "" {
		where = append(where, "f.name ILIKE "+arg("%"+escapeLike(filter.NameContains)+"%"))
	}
	if filter.DepartsAt != nil {
		where = append(where, "date_trunc('second', f.departs_at) = "+arg(filter.DepartsAt.UTC().Truncate(time.Second)))
	}
	if filter.MinAvailableSeats != nil {
		having = " HAVING f.no_of_seats - COALESCE(SUM(b.no_of_seats), 0) >= " + arg(*filter.MinAvailableSeats)
	}

	var sb strings.Builder
	sb.WriteString(flightSummarySelect)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" GROUP BY f.id, c.name")
	sb.WriteString(having)
	sb.WriteString(" ORDER BY f.departs_at, f.name, f.created_at")
	return sb.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.q(ctx).QueryRow(ctx, flightSummarySelect+` WHERE f.id=$1 GROUP BY f.id, c.name`, id)
	f, err := scanFlightSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get flight: %w", err)
	}
	return &f, nil
}

func (r *PGFlightRepository) ListByCompany(ctx context.Context, companyID int64) ([]domain.Flight, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+flightColumns+` FROM flights WHERE company_id=$1 ORDER BY departs_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list company flights: %w", err)
	}
	return collectFlights(rows)
}

func (r *PGFlightRepository) LockForUpdate(ctx context.Context, ids ...int64) ([]domain.Flight, error) {
	ids = sortedUnique(ids)
	rows, err := r.q(ctx).Query(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock flights: %w", err)
	}
	flights, err := collectFlights(rows)
	if err != nil {
		return nil, err
	}
	if len(flights) != len(ids) {
		return nil, domain.ErrNotFound
	}
	return flights, nil
}

func (r *PGFlightRepository) NameTaken(ctx context.Context, companyID int64, name string, excludeID int64) (bool, error) {
	var taken bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM flights WHERE company_id=$1 AND LOWER(name) = LOWER($2) AND id <> $3)`,
		companyID, strings.TrimSpace(name), excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check flight name: %w", err)
	}
	return taken, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	err := r.q(ctx).QueryRow(ctx, `
INSERT INTO flights (company_id, name, no_of_seats, base_price, departs_at, arrives_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`,
		flight.CompanyID, flight.Name, flight.Capacity, flight.BaseFare, flight.DepartsAt, flight.ArrivesAt).
		Scan(&flight.ID, &flight.CreatedAt, &flight.UpdatedAt)
	return flightWriteErr("create flight", err)
}

func (r *PGFlightRepository) Update(ctx context.Context, flight *domain.Flight) error {
	err := r.q(ctx).QueryRow(ctx, `
UPDATE flights
SET company_id=$1, name=$2, no_of_seats=$3, base_price=$4, departs_at=$5, arrives_at=$6, updated_at=now()
WHERE id=$7
RETURNING created_at, updated_at`,
		flight.CompanyID, flight.Name, flight.Capacity, flight.BaseFare, flight.DepartsAt, flight.ArrivesAt, flight.ID).
		Scan(&flight.CreatedAt, &flight.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return flightWriteErr("update flight", err)
}

// Delete locks the flight's bookings before the flight so it takes locks in
// the same order as booking updates.
func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		err := r.lockRows(ctx, `SELECT id FROM bookings WHERE flight_id=$1 ORDER BY id FOR UPDATE`, id)
		if err != nil {
			return fmt.Errorf("delete flight: %w", err)
		}
		cmd, err := r.q(ctx).Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete flight: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func flightWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := uniqueViolation(err); ok {
		return domain.FieldError(domain.ErrNameTaken, "has already been taken", "name")
	}
	if isForeignKeyViolation(err) {
		return domain.FieldError(domain.ErrNotFound, "must exist", "company")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanFlightSummary(row pgx.Row) (domain.Flight, error) {
	var f domain.Flight
	err := row.Scan(&f.ID, &f.CompanyID, &f.Name, &f.Capacity, &f.BaseFare, &f.DepartsAt, &f.ArrivesAt,
		&f.CreatedAt, &f.UpdatedAt, &f.CompanyName, &f.BookedSeats)
	return f, err
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	defer rows.Close()
	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := rows.Scan(&f.ID, &f.CompanyID, &f.Name, &f.Capacity, &f.BaseFare, &f.DepartsAt, &f.ArrivesAt,
			&f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)
