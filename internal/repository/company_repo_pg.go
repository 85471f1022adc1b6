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

type PGCompanyRepository struct {
	pgStore
}

func NewCompanyRepository(db *pgxpool.Pool, opts ...Option) CompanyRepository {
	return &PGCompanyRepository{pgStore: newPGStore(db, opts)}
}

const companyColumns = `c.id, c.name, c.created_at, c.updated_at`

func (r *PGCompanyRepository) List(ctx context.Context, filter CompanyFilter) ([]domain.Company, error) {
	sql := `SELECT ` + companyColumns + ` FROM companies c`
	var args []any
	if filter.ActiveAfter != nil {
		args = append(args, *filter.ActiveAfter)
		sql += ` WHERE EXISTS (SELECT 1 FROM flights f WHERE f.company_id = c.id AND f.departs_at > $1)`
	}
	sql += ` ORDER BY c.name`

	rows, err := r.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	companies := make([]domain.Company, 0)
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *PGCompanyRepository) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	var c domain.Company
	err := r.q(ctx).QueryRow(ctx, `SELECT `+companyColumns+` FROM companies c WHERE c.id=$1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

func (r *PGCompanyRepository) LockForUpdate(ctx context.Context, ids ...int64) error {
	ids = sortedUnique(ids)
	rows, err := r.q(ctx).Query(ctx, `SELECT id FROM companies WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock companies: %w", err)
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		found++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock companies: %w", err)
	}
	if found != len(ids) {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGCompanyRepository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM companies WHERE LOWER(name) = LOWER($1) AND id <> $2)`,
		strings.TrimSpace(name), excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check company name: %w", err)
	}
	return taken, nil
}

func (r *PGCompanyRepository) Create(ctx context.Context, company *domain.Company) error {
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO companies (name) VALUES ($1) RETURNING id, created_at, updated_at`, company.Name).
		Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	return companyWriteErr("create company", err)
}

func (r *PGCompanyRepository) Update(ctx context.Context, company *domain.Company) error {
	err := r.q(ctx).QueryRow(ctx,
		`UPDATE companies SET name=$1, updated_at=now() WHERE id=$2 RETURNING created_at, updated_at`,
		company.Name, company.ID).
		Scan(&company.CreatedAt, &company.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return companyWriteErr("update company", err)
}

// Delete cascades to the company's flights and detaches their bookings, so it
// locks those bookings, then the flights, then the company.
func (r *PGCompanyRepository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		err := r.lockRows(ctx, `
			SELECT b.id FROM bookings b
			JOIN flights f ON f.id = b.flight_id
			WHERE f.company_id=$1
			ORDER BY b.id
			FOR UPDATE OF b`, id)
		if err != nil {
			return fmt.Errorf("delete company: %w", err)
		}
		if err := r.lockRows(ctx, `SELECT id FROM flights WHERE company_id=$1 ORDER BY id FOR UPDATE`, id); err != nil {
			return fmt.Errorf("delete company: %w", err)
		}
		cmd, err := r.q(ctx).Exec(ctx, `DELETE FROM companies WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete company: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func companyWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := uniqueViolation(err); ok {
		return domain.FieldError(domain.ErrNameTaken, "has already been taken", "name")
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ CompanyRepository = (*PGCompanyRepository)(nil)
