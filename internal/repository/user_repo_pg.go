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

type PGUserRepository struct {
	pgStore
}

func NewUserRepository(db *pgxpool.Pool, opts ...Option) UserRepository {
	return &PGUserRepository{pgStore: newPGStore(db, opts)}
}

const userColumns = `id, first_name, last_name, email, role, password_digest, token_version, created_at, updated_at`

func (r *PGUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PGUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *PGUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
}

func (r *PGUserRepository) get(ctx context.Context, sql string, arg any) (*domain.User, error) {
	u, err := scanUser(r.q(ctx).QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *PGUserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> $2)`,
		strings.TrimSpace(email), excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

func (r *PGUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.q(ctx).QueryRow(ctx, `
INSERT INTO users (first_name, last_name, email, role, password_digest)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, token_version, created_at, updated_at`,
		user.FirstName, user.LastName, user.Email, user.Role, user.PasswordDigest).
		Scan(&user.ID, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)
	return userWriteErr("create user", err)
}

func (r *PGUserRepository) Update(ctx context.Context, user *domain.User) error {
	err := r.q(ctx).QueryRow(ctx, `
UPDATE users SET first_name=$1, last_name=$2, email=$3, role=$4, password_digest=$5, updated_at=now()
WHERE id=$6
RETURNING token_version, created_at, updated_at`,
		user.FirstName, user.LastName, user.Email, user.Role, user.PasswordDigest, user.ID).
		Scan(&user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return userWriteErr("update user", err)
}

func (r *PGUserRepository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		err := r.lockRows(ctx, `SELECT id FROM bookings WHERE user_id=$1 ORDER BY id FOR UPDATE`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		cmd, err := r.q(ctx).Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *PGUserRepository) RotateTokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := r.q(ctx).QueryRow(ctx,
		`UPDATE users SET token_version = token_version + 1, updated_at=now() WHERE id=$1 RETURNING token_version`, id).
		Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("rotate token: %w", err)
	}
	return version, nil
}

func userWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := uniqueViolation(err); ok {
		return domain.FieldError(domain.ErrNameTaken, "has already been taken", "email")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role, &u.PasswordDigest, &u.TokenVersion,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

var _ UserRepository = (*PGUserRepository)(nil)
