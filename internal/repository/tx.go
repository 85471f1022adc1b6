package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultMaxTxRetries = 3

type txKey struct{}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgStore is embedded by every Postgres repository so they share one
// transaction per request context.
type pgStore struct {
	db         *pgxpool.Pool
	maxRetries int
}

type Option func(*pgStore)

// WithMaxTxRetries bounds how often a transaction is replayed after a
// serialization failure or deadlock.
func WithMaxTxRetries(n int) Option {
	return func(s *pgStore) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func newPGStore(db *pgxpool.Pool, opts []Option) pgStore {
	s := pgStore{db: db, maxRetries: DefaultMaxTxRetries}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithTx runs fn in a READ COMMITTED transaction. Row locks taken with
// FOR UPDATE inside fn make later statements see the latest committed rows.
// Serialization failures and deadlocks replay fn up to maxRetries times, then
// surface as domain.ErrConflict.
func (s *pgStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	for attempt := 0; ; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= s.maxRetries {
			return fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
	}
}

func (s *pgStore) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *pgStore) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// lockRows takes FOR UPDATE locks on the rows query selects. Writers lock
// bookings before flights and flights before companies; deletes take the
// rows their cascades will touch up front to keep that order.
func (s *pgStore) lockRows(ctx context.Context, query string, args ...any) error {
	if _, err := s.q(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("lock rows: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// uniqueViolation returns the violated constraint name, if err is one.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
