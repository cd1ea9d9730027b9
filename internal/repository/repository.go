// Package repository is the pgx-backed persistence gateway. It
// implements the store interfaces declared by the components that
// consume it and translates driver failures into the domain error
// taxonomy.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/checkin"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	pool *pgxpool.Pool
	db   querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// WithTx runs fn against a transaction-scoped store. Either every
// write in fn lands or none of them do.
func (s *Store) WithTx(ctx context.Context, fn func(checkin.Store) error) error {
	if s.pool == nil {
		return domain.Storage(errors.New("nested transaction"))
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Storage(err)
	}
	scoped := &Store{db: tx}
	if err := fn(scoped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Storage(err)
	}
	return nil
}

const uniqueViolation = "23505"

func translate(err error, notFoundCode, conflictCode string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(notFoundCode)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Conflict(conflictCode)
	}
	return domain.Storage(err)
}
