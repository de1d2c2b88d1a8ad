// Package postgres is the PostgreSQL store driver built on pgxpool.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/store"
)

const defaultTimeout = 5 * time.Second

type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// New wraps pool. Every call is bounded by timeout (5s when zero).
func New(pool *pgxpool.Pool, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{pool: pool, timeout: timeout}
}

// Open connects to url and verifies the connection.
func Open(ctx context.Context, url string, timeout time.Duration) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	s := New(pool, timeout)
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Users() store.Users               { return users{s} }
func (s *Store) Doctors() store.Doctors           { return doctors{s} }
func (s *Store) Slots() store.Slots               { return slots{s} }
func (s *Store) Appointments() store.Appointments { return appointments{s} }
func (s *Store) ResetTokens() store.ResetTokens   { return resetTokens{s} }
func (s *Store) Sessions() store.Sessions         { return sessions{s} }

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return mapErr(s.pool.Ping(ctx))
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// withTx runs fn in a transaction, committing only when fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

const uniqueViolation = "23505"

// constraint name -> field reported in store.DuplicateError
var uniqueFields = map[string]string{
	"users_username_key":              "username",
	"users_email_key":                 "email",
	"password_reset_tokens_token_key": "token",
	"appointments_active_slot_key":    "slot",
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	// already mapped inside a transaction
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}
	if _, ok := store.Duplicate(err); ok {
		return err
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			field, ok := uniqueFields[pgErr.ConstraintName]
			if !ok && strings.HasSuffix(pgErr.ConstraintName, "_pkey") {
				field = "id"
			}
			return &store.DuplicateError{Field: field}
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || errors.As(err, &connErr) {
		return apperr.Wrap(apperr.StorageUnavailable, "storage unavailable", err)
	}
	return err
}
