package postgres

import (
	"context"
	"time"

	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

type users struct{ s *Store }

const userColumns = `id, username, email, password_hash, first_name, last_name, active, created_at, updated_at`

func (r users) CreateUser(ctx context.Context, u *model.User) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, first_name, last_name, active, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Active, u.CreatedAt, u.UpdatedAt,
	)
	return mapErr(err)
}

func (r users) UserByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r users) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
}

func (r users) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r users) one(ctx context.Context, q string, arg string) (*model.User, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	u := &model.User{}
	err := r.s.pool.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (r users) UpdateProfile(ctx context.Context, u *model.User) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE users SET username=$1, email=$2, first_name=$3, last_name=$4, updated_at=$5
		 WHERE id=$6`,
		u.Username, u.Email, u.FirstName, u.LastName, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r users) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE users SET password_hash=$1, updated_at=$2 WHERE id=$3`, hash, at, id,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
