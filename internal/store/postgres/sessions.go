package postgres

import (
	"context"
	"time"

	"clinic-booking-api/internal/model"
)

type sessions struct{ s *Store }

func (r sessions) CreateSession(ctx context.Context, sess *model.Session) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1,$2,$3,$4)`,
		sess.ID, sess.UserID, sess.ExpiresAt, sess.CreatedAt,
	)
	return mapErr(err)
}

func (r sessions) SessionByID(ctx context.Context, id string) (*model.Session, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	sess := &model.Session{}
	err := r.s.pool.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return sess, nil
}

func (r sessions) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return mapErr(err)
}

// revoke everything but the caller's own session (password change, reset)
func (r sessions) DeleteUserSessions(ctx context.Context, userID, keepID string) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND id <> $2`, userID, keepID,
	)
	return mapErr(err)
}

func (r sessions) Purge(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	tag, err := r.s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
