package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"clinic-booking-api/internal/model"
)

type resetTokens struct{ s *Store }

// Replace drops every earlier token of the same email so only the newest
// link works.
func (r resetTokens) Replace(ctx context.Context, t *model.PasswordResetToken) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM password_reset_tokens WHERE lower(email) = lower($1)`, t.Email,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO password_reset_tokens (id, token_hash, email, expires_at, used, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			t.ID, t.TokenHash, t.Email, t.ExpiresAt, t.Used, t.CreatedAt,
		)
		return err
	})
}

func (r resetTokens) TokenByHash(ctx context.Context, hash string) (*model.PasswordResetToken, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	t := &model.PasswordResetToken{}
	err := r.s.pool.QueryRow(ctx,
		`SELECT id, token_hash, email, expires_at, used, created_at
		 FROM password_reset_tokens WHERE token_hash = $1`, hash,
	).Scan(&t.ID, &t.TokenHash, &t.Email, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

func (r resetTokens) Consume(ctx context.Context, hash string, at time.Time) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE password_reset_tokens SET used = TRUE
			 WHERE token_hash = $1 AND NOT used AND expires_at > $2`, hash, at,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return missingOr(ctx, tx, `SELECT EXISTS(SELECT 1 FROM password_reset_tokens WHERE token_hash = $1)`, hash)
		}
		return nil
	})
}

func (r resetTokens) Delete(ctx context.Context, hash string) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE token_hash = $1`, hash)
	return mapErr(err)
}

func (r resetTokens) Purge(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	tag, err := r.s.pool.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE used OR expires_at < $1`, before,
	)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
