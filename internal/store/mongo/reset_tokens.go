package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

type resetTokens struct{ s *Store }

// Replace is two writes without a transaction so it works on a standalone
// server. A crash between them leaves the user without a token, which a new
// request repairs.
func (r resetTokens) Replace(ctx context.Context, t *model.PasswordResetToken) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()

	col := r.s.col(colResetTokens)
	n, err := col.CountDocuments(ctx, bson.M{"token_hash": t.TokenHash})
	if err != nil {
		return mapErr(err)
	}
	if n > 0 {
		return &store.DuplicateError{Field: "token"}
	}
	if _, err := col.DeleteMany(ctx, bson.M{"email_lower": strings.ToLower(t.Email)}); err != nil {
		return mapErr(err)
	}
	_, err = col.InsertOne(ctx, resetTokenDoc{
		ID:         t.ID,
		TokenHash:  t.TokenHash,
		Email:      t.Email,
		EmailLower: strings.ToLower(t.Email),
		ExpiresAt:  t.ExpiresAt,
		Used:       t.Used,
		CreatedAt:  t.CreatedAt,
	})
	return mapErr(err)
}

func (r resetTokens) TokenByHash(ctx context.Context, hash string) (*model.PasswordResetToken, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	var doc resetTokenDoc
	if err := r.s.col(colResetTokens).FindOne(ctx, bson.M{"token_hash": hash}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return &model.PasswordResetToken{
		ID:        doc.ID,
		TokenHash: doc.TokenHash,
		Email:     doc.Email,
		ExpiresAt: doc.ExpiresAt.UTC(),
		Used:      doc.Used,
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

func (r resetTokens) Consume(ctx context.Context, hash string, at time.Time) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	col := r.s.col(colResetTokens)
	res, err := col.UpdateOne(ctx,
		bson.M{"token_hash": hash, "used": false, "expires_at": bson.M{"$gt": at}},
		bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := col.CountDocuments(ctx, bson.M{"token_hash": hash})
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r resetTokens) Delete(ctx context.Context, hash string) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.col(colResetTokens).DeleteOne(ctx, bson.M{"token_hash": hash})
	return mapErr(err)
}

func (r resetTokens) Purge(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	res, err := r.s.col(colResetTokens).DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"used": true},
		bson.M{"expires_at": bson.M{"$lt": before}},
	}})
	if err != nil {
		return 0, mapErr(err)
	}
	return res.DeletedCount, nil
}
