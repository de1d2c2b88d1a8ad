package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"clinic-booking-api/internal/model"
)

type sessions struct{ s *Store }

func (r sessions) CreateSession(ctx context.Context, sess *model.Session) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.col(colSessions).InsertOne(ctx, sessionDoc{
		ID:        sess.ID,
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
		CreatedAt: sess.CreatedAt,
	})
	return mapErr(err)
}

func (r sessions) SessionByID(ctx context.Context, id string) (*model.Session, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	var doc sessionDoc
	if err := r.s.col(colSessions).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return &model.Session{
		ID:        doc.ID,
		UserID:    doc.UserID,
		ExpiresAt: doc.ExpiresAt.UTC(),
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

func (r sessions) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.col(colSessions).DeleteOne(ctx, bson.M{"_id": id})
	return mapErr(err)
}

func (r sessions) DeleteUserSessions(ctx context.Context, userID, keepID string) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.col(colSessions).DeleteMany(ctx,
		bson.M{"user_id": userID, "_id": bson.M{"$ne": keepID}})
	return mapErr(err)
}

func (r sessions) Purge(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	res, err := r.s.col(colSessions).DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, mapErr(err)
	}
	return res.DeletedCount, nil
}
