package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

type users struct{ s *Store }

func (r users) CreateUser(ctx context.Context, u *model.User) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.col(colUsers).InsertOne(ctx, toUserDoc(u))
	return mapErr(err)
}

func (r users) UserByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, bson.M{"_id": id})
}

func (r users) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.one(ctx, bson.M{"username_lower": strings.ToLower(username)})
}

func (r users) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, bson.M{"email_lower": strings.ToLower(email)})
}

func (r users) one(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	var doc userDoc
	if err := r.s.col(colUsers).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.model(), nil
}

func (r users) UpdateProfile(ctx context.Context, u *model.User) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	res, err := r.s.col(colUsers).UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
		"username":       u.Username,
		"username_lower": strings.ToLower(u.Username),
		"email":          u.Email,
		"email_lower":    strings.ToLower(u.Email),
		"first_name":     u.FirstName,
		"last_name":      u.LastName,
		"updated_at":     u.UpdatedAt,
	}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r users) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	res, err := r.s.col(colUsers).UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": at}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
