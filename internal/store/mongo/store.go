// Package mongo is the MongoDB store driver.
//
// Case-insensitive uniqueness is enforced through lowercased shadow fields
// (username_lower, email_lower) carrying unique indexes. Book and Cancel rely
// on single-document atomic updates of the slot and appointment. The second
// write of each pair is compensated on failure, and a partial unique index
// allows one BOOKED appointment per slot.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/store"
)

const defaultTimeout = 5 * time.Second

const (
	colUsers        = "users"
	colDoctors      = "doctors"
	colSlots        = "appointment_slots"
	colAppointments = "appointments"
	colResetTokens  = "password_reset_tokens"
	colSessions     = "sessions"
)

type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// Open connects to uri, pings the server and ensures indexes on database.
func Open(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, mapErr(err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, mapErr(err)
	}

	s := &Store{client: client, db: client.Database(database), timeout: timeout}
	if err := s.ensureIndexes(cctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := func(name string, keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name).SetUnique(true)}
	}
	plain := func(name string, keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
	}

	activeSlot := options.Index().SetName("appointments_active_slot_key").SetUnique(true).
		SetPartialFilterExpression(bson.M{"status": "BOOKED"})

	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			unique("users_username_key", bson.D{{Key: "username_lower", Value: 1}}),
			unique("users_email_key", bson.D{{Key: "email_lower", Value: 1}}),
		},
		colSlots: {
			plain("appointment_slots_doctor_idx", bson.D{{Key: "doctor_id", Value: 1}, {Key: "start_time", Value: 1}}),
		},
		colAppointments: {
			plain("appointments_patient_idx", bson.D{{Key: "patient_id", Value: 1}, {Key: "created_at", Value: 1}}),
			// at most one BOOKED appointment per slot
			{
				Keys:    bson.D{{Key: "slot_id", Value: 1}},
				Options: activeSlot,
			},
		},
		colResetTokens: {
			unique("password_reset_tokens_token_key", bson.D{{Key: "token_hash", Value: 1}}),
			plain("password_reset_tokens_email_idx", bson.D{{Key: "email_lower", Value: 1}}),
		},
		colSessions: {
			plain("sessions_user_idx", bson.D{{Key: "user_id", Value: 1}}),
			// the server drops expired sessions on its own; Purge covers the gap
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetName("sessions_ttl").SetExpireAfterSeconds(0),
			},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return mapErr(err)
		}
	}
	return nil
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
	return mapErr(s.client.Ping(ctx, nil))
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// index name -> field reported in store.DuplicateError
var uniqueFields = map[string]string{
	"users_username_key":              "username",
	"users_email_key":                 "email",
	"password_reset_tokens_token_key": "token",
	"appointments_active_slot_key":    "slot",
	"_id_":                            "id",
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		for index, field := range uniqueFields {
			if strings.Contains(msg, "index: "+index+" ") {
				return &store.DuplicateError{Field: field}
			}
		}
		return &store.DuplicateError{}
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) {
		return apperr.Wrap(apperr.StorageUnavailable, "storage unavailable", err)
	}
	return err
}
