// Package redis keeps sessions in Redis instead of the primary store.
//
// Layout:
//
//	session:<id>          JSON session, expires with the session
//	user_sessions:<uid>   set of the user's session ids, for revocation
//	sessions:by_expiry    sorted set of session ids scored by expiry (unix ms)
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

const expiryIndex = "sessions:by_expiry"

// keys of already-expired sessions still live this long so Purge can count them
const minTTL = time.Second

type Sessions struct {
	client *goredis.Client
}

var _ store.Sessions = (*Sessions)(nil)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open connects and pings the server.
func Open(ctx context.Context, opts Options) (*Sessions, error) {
	client := goredis.NewClient(&goredis.Options{
		Network:  "tcp",
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, mapErr(err)
	}
	return &Sessions{client: client}, nil
}

func New(client *goredis.Client) *Sessions { return &Sessions{client: client} }

func (s *Sessions) Close() error { return s.client.Close() }

func sessionKey(id string) string  { return "session:" + id }
func userKey(userID string) string { return "user_sessions:" + userID }
func score(t time.Time) float64    { return float64(t.UnixMilli()) }

func (s *Sessions) CreateSession(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl < minTTL {
		ttl = minTTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), data, ttl)
	pipe.SAdd(ctx, userKey(sess.UserID), sess.ID)
	pipe.ZAdd(ctx, expiryIndex, goredis.Z{Score: score(sess.ExpiresAt), Member: sess.ID})
	_, err = pipe.Exec(ctx)
	return mapErr(err)
}

func (s *Sessions) SessionByID(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		return nil, mapErr(err)
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Sessions) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.SessionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.remove(ctx, sess.UserID, id)
}

func (s *Sessions) DeleteUserSessions(ctx context.Context, userID, keepID string) error {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return mapErr(err)
	}
	for _, id := range ids {
		if id == keepID {
			continue
		}
		if err := s.remove(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// Purge drops sessions that expired before before and returns how many.
func (s *Sessions) Purge(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, expiryIndex, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, mapErr(err)
	}

	var n int64
	for _, id := range ids {
		userID := ""
		if sess, err := s.SessionByID(ctx, id); err == nil {
			userID = sess.UserID
		} else if !errors.Is(err, store.ErrNotFound) {
			return n, err
		}
		if err := s.remove(ctx, userID, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Sessions) remove(ctx context.Context, userID, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, expiryIndex, id)
	if userID != "" {
		pipe.SRem(ctx, userKey(userID), id)
	}
	_, err := pipe.Exec(ctx)
	return mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goredis.Nil) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.StorageUnavailable, "session store unavailable", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return apperr.Wrap(apperr.StorageUnavailable, "session store unavailable", err)
	}
	return err
}
