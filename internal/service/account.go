package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/auth"
	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

type AccountConfig struct {
	JWTSecret  string
	SessionTTL time.Duration // default 24h
	BcryptCost int
	Now        func() time.Time
}

// AccountService owns registration, authentication, sessions and profile
// changes.
type AccountService struct {
	users    store.Users
	sessions store.Sessions
	hasher   auth.Hasher
	secret   string
	ttl      time.Duration
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(st store.Store, cfg AccountConfig) *AccountService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &AccountService{
		users:    st.Users(),
		sessions: st.Sessions(),
		hasher:   auth.Hasher{Cost: cfg.BcryptCost},
		secret:   cfg.JWTSecret,
		ttl:      cfg.SessionTTL,
		now:      nowFunc(cfg.Now),
	}
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, apperr.New(apperr.Invalid, "username is required")
	}
	if !validEmail(in.Email) {
		return nil, apperr.New(apperr.Invalid, "a valid email is required")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	if err := s.ensureFree(ctx, "", in.Username, in.Email); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperr.New(apperr.PasswordMismatch, "passwords do not match")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "internal error", err)
	}
	now := s.now()
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// the unique indexes settle a concurrent registration that passed ensureFree
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, takenErr(err)
	}

	logx.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// ensureFree reports UsernameTaken / EmailTaken for values held by a user
// other than selfID.
func (s *AccountService) ensureFree(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		other, err := s.users.UserByUsername(ctx, username)
		switch {
		case err == nil && other.ID != selfID:
			return apperr.New(apperr.UsernameTaken, "username already exists")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return storageErr(err)
		}
	}
	if email != "" {
		other, err := s.users.UserByEmail(ctx, email)
		switch {
		case err == nil && other.ID != selfID:
			return apperr.New(apperr.EmailTaken, "email already exists")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return storageErr(err)
		}
	}
	return nil
}

var errInvalidLogin = apperr.New(apperr.InvalidCredentials, "invalid username/email or password")

// Authenticate resolves identifier as an email when it contains '@' and as a
// username otherwise, falling back to the other lookup. Unknown users and
// wrong passwords fail identically.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, errInvalidLogin
	}

	first, second := s.users.UserByUsername, s.users.UserByEmail
	if strings.Contains(identifier, "@") {
		first, second = second, first
	}

	u, err := first(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		u, err = second(ctx, identifier)
	}
	if errors.Is(err, store.ErrNotFound) {
		// keep the timing of unknown users close to a wrong password
		s.hasher.Check(s.dummy(), password)
		return nil, errInvalidLogin
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if !u.Active {
		return nil, apperr.New(apperr.AccountDisabled, "account is disabled")
	}
	if !s.hasher.Check(u.PasswordHash, password) {
		return nil, errInvalidLogin
	}
	return u, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.New().String())
	})
	return s.dummyHash
}

type LoginResult struct {
	User      *model.User
	Session   *model.Session
	Token     string
	ExpiresAt time.Time
}

// Login authenticates, opens a server-side session and signs an access
// token bound to it.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	u, err := s.Authenticate(ctx, identifier, password)
	if err != nil {
		logx.FromContext(ctx).Info("login rejected", "kind", apperr.KindOf(err))
		return nil, err
	}

	now := s.now()
	sess := &model.Session{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, storageErr(err)
	}

	tok, err := auth.MakeToken(u.ID, sess.ID, s.secret, sess.ExpiresAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "internal error", err)
	}

	logx.FromContext(ctx).Info("user logged in", "user_id", u.ID)
	return &LoginResult{User: u, Session: sess, Token: tok, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	return storageErr(s.sessions.DeleteSession(ctx, sessionID))
}

var errNoSession = apperr.New(apperr.Unauthenticated, "invalid or expired session")

// ResolveSession checks an access token against the session store. A token
// outlives its session only until the session is revoked or expires.
func (s *AccountService) ResolveSession(ctx context.Context, rawToken string) (*model.Session, error) {
	claims, err := auth.ParseToken(rawToken, s.secret)
	if err != nil {
		return nil, errNoSession
	}

	sess, err := s.sessions.SessionByID(ctx, claims.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if sess.UserID != claims.UserID {
		return nil, errNoSession
	}
	if !s.now().Before(sess.ExpiresAt) {
		if err := s.sessions.DeleteSession(ctx, sess.ID); err != nil {
			logx.FromContext(ctx).Warn("failed to drop expired session", "error", err)
		}
		return nil, errNoSession
	}

	u, err := s.users.UserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if !u.Active {
		return nil, apperr.New(apperr.AccountDisabled, "account is disabled")
	}
	return sess, nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return u, nil
}

type ProfileInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, apperr.New(apperr.Invalid, "username is required")
	}
	if !validEmail(in.Email) {
		return nil, apperr.New(apperr.Invalid, "a valid email is required")
	}

	u, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, u.ID, in.Username, in.Email); err != nil {
		return nil, err
	}

	u.Username = in.Username
	u.Email = in.Email
	u.FirstName = strings.TrimSpace(in.FirstName)
	u.LastName = strings.TrimSpace(in.LastName)
	u.UpdatedAt = s.now()
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, takenErr(err)
	}
	return u, nil
}

// ChangePassword replaces the password and revokes every other session of
// the user; keepSessionID stays signed in.
func (s *AccountService) ChangePassword(ctx context.Context, userID, keepSessionID, current, next, confirm string) error {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Check(u.PasswordHash, current) {
		return apperr.New(apperr.InvalidCredentials, "current password is incorrect")
	}
	if next != confirm {
		return apperr.New(apperr.PasswordMismatch, "new passwords do not match")
	}
	if err := checkPassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "internal error", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return storageErr(err)
	}

	logger := logx.FromContext(ctx)
	if err := s.sessions.DeleteUserSessions(ctx, u.ID, keepSessionID); err != nil {
		logger.Warn("failed to revoke sessions after password change", "user_id", u.ID, "error", err)
	}
	logger.Info("password changed", "user_id", u.ID)
	return nil
}
