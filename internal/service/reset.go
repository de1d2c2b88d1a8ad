package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/auth"
	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/notify"
	"clinic-booking-api/internal/store"
)

type ResetConfig struct {
	BaseURL    string        // reset links point at BaseURL/reset-password
	TokenTTL   time.Duration // default 24h
	BcryptCost int
	Now        func() time.Time
}

// ResetService runs the password reset token lifecycle:
// issue -> deliver -> validate -> consume, or passive expiry.
type ResetService struct {
	users    store.Users
	tokens   store.ResetTokens
	sessions store.Sessions
	notifier notify.Notifier
	hasher   auth.Hasher
	baseURL  string
	ttl      time.Duration
	now      func() time.Time
}

func NewResetService(st store.Store, n notify.Notifier, cfg ResetConfig) *ResetService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &ResetService{
		users:    st.Users(),
		tokens:   st.ResetTokens(),
		sessions: st.Sessions(),
		notifier: n,
		hasher:   auth.Hasher{Cost: cfg.BcryptCost},
		baseURL:  cfg.BaseURL,
		ttl:      cfg.TokenTTL,
		now:      nowFunc(cfg.Now),
	}
}

// InitiatePasswordReset replaces any earlier token of the account with a new
// one and mails the link. When delivery fails the new token is deleted again.
func (s *ResetService) InitiatePasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	logger := logx.FromContext(ctx).With("email", logx.MaskEmail(email))

	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.NotFound, "no account found with that email address")
	}
	if err != nil {
		return storageErr(err)
	}

	raw, hash, err := auth.GenerateToken()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "internal error", err)
	}
	now := s.now()
	t := &model.PasswordResetToken{
		ID:        uuid.New().String(),
		TokenHash: hash,
		Email:     u.Email,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Replace(ctx, t); err != nil {
		return storageErr(err)
	}

	link := notify.ResetLink(s.baseURL, raw)
	if err := s.notifier.SendPasswordReset(ctx, u.Email, link); err != nil {
		if derr := s.tokens.Delete(context.WithoutCancel(ctx), hash); derr != nil {
			logger.Error("failed to drop undelivered reset token", "error", derr)
		}
		logger.Error("password reset delivery failed", "error", err)
		return apperr.Wrap(apperr.DeliveryFailed,
			"failed to send password reset email, please try again later", err)
	}

	logger.Info("password reset issued")
	return nil
}

// ValidateResetToken returns the stored token for raw. Unknown tokens,
// including ones replaced by a newer request, fail NotFound; used or expired
// ones fail Expired.
func (s *ResetService) ValidateResetToken(ctx context.Context, raw string) (*model.PasswordResetToken, error) {
	if raw == "" {
		return nil, apperr.New(apperr.NotFound, "invalid password reset token")
	}
	t, err := s.tokens.TokenByHash(ctx, auth.Fingerprint(raw))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "invalid password reset token")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if !t.Valid(s.now()) {
		return nil, errTokenExpired
	}
	return t, nil
}

var errTokenExpired = apperr.New(apperr.Expired, "password reset token has expired or already been used")

// ResetPassword consumes the token, then stores the new password and signs
// the user out everywhere. The token is spent even if the password write
// fails afterwards; the user requests a new link.
func (s *ResetService) ResetPassword(ctx context.Context, raw, next, confirm string) error {
	t, err := s.ValidateResetToken(ctx, raw)
	if err != nil {
		return err
	}
	if next != confirm {
		return apperr.New(apperr.PasswordMismatch, "passwords do not match")
	}
	if err := checkPassword(next); err != nil {
		return err
	}

	u, err := s.users.UserByEmail(ctx, t.Email)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return storageErr(err)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "internal error", err)
	}

	// a concurrent reset with the same token loses here
	switch err := s.tokens.Consume(ctx, t.TokenHash, s.now()); {
	case errors.Is(err, store.ErrConflict):
		return errTokenExpired
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.NotFound, "invalid password reset token")
	case err != nil:
		return storageErr(err)
	}

	if err := s.users.UpdatePassword(ctx, u.ID, hash, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return storageErr(err)
	}

	logger := logx.FromContext(ctx)
	if err := s.sessions.DeleteUserSessions(ctx, u.ID, ""); err != nil {
		logger.Warn("failed to revoke sessions after password reset", "user_id", u.ID, "error", err)
	}
	logger.Info("password reset completed", "user_id", u.ID)
	return nil
}
