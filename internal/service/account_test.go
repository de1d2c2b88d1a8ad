package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/auth"
	"clinic-booking-api/internal/model"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@x.com", "pw123456")
	require.True(t, u.Active)
	require.NotEqual(t, "pw123456", u.PasswordHash)

	tests := []struct {
		name string
		in   RegisterInput
		kind apperr.Kind
	}{
		{"username taken", RegisterInput{Username: "ALICE", Email: "other@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}, apperr.UsernameTaken},
		{"email taken", RegisterInput{Username: "carol", Email: "Alice@X.com", Password: "pw123456", ConfirmPassword: "pw123456"}, apperr.EmailTaken},
		{"mismatch", RegisterInput{Username: "carol", Email: "carol@x.com", Password: "pw123456", ConfirmPassword: "pw654321"}, apperr.PasswordMismatch},
		{"short password", RegisterInput{Username: "carol", Email: "carol@x.com", Password: "pw1", ConfirmPassword: "pw1"}, apperr.Invalid},
		{"no username", RegisterInput{Email: "carol@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}, apperr.Invalid},
		{"bad email", RegisterInput{Username: "carol", Email: "carol", Password: "pw123456", ConfirmPassword: "pw123456"}, apperr.Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Register(ctx, tt.in)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")

	u, err := f.accounts.Authenticate(ctx, "alice", "pw123456")
	require.NoError(t, err)
	require.Equal(t, alice.ID, u.ID)

	u, err = f.accounts.Authenticate(ctx, "alice@x.com", "pw123456")
	require.NoError(t, err)
	require.Equal(t, alice.ID, u.ID)

	_, wrongPw := f.accounts.Authenticate(ctx, "alice", "nope1234")
	_, unknown := f.accounts.Authenticate(ctx, "ghost", "pw123456")
	requireKind(t, wrongPw, apperr.InvalidCredentials)
	requireKind(t, unknown, apperr.InvalidCredentials)
	require.Equal(t, apperr.Message(wrongPw), apperr.Message(unknown))

	_, err = f.accounts.Authenticate(ctx, "", "")
	requireKind(t, err, apperr.InvalidCredentials)
}

func TestAuthenticateFallsBackToUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	odd := f.register(t, "odd@name", "odd@x.com", "pw123456")

	u, err := f.accounts.Authenticate(ctx, "odd@name", "pw123456")
	require.NoError(t, err)
	require.Equal(t, odd.ID, u.ID)
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash, err := auth.Hasher{Cost: 4}.Hash("pw123456")
	require.NoError(t, err)
	require.NoError(t, f.st.Users().CreateUser(ctx, &model.User{
		ID:           "disabled",
		Username:     "dora",
		Email:        "dora@x.com",
		PasswordHash: hash,
		Active:       false,
	}))

	_, err = f.accounts.Authenticate(ctx, "dora", "pw123456")
	requireKind(t, err, apperr.AccountDisabled)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")

	res, err := f.accounts.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)
	require.Equal(t, alice.ID, res.User.ID)
	require.Equal(t, f.clock.Now().Add(24*time.Hour), res.ExpiresAt)

	sess, err := f.accounts.ResolveSession(ctx, res.Token)
	require.NoError(t, err)
	require.Equal(t, res.Session.ID, sess.ID)

	_, err = f.accounts.ResolveSession(ctx, "garbage")
	requireKind(t, err, apperr.Unauthenticated)

	require.NoError(t, f.accounts.Logout(ctx, sess.ID))
	_, err = f.accounts.ResolveSession(ctx, res.Token)
	requireKind(t, err, apperr.Unauthenticated)
}

func TestSessionExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@x.com", "pw123456")

	res, err := f.accounts.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.accounts.ResolveSession(ctx, res.Token)
	requireKind(t, err, apperr.Unauthenticated)

	_, err = f.st.Sessions().SessionByID(ctx, res.Session.ID)
	require.Error(t, err, "expired session is dropped on use")
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")
	f.register(t, "bob", "bob@x.com", "pw123456")

	u, err := f.accounts.UpdateProfile(ctx, alice.ID, ProfileInput{
		Username: "alice", Email: "alice@new.com", FirstName: "Alice", LastName: "Liddell",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@new.com", u.Email)

	got, err := f.accounts.Profile(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "Liddell", got.LastName)

	_, err = f.accounts.UpdateProfile(ctx, alice.ID, ProfileInput{Username: "bob", Email: "alice@new.com"})
	requireKind(t, err, apperr.UsernameTaken)

	_, err = f.accounts.UpdateProfile(ctx, alice.ID, ProfileInput{Username: "alice", Email: "bob@x.com"})
	requireKind(t, err, apperr.EmailTaken)

	_, err = f.accounts.UpdateProfile(ctx, "ghost", ProfileInput{Username: "ghost", Email: "ghost@x.com"})
	requireKind(t, err, apperr.NotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")

	tests := []struct {
		name                   string
		current, next, confirm string
		kind                   apperr.Kind
	}{
		{"wrong current", "wrong", "newpw123", "newpw123", apperr.InvalidCredentials},
		{"mismatch", "pw123456", "newpw123", "newpw124", apperr.PasswordMismatch},
		{"too short", "pw123456", "abc", "abc", apperr.Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.accounts.ChangePassword(ctx, alice.ID, "", tt.current, tt.next, tt.confirm)
			requireKind(t, err, tt.kind)
			_, err = f.accounts.Authenticate(ctx, "alice", "pw123456")
			require.NoError(t, err, "password must be unchanged")
		})
	}

	requireKind(t, f.accounts.ChangePassword(ctx, "ghost", "", "pw123456", "newpw123", "newpw123"), apperr.NotFound)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")

	here, err := f.accounts.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)
	there, err := f.accounts.Login(ctx, "alice@x.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, f.accounts.ChangePassword(ctx, alice.ID, here.Session.ID, "pw123456", "newpw123", "newpw123"))

	_, err = f.accounts.ResolveSession(ctx, here.Token)
	require.NoError(t, err)
	_, err = f.accounts.ResolveSession(ctx, there.Token)
	requireKind(t, err, apperr.Unauthenticated)

	_, err = f.accounts.Authenticate(ctx, "alice", "pw123456")
	requireKind(t, err, apperr.InvalidCredentials)
	_, err = f.accounts.Authenticate(ctx, "alice", "newpw123")
	require.NoError(t, err)
}
