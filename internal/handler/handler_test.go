package handler_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/handler"
	"clinic-booking-api/internal/middleware"
	"clinic-booking-api/internal/rpc"
	"clinic-booking-api/internal/service"
	"clinic-booking-api/internal/store/memory"
)

type recorder struct {
	mu    sync.Mutex
	links []string
}

func (r *recorder) SendPasswordReset(_ context.Context, _, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, link)
	return nil
}

func (r *recorder) lastToken(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.links)
	u, err := url.Parse(r.links[len(r.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type env struct {
	client *rpc.Client
	mail   *recorder
}

func setup(t *testing.T, rps float64, burst int) *env {
	t.Helper()
	st := memory.New()
	mail := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := service.NewAccountService(st, service.AccountConfig{
		JWTSecret:  "test-secret",
		BcryptCost: bcrypt.MinCost,
	})
	resets := service.NewResetService(st, mail, service.ResetConfig{
		BaseURL:    "http://app.test",
		BcryptCost: bcrypt.MinCost,
	})
	booking := service.NewBookingService(st, nil)
	require.NoError(t, service.Seed(context.Background(), st, time.Now(), logger))

	rl := middleware.NewRateLimiter(rps, burst)
	t.Cleanup(rl.Stop)
	srv := handler.NewGRPCServer(handler.New(accounts, resets, booking), accounts, rl, logger)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &env{client: rpc.NewClient(conn), mail: mail}
}

func authed(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

// requireRPCError checks the status code and the error-kind trailer.
func requireRPCError(t *testing.T, call func(opts ...grpc.CallOption) error, code codes.Code, kind apperr.Kind) {
	t.Helper()
	var trailer metadata.MD
	err := call(grpc.Trailer(&trailer))
	require.Error(t, err)
	require.Equal(t, code, status.Code(err), "error: %v", err)
	require.Equal(t, kind, rpc.KindOf(trailer))
}

func (e *env) register(t *testing.T, name string) {
	t.Helper()
	_, err := e.client.Register(context.Background(), &rpc.RegisterRequest{
		Username:        name,
		Email:           name + "@x.com",
		Password:        "pw123456",
		ConfirmPassword: "pw123456",
	})
	require.NoError(t, err)
}

func (e *env) login(t *testing.T, identifier, password string) string {
	t.Helper()
	res, err := e.client.Login(context.Background(), &rpc.LoginRequest{Identifier: identifier, Password: password})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func (e *env) firstFreeSlot(t *testing.T) *rpc.Slot {
	t.Helper()
	docs, err := e.client.ListDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, docs.Doctors, 2)
	slots, err := e.client.ListAvailableSlots(context.Background(), docs.Doctors[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, slots.Slots)
	return slots.Slots[0]
}

// ----- accounts -----

func TestRegisterLoginProfile(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")

	tok := e.login(t, "alice@x.com", "pw123456")
	prof, err := e.client.GetProfile(authed(tok))
	require.NoError(t, err)
	require.Equal(t, "alice", prof.User.Username)
	require.True(t, prof.User.Active)

	up, err := e.client.UpdateProfile(authed(tok), &rpc.UpdateProfileRequest{
		Username: "alice", Email: "alice@new.com", FirstName: "Alice",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@new.com", up.User.Email)
}

func TestRegisterConflicts(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")

	tests := []struct {
		name string
		req  *rpc.RegisterRequest
		code codes.Code
		kind apperr.Kind
	}{
		{"username taken", &rpc.RegisterRequest{Username: "alice", Email: "new@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}, codes.AlreadyExists, apperr.UsernameTaken},
		{"email taken", &rpc.RegisterRequest{Username: "new", Email: "alice@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}, codes.AlreadyExists, apperr.EmailTaken},
		{"mismatch", &rpc.RegisterRequest{Username: "new", Email: "new@x.com", Password: "pw123456", ConfirmPassword: "other123"}, codes.InvalidArgument, apperr.PasswordMismatch},
		{"short password", &rpc.RegisterRequest{Username: "new", Email: "new@x.com", Password: "pw", ConfirmPassword: "pw"}, codes.InvalidArgument, apperr.Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireRPCError(t, func(opts ...grpc.CallOption) error {
				_, err := e.client.Register(context.Background(), tt.req, opts...)
				return err
			}, tt.code, tt.kind)
		})
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")

	_, wrong := e.client.Login(context.Background(), &rpc.LoginRequest{Identifier: "alice", Password: "nope1234"})
	_, unknown := e.client.Login(context.Background(), &rpc.LoginRequest{Identifier: "ghost", Password: "pw123456"})
	require.Equal(t, codes.Unauthenticated, status.Code(wrong))
	require.Equal(t, status.Convert(wrong).Message(), status.Convert(unknown).Message())
}

func TestProtectedMethodsNeedToken(t *testing.T) {
	e := setup(t, 100, 100)

	_, err := e.client.GetProfile(context.Background())
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = e.client.ListMyAppointments(authed("garbage"))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	// browsing doctors is public
	_, err = e.client.ListDoctors(context.Background())
	require.NoError(t, err)
}

func TestLogoutEndsSession(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")
	tok := e.login(t, "alice", "pw123456")

	_, err := e.client.Logout(authed(tok))
	require.NoError(t, err)

	_, err = e.client.GetProfile(authed(tok))
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")
	here := e.login(t, "alice", "pw123456")
	there := e.login(t, "alice", "pw123456")

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.ChangePassword(authed(here), &rpc.ChangePasswordRequest{
			CurrentPassword: "wrong", NewPassword: "newpw123", ConfirmPassword: "newpw123",
		}, opts...)
		return err
	}, codes.Unauthenticated, apperr.InvalidCredentials)

	_, err := e.client.ChangePassword(authed(here), &rpc.ChangePasswordRequest{
		CurrentPassword: "pw123456", NewPassword: "newpw123", ConfirmPassword: "newpw123",
	})
	require.NoError(t, err)

	_, err = e.client.GetProfile(authed(here))
	require.NoError(t, err)
	_, err = e.client.GetProfile(authed(there))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	e.login(t, "alice", "newpw123")
}

// ----- password reset -----

func TestPasswordResetFlow(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")
	old := e.login(t, "alice", "pw123456")

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.RequestPasswordReset(context.Background(), &rpc.RequestPasswordResetRequest{Email: "ghost@x.com"}, opts...)
		return err
	}, codes.NotFound, apperr.NotFound)

	_, err := e.client.RequestPasswordReset(context.Background(), &rpc.RequestPasswordResetRequest{Email: "alice@x.com"})
	require.NoError(t, err)
	tok := e.mail.lastToken(t)

	v, err := e.client.ValidateResetToken(context.Background(), &rpc.ValidateResetTokenRequest{Token: tok})
	require.NoError(t, err)
	require.True(t, v.ExpiresAt.After(time.Now()))

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.ResetPassword(context.Background(), &rpc.ResetPasswordRequest{
			Token: tok, NewPassword: "newpass1", ConfirmPassword: "newpass2",
		}, opts...)
		return err
	}, codes.InvalidArgument, apperr.PasswordMismatch)

	_, err = e.client.ResetPassword(context.Background(), &rpc.ResetPasswordRequest{
		Token: tok, NewPassword: "newpass1", ConfirmPassword: "newpass1",
	})
	require.NoError(t, err)

	e.login(t, "alice", "newpass1")
	_, err = e.client.GetProfile(authed(old))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.ValidateResetToken(context.Background(), &rpc.ValidateResetTokenRequest{Token: tok}, opts...)
		return err
	}, codes.FailedPrecondition, apperr.Expired)
}

func TestRateLimitedLogin(t *testing.T) {
	e := setup(t, 0.001, 2)
	req := &rpc.LoginRequest{Identifier: "ghost", Password: "pw123456"}
	for i := 0; i < 2; i++ {
		_, err := e.client.Login(context.Background(), req)
		require.Equal(t, codes.Unauthenticated, status.Code(err))
	}
	_, err := e.client.Login(context.Background(), req)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
}

// ----- booking -----

func TestBookAndCancel(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")
	e.register(t, "bob")
	alice := e.login(t, "alice", "pw123456")
	bob := e.login(t, "bob", "pw123456")
	slot := e.firstFreeSlot(t)

	booked, err := e.client.BookAppointment(authed(alice), &rpc.BookAppointmentRequest{SlotID: slot.ID, DoctorID: slot.DoctorID})
	require.NoError(t, err)
	a := booked.Appointment
	require.Equal(t, "BOOKED", a.Status)
	require.Equal(t, slot.ID, a.SlotID)

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.BookAppointment(authed(bob), &rpc.BookAppointmentRequest{SlotID: slot.ID}, opts...)
		return err
	}, codes.AlreadyExists, apperr.SlotAlreadyBooked)

	// bob cannot see or cancel alice's appointment
	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.GetAppointment(authed(bob), a.ID, opts...)
		return err
	}, codes.NotFound, apperr.NotFound)
	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.CancelAppointment(authed(bob), a.ID, opts...)
		return err
	}, codes.NotFound, apperr.NotFound)

	mine, err := e.client.ListMyAppointments(authed(alice))
	require.NoError(t, err)
	require.Len(t, mine.Appointments, 1)
	theirs, err := e.client.ListMyAppointments(authed(bob))
	require.NoError(t, err)
	require.Empty(t, theirs.Appointments)

	cancelled, err := e.client.CancelAppointment(authed(alice), a.ID)
	require.NoError(t, err)
	require.Equal(t, "CANCELLED", cancelled.Appointment.Status)

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.CancelAppointment(authed(alice), a.ID, opts...)
		return err
	}, codes.FailedPrecondition, apperr.InvalidState)

	// the slot is free again
	_, err = e.client.BookAppointment(authed(bob), &rpc.BookAppointmentRequest{SlotID: slot.ID})
	require.NoError(t, err)
}

func TestBookValidation(t *testing.T) {
	e := setup(t, 100, 100)
	e.register(t, "alice")
	tok := e.login(t, "alice", "pw123456")
	slot := e.firstFreeSlot(t)

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.BookAppointment(authed(tok), &rpc.BookAppointmentRequest{}, opts...)
		return err
	}, codes.InvalidArgument, apperr.Invalid)

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.BookAppointment(authed(tok), &rpc.BookAppointmentRequest{SlotID: "missing"}, opts...)
		return err
	}, codes.NotFound, apperr.NotFound)

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.BookAppointment(authed(tok), &rpc.BookAppointmentRequest{SlotID: slot.ID, DoctorID: "someone-else"}, opts...)
		return err
	}, codes.NotFound, apperr.NotFound)

	requireRPCError(t, func(opts ...grpc.CallOption) error {
		_, err := e.client.ListAvailableSlots(context.Background(), "missing", opts...)
		return err
	}, codes.NotFound, apperr.NotFound)
}

func TestConcurrentBooking(t *testing.T) {
	e := setup(t, 100, 100)
	const n = 10
	tokens := make([]string, n)
	for i := range tokens {
		name := fmt.Sprintf("patient%d", i)
		e.register(t, name)
		tokens[i] = e.login(t, name, "pw123456")
	}
	slot := e.firstFreeSlot(t)

	var wg sync.WaitGroup
	codesSeen := make([]codes.Code, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.client.BookAppointment(authed(tokens[i]), &rpc.BookAppointmentRequest{SlotID: slot.ID})
			codesSeen[i] = status.Code(err)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, c := range codesSeen {
		switch c {
		case codes.OK:
			ok++
		case codes.AlreadyExists:
		default:
			t.Fatalf("unexpected code %v", c)
		}
	}
	require.Equal(t, 1, ok)
}
