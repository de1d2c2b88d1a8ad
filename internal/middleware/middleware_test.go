package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/rpc"
)

type fakeResolver map[string]*model.Session

func (f fakeResolver) ResolveSession(_ context.Context, raw string) (*model.Session, error) {
	if s, ok := f[raw]; ok {
		return s, nil
	}
	return nil, apperr.New(apperr.Unauthenticated, "invalid or expired session")
}

func info(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(method)}
}

func bearer(tok string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
}

func TestAuth(t *testing.T) {
	interceptor := Auth(fakeResolver{"good": {ID: "s1", UserID: "u1"}})

	var gotUser, gotSession string
	next := func(ctx context.Context, _ any) (any, error) {
		gotUser, _ = UserID(ctx)
		gotSession = SessionID(ctx)
		return "ok", nil
	}

	resp, err := interceptor(bearer("good"), nil, info("GetProfile"), next)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Equal(t, "u1", gotUser)
	require.Equal(t, "s1", gotSession)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"no token", metadata.NewIncomingContext(context.Background(), metadata.MD{})},
		{"unknown token", bearer("bad")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(tt.ctx, nil, info("BookAppointment"), next)
			require.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}

func TestAuthSkipsOpenMethods(t *testing.T) {
	interceptor := Auth(fakeResolver{})
	for _, m := range []string{"Register", "Login", "RequestPasswordReset", "ValidateResetToken", "ResetPassword", "ListDoctors"} {
		called := false
		_, err := interceptor(context.Background(), nil, info(m), func(ctx context.Context, _ any) (any, error) {
			called = true
			_, ok := UserID(ctx)
			require.False(t, ok)
			return nil, nil
		})
		require.NoError(t, err, m)
		require.True(t, called, m)
	}
}

func peerCtx(addr string, md metadata.MD) context.Context {
	tcp, _ := net.ResolveTCPAddr("tcp", addr)
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
	if md != nil {
		ctx = metadata.NewIncomingContext(ctx, md)
	}
	return ctx
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Stop()
	interceptor := RateLimit(rl)
	next := func(context.Context, any) (any, error) { return nil, nil }

	a := peerCtx("10.0.0.1:4000", nil)
	aOtherPort := peerCtx("10.0.0.1:4001", nil)
	b := peerCtx("10.0.0.2:4000", nil)

	_, err := interceptor(a, nil, info("Login"), next)
	require.NoError(t, err)
	_, err = interceptor(aOtherPort, nil, info("Login"), next)
	require.NoError(t, err)
	_, err = interceptor(a, nil, info("Login"), next)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = interceptor(b, nil, info("Login"), next)
	require.NoError(t, err)

	// unlimited methods are never throttled
	for i := 0; i < 5; i++ {
		_, err = interceptor(a, nil, info("ListDoctors"), next)
		require.NoError(t, err)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	rl.get("10.0.0.1")
	rl.sweep(time.Now().Add(time.Hour))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	require.Empty(t, rl.clients)
}

func TestClientIP(t *testing.T) {
	require.Equal(t, "unknown", clientIP(context.Background()))
	require.Equal(t, "10.0.0.9", clientIP(peerCtx("10.0.0.9:1234", nil)))
	require.Equal(t, "203.0.113.7",
		clientIP(peerCtx("127.0.0.1:1234", metadata.Pairs("x-forwarded-for", "203.0.113.7, 10.0.0.1"))))
	require.Equal(t, "10.0.0.9",
		clientIP(peerCtx("10.0.0.9:1234", metadata.Pairs("x-forwarded-for", "203.0.113.7"))),
		"only the local bridge may forward a client address")
}

func TestLoggingAttachesRequestLogger(t *testing.T) {
	base := logx.FromContext(context.Background())
	interceptor := Logging(base)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "req-1"))
	_, err := interceptor(ctx, nil, info("ListDoctors"), func(ctx context.Context, _ any) (any, error) {
		require.NotSame(t, base, logx.FromContext(ctx))
		return nil, status.Error(codes.NotFound, "nope")
	})
	require.Equal(t, codes.NotFound, status.Code(err))
}
