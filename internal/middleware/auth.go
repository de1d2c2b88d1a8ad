package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/rpc"
)

type ctxKey string

const (
	UserIDKey    ctxKey = "uid"
	SessionIDKey ctxKey = "sid"
)

// skip auth for these
var open = map[string]bool{
	rpc.FullMethod("Register"):             true,
	rpc.FullMethod("Login"):                true,
	rpc.FullMethod("RequestPasswordReset"): true,
	rpc.FullMethod("ValidateResetToken"):   true,
	rpc.FullMethod("ResetPassword"):        true,
	rpc.FullMethod("ListDoctors"):          true,
	rpc.FullMethod("GetDoctor"):            true,
	rpc.FullMethod("ListAvailableSlots"):   true,
}

// SessionResolver checks a bearer token against the session store.
type SessionResolver interface {
	ResolveSession(ctx context.Context, rawToken string) (*model.Session, error)
}

func Auth(sessions SessionResolver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		// token from Authorization: Bearer <jwt>
		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = strings.TrimSpace(strings.TrimPrefix(vals[0], "Bearer "))
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		sess, err := sessions.ResolveSession(ctx, raw)
		if err != nil {
			return nil, rpc.Error(ctx, err)
		}

		ctx = WithCaller(ctx, sess.UserID, sess.ID)
		ctx = logx.WithContext(ctx, logx.FromContext(ctx).With("user_id", sess.UserID))
		return next(ctx, req)
	}
}

// WithCaller stores the authenticated user and session in ctx.
func WithCaller(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(UserIDKey).(string)
	return v, ok && v != ""
}

func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}
