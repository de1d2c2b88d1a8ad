package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-booking-api/internal/logx"
)

const RequestIDHeader = "x-request-id"

// Logging puts a request-scoped logger into ctx and logs every call once
// it returns. It runs first in the chain so later interceptors log with
// the request id.
func Logging(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()

		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.New().String()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))

		logger := base.With("request_id", reqID, "method", info.FullMethod, "peer", clientIP(ctx))
		ctx = logx.WithContext(ctx, logger)

		resp, err := next(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "rpc finished",
			"code", code.String(), "duration_ms", time.Since(start).Milliseconds())
		return resp, err
	}
}
