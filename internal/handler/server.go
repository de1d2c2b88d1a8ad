package handler

import (
	"log/slog"

	"google.golang.org/grpc"

	"clinic-booking-api/internal/middleware"
	"clinic-booking-api/internal/rpc"
)

// NewGRPCServer serves h with the booking.v1 codec behind the logging,
// rate limit and auth interceptors, in that order.
func NewGRPCServer(h *Handler, sessions middleware.SessionResolver, rl *middleware.RateLimiter, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(rpc.Codec{}),
		grpc.ChainUnaryInterceptor(
			middleware.Logging(logger),
			middleware.RateLimit(rl),
			middleware.Auth(sessions),
		),
	}, opts...)
	srv := grpc.NewServer(opts...)
	rpc.RegisterBookingServer(srv, h)
	return srv
}
