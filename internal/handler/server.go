package handler

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"appointment-booking-api/internal/middleware"
	pb "appointment-booking-api/internal/rpc/bookingv1"
)

// NewServer builds a gRPC server serving h and the standard health service.
func NewServer(h *Handler, res middleware.Resolver, rl *middleware.RateLimiter, log *slog.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(rl, LimitedMethods...),
			middleware.Auth(res, log, OpenMethods...),
		),
	)
	pb.RegisterBookingServer(srv, h)

	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}
