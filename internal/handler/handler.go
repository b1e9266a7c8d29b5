// Package handler implements booking.v1.BookingService on top of the
// scheduling service and the identity directory.
package handler

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"appointment-booking-api/internal/directory"
	pb "appointment-booking-api/internal/rpc/bookingv1"
	"appointment-booking-api/internal/scheduling"
)

// OpenMethods run without a session. A token, when sent, is still resolved.
var OpenMethods = []string{
	pb.RegisterMethod,
	pb.LoginMethod,
	pb.LogoutMethod,
	pb.ListAppointmentsMethod,
	pb.CancelAppointmentMethod,
	pb.AvailableSlotsMethod,
	healthpb.Health_Check_FullMethodName,
}

// LimitedMethods are rate limited per client.
var LimitedMethods = []string{
	pb.RegisterMethod,
	pb.LoginMethod,
}

type Handler struct {
	pb.UnimplementedBookingServer
	svc   *scheduling.Service
	dir   *directory.Directory
	hours scheduling.Hours
	log   *slog.Logger
}

func New(svc *scheduling.Service, dir *directory.Directory, hours scheduling.Hours, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, dir: dir, hours: hours, log: log.With("component", "grpc")}
}

// fail maps domain errors onto status codes. Unknown errors are logged and
// reported as Internal without detail.
func (h *Handler) fail(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput), errors.Is(err, directory.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, scheduling.ErrSlotConflict):
		return status.Error(codes.AlreadyExists, scheduling.ErrSlotConflict.Error())
	case errors.Is(err, directory.ErrEmailTaken):
		return status.Error(codes.AlreadyExists, directory.ErrEmailTaken.Error())
	case errors.Is(err, directory.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, directory.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	}
	h.log.ErrorContext(ctx, op, "error", err)
	return status.Error(codes.Internal, "internal error")
}
