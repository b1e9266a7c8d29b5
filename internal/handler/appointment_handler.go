package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"appointment-booking-api/internal/middleware"
	pb "appointment-booking-api/internal/rpc/bookingv1"
	"appointment-booking-api/internal/scheduling"
)

func owner(ctx context.Context) (string, error) {
	o, ok := middleware.OwnerFrom(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "login required")
	}
	return o, nil
}

func (h *Handler) CreateAppointment(ctx context.Context, req *pb.CreateAppointmentRequest) (*pb.CreateAppointmentResponse, error) {
	who, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Date == "" || req.Time == "" {
		return nil, status.Error(codes.InvalidArgument, "date and time required")
	}

	date, at, err := scheduling.ParseSlot(req.Date, req.Time)
	if err != nil {
		return nil, h.fail(ctx, "create appointment", err)
	}
	a, err := h.svc.CreateAppointment(date, at, who)
	if err != nil {
		return nil, h.fail(ctx, "create appointment", err)
	}
	return &pb.CreateAppointmentResponse{Appointment: a}, nil
}

func (h *Handler) ListAppointments(ctx context.Context, req *pb.ListAppointmentsRequest) (*pb.ListAppointmentsResponse, error) {
	list := h.svc.ListAppointments()
	if req.Mine {
		who, err := owner(ctx)
		if err != nil {
			return nil, err
		}
		list = scheduling.OwnedBy(list, who)
	}
	return &pb.ListAppointmentsResponse{Appointments: list}, nil
}

func (h *Handler) CancelAppointment(ctx context.Context, req *pb.CancelAppointmentRequest) (*pb.CancelAppointmentResponse, error) {
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	if !h.svc.CancelAppointment(req.ID) {
		return nil, status.Error(codes.NotFound, "appointment not found")
	}
	return &pb.CancelAppointmentResponse{ID: req.ID}, nil
}

func (h *Handler) AvailableSlots(ctx context.Context, req *pb.AvailableSlotsRequest) (*pb.AvailableSlotsResponse, error) {
	q, err := scheduling.ParseSlotQuery(req.Date, req.Start, req.End, req.Step, h.hours)
	if err != nil {
		return nil, h.fail(ctx, "available slots", err)
	}

	slots := h.svc.Slots(q)
	out := make([]string, len(slots))
	for i, t := range slots {
		out[i] = t.String()
	}
	return &pb.AvailableSlotsResponse{Date: q.Date.String(), Slots: out}, nil
}
