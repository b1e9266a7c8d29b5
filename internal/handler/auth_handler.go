package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"appointment-booking-api/internal/middleware"
	pb "appointment-booking-api/internal/rpc/bookingv1"
)

func (h *Handler) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.RegisterResponse, error) {
	s, err := h.dir.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, h.fail(ctx, "register", err)
	}
	return &pb.RegisterResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		User:      s.User,
	}, nil
}

func (h *Handler) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password required")
	}

	s, err := h.dir.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, h.fail(ctx, "login", err)
	}
	return &pb.LoginResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		User:      s.User,
	}, nil
}

// Logout succeeds even without a session; there is nothing to end.
func (h *Handler) Logout(ctx context.Context, _ *pb.LogoutRequest) (*pb.LogoutResponse, error) {
	if tok := middleware.TokenFrom(ctx); tok != "" {
		if err := h.dir.Logout(ctx, tok); err != nil {
			return nil, h.fail(ctx, "logout", err)
		}
	}
	return &pb.LogoutResponse{}, nil
}
