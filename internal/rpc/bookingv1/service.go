// Package bookingv1 declares the booking.v1.BookingService gRPC service:
// its messages, server registration and client stub. Messages are plain
// structs carried by the "json" codec.
package bookingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "booking.v1.BookingService"

const (
	RegisterMethod          = "/" + ServiceName + "/Register"
	LoginMethod             = "/" + ServiceName + "/Login"
	LogoutMethod            = "/" + ServiceName + "/Logout"
	CreateAppointmentMethod = "/" + ServiceName + "/CreateAppointment"
	ListAppointmentsMethod  = "/" + ServiceName + "/ListAppointments"
	CancelAppointmentMethod = "/" + ServiceName + "/CancelAppointment"
	AvailableSlotsMethod    = "/" + ServiceName + "/AvailableSlots"
)

type BookingServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	CreateAppointment(context.Context, *CreateAppointmentRequest) (*CreateAppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*CancelAppointmentResponse, error)
	AvailableSlots(context.Context, *AvailableSlotsRequest) (*AvailableSlotsResponse, error)
}

// UnimplementedBookingServer answers every method with codes.Unimplemented.
// Embed it so new methods do not break existing servers.
type UnimplementedBookingServer struct{}

func (UnimplementedBookingServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedBookingServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedBookingServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}
func (UnimplementedBookingServer) CreateAppointment(context.Context, *CreateAppointmentRequest) (*CreateAppointmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAppointment not implemented")
}
func (UnimplementedBookingServer) ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAppointments not implemented")
}
func (UnimplementedBookingServer) CancelAppointment(context.Context, *CancelAppointmentRequest) (*CancelAppointmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelAppointment not implemented")
}
func (UnimplementedBookingServer) AvailableSlots(context.Context, *AvailableSlotsRequest) (*AvailableSlotsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AvailableSlots not implemented")
}

func unary[Req, Resp any](name, full string, call func(BookingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", RegisterMethod, BookingServer.Register),
		unary("Login", LoginMethod, BookingServer.Login),
		unary("Logout", LogoutMethod, BookingServer.Logout),
		unary("CreateAppointment", CreateAppointmentMethod, BookingServer.CreateAppointment),
		unary("ListAppointments", ListAppointmentsMethod, BookingServer.ListAppointments),
		unary("CancelAppointment", CancelAppointmentMethod, BookingServer.CancelAppointment),
		unary("AvailableSlots", AvailableSlotsMethod, BookingServer.AvailableSlots),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking",
}

func RegisterBookingServer(s grpc.ServiceRegistrar, srv BookingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type BookingClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error)
	CreateAppointment(ctx context.Context, in *CreateAppointmentRequest, opts ...grpc.CallOption) (*CreateAppointmentResponse, error)
	ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error)
	CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*CancelAppointmentResponse, error)
	AvailableSlots(ctx context.Context, in *AvailableSlotsRequest, opts ...grpc.CallOption) (*AvailableSlotsResponse, error)
}

type bookingClient struct {
	cc grpc.ClientConnInterface
}

// NewBookingClient returns a client whose calls always use the json codec.
func NewBookingClient(cc grpc.ClientConnInterface) BookingClient {
	return &bookingClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *bookingClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, RegisterMethod, in, opts)
}

func (c *bookingClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, LoginMethod, in, opts)
}

func (c *bookingClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, LogoutMethod, in, opts)
}

func (c *bookingClient) CreateAppointment(ctx context.Context, in *CreateAppointmentRequest, opts ...grpc.CallOption) (*CreateAppointmentResponse, error) {
	return invoke[CreateAppointmentResponse](ctx, c.cc, CreateAppointmentMethod, in, opts)
}

func (c *bookingClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c.cc, ListAppointmentsMethod, in, opts)
}

func (c *bookingClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*CancelAppointmentResponse, error) {
	return invoke[CancelAppointmentResponse](ctx, c.cc, CancelAppointmentMethod, in, opts)
}

func (c *bookingClient) AvailableSlots(ctx context.Context, in *AvailableSlotsRequest, opts ...grpc.CallOption) (*AvailableSlotsResponse, error) {
	return invoke[AvailableSlotsResponse](ctx, c.cc, AvailableSlotsMethod, in, opts)
}
