package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"appointment-booking-api/internal/model"
	pb "appointment-booking-api/internal/rpc/bookingv1"
)

type fakeClient struct {
	lastAuth string
	password string
	created  *pb.CreateAppointmentRequest
	mine     bool
}

func (f *fakeClient) sawAuth(ctx context.Context) {
	f.lastAuth = ""
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			f.lastAuth = v[0]
		}
	}
}

func (f *fakeClient) Register(_ context.Context, in *pb.RegisterRequest, _ ...grpc.CallOption) (*pb.RegisterResponse, error) {
	f.password = in.Password
	return &pb.RegisterResponse{
		Token:     "tok-new",
		ExpiresAt: "2030-01-01T00:00:00Z",
		User:      model.User{ID: "u1", Email: in.Email, Name: in.Name},
	}, nil
}

func (f *fakeClient) Login(_ context.Context, in *pb.LoginRequest, _ ...grpc.CallOption) (*pb.LoginResponse, error) {
	if in.Password != "secret1" {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return &pb.LoginResponse{Token: "tok-1", ExpiresAt: "2030-01-01T00:00:00Z", User: model.User{Email: in.Email}}, nil
}

func (f *fakeClient) Logout(ctx context.Context, _ *pb.LogoutRequest, _ ...grpc.CallOption) (*pb.LogoutResponse, error) {
	f.sawAuth(ctx)
	return &pb.LogoutResponse{}, nil
}

func (f *fakeClient) CreateAppointment(ctx context.Context, in *pb.CreateAppointmentRequest, _ ...grpc.CallOption) (*pb.CreateAppointmentResponse, error) {
	f.sawAuth(ctx)
	f.created = in
	d, t, _ := parse(in.Date, in.Time)
	return &pb.CreateAppointmentResponse{Appointment: model.Appointment{ID: 7, Date: d, Time: t, Owner: "a@b.c"}}, nil
}

func (f *fakeClient) ListAppointments(ctx context.Context, in *pb.ListAppointmentsRequest, _ ...grpc.CallOption) (*pb.ListAppointmentsResponse, error) {
	f.sawAuth(ctx)
	f.mine = in.Mine
	d, t, _ := parse("2025-03-10", "09:00")
	return &pb.ListAppointmentsResponse{Appointments: []model.Appointment{{ID: 1, Date: d, Time: t, Owner: "a@b.c"}}}, nil
}

func (f *fakeClient) CancelAppointment(_ context.Context, in *pb.CancelAppointmentRequest, _ ...grpc.CallOption) (*pb.CancelAppointmentResponse, error) {
	if in.ID != 1 {
		return nil, status.Error(codes.NotFound, "appointment not found")
	}
	return &pb.CancelAppointmentResponse{ID: in.ID}, nil
}

func (f *fakeClient) AvailableSlots(_ context.Context, in *pb.AvailableSlotsRequest, _ ...grpc.CallOption) (*pb.AvailableSlotsResponse, error) {
	return &pb.AvailableSlotsResponse{Date: in.Date, Slots: []string{"09:00", "10:00"}}, nil
}

func parse(date, clock string) (model.Date, model.TimeOfDay, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return model.Date{}, model.TimeOfDay{}, err
	}
	t, err := model.ParseTimeOfDay(clock)
	return d, t, err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func run(t *testing.T, fake *fakeClient, tokenFile, stdin string, args ...string) (string, error) {
	t.Helper()
	prev := dial
	dial = func(string) (pb.BookingClient, io.Closer, error) { return fake, nopCloser{}, nil }
	t.Cleanup(func() { dial = prev })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--token-file", tokenFile}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLoginBookLogout(t *testing.T) {
	fake := &fakeClient{}
	tokenFile := filepath.Join(t.TempDir(), "sub", "token")

	out, err := run(t, fake, tokenFile, "secret1\n", "login", "--email", "a@b.c")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as a@b.c")
	tok, err := loadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	out, err = run(t, fake, tokenFile, "", "book", "2025-03-10", "14:00")
	require.NoError(t, err)
	assert.Equal(t, "booked #7 on 2025-03-10 at 14:00\n", out)
	assert.Equal(t, "Bearer tok-1", fake.lastAuth)
	assert.Equal(t, "14:00", fake.created.Time)

	_, err = run(t, fake, tokenFile, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", fake.lastAuth)
	tok, err = loadToken(tokenFile)
	require.NoError(t, err)
	assert.Empty(t, tok)

	_, err = run(t, fake, tokenFile, "", "list")
	require.NoError(t, err)
	assert.Empty(t, fake.lastAuth)
}

func TestLoginFailureKeepsNoToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	_, err := run(t, &fakeClient{}, tokenFile, "", "login", "--email", "a@b.c", "--password", "nope")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	tok, _ := loadToken(tokenFile)
	assert.Empty(t, tok)
}

func TestRegisterPromptsForPassword(t *testing.T) {
	fake := &fakeClient{}
	tokenFile := filepath.Join(t.TempDir(), "token")
	out, err := run(t, fake, tokenFile, "hunter22\n", "register", "--email", "a@b.c", "--name", "A")
	require.NoError(t, err)
	assert.Equal(t, "hunter22", fake.password)
	assert.Contains(t, out, "registered a@b.c (u1), logged in until 2030-01-01T00:00:00Z")

	tok, err := loadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", tok)
}

func TestListSlotsCancel(t *testing.T) {
	fake := &fakeClient{}
	tokenFile := filepath.Join(t.TempDir(), "token")

	out, err := run(t, fake, tokenFile, "", "list", "--mine")
	require.NoError(t, err)
	assert.True(t, fake.mine)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "2025-03-10")

	out, err = run(t, fake, tokenFile, "", "slots", "2025-03-10", "--step", "30m")
	require.NoError(t, err)
	assert.Equal(t, "09:00\n10:00\n", out)

	out, err = run(t, fake, tokenFile, "", "cancel", "1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled #1\n", out)

	_, err = run(t, fake, tokenFile, "", "cancel", "2")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = run(t, fake, tokenFile, "", "cancel", "x")
	assert.Error(t, err)

	_, err = run(t, fake, tokenFile, "", "book", "2025-03-10")
	assert.Error(t, err, "book needs date and time")
}
