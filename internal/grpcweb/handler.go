// Package grpcweb lets browsers call BookingService, and check its health,
// over HTTP/1.1 using the gRPC-Web framing with JSON messages
// (application/grpc-web+json).
package grpcweb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"appointment-booking-api/internal/middleware"
	pb "appointment-booking-api/internal/rpc/bookingv1"
)

const (
	contentType = "application/grpc-web+json"
	maxBody     = 1 << 20

	frameData    byte = 0x00
	frameTrailer byte = 0x80
)

// Bridge translates gRPC-Web requests into native gRPC calls.
type Bridge struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
	log  *slog.Logger
}

// Dial connects to the gRPC server at addr (e.g. "localhost:50051").
func Dial(addr string, log *slog.Logger) (*Bridge, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	b := New(conn, log)
	b.conn = conn
	return b, nil
}

// New forwards over an existing connection. The caller keeps ownership of cc.
func New(cc grpc.ClientConnInterface, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{cc: cc, log: log.With("component", "grpcweb")}
}

func (b *Bridge) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

// IsGRPCWeb reports whether r is a gRPC-Web call or its CORS preflight.
func IsGRPCWeb(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web") {
		return true
	}
	return r.Method == http.MethodOptions &&
		strings.Contains(strings.ToLower(r.Header.Get("Access-Control-Request-Headers")), "x-grpc-web")
}

// Wrap sends gRPC-Web traffic to the bridge and everything else to next.
func (b *Bridge) Wrap(next http.Handler) http.Handler {
	h := b.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsGRPCWeb(r) {
			h.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, X-Grpc-Web, X-User-Agent, Authorization, x-grpc-web")
		w.Header().Set("Access-Control-Expose-Headers",
			"Grpc-Status, Grpc-Message, grpc-status, grpc-message")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != contentType && ct != "application/grpc-web-json" {
			http.Error(w, "only "+contentType+" is supported", http.StatusUnsupportedMediaType)
			return
		}
		b.forward(w, r)
	})
}

// forwardable reports whether path names a unary method the bridge serves.
// Health checks travel as protojson through the server's json codec.
func forwardable(path string) bool {
	return strings.HasPrefix(path, "/"+pb.ServiceName+"/") || path == healthpb.Health_Check_FullMethodName
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request) {
	if !forwardable(r.URL.Path) {
		writeError(w, codes.Unimplemented, "unknown service")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, codes.Internal, "read body failed")
		return
	}
	payload, err := unframe(body)
	if err != nil {
		writeError(w, codes.InvalidArgument, err.Error())
		return
	}

	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		md.Set(middleware.ForwardedFor, host)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	resp := &rawMsg{}
	err = b.cc.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st, _ := status.FromError(err)
		b.log.DebugContext(ctx, "call failed", "method", r.URL.Path, "code", st.Code().String())
		writeError(w, st.Code(), st.Message())
		return
	}
	writeSuccess(w, resp.data)
}

// unframe returns the message of a single data frame: 1-byte flag,
// 4-byte big-endian length, then the message.
func unframe(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, errors.New("body too short")
	}
	if body[0] != frameData {
		return nil, fmt.Errorf("unsupported frame flag %#x", body[0])
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if int(n)+5 > len(body) {
		return nil, errors.New("incomplete frame")
	}
	return body[5 : 5+n], nil
}

func frame(flag byte, data []byte) []byte {
	f := make([]byte, 5+len(data))
	f[0] = flag
	binary.BigEndian.PutUint32(f[1:5], uint32(len(data)))
	copy(f[5:], data)
	return f
}

// rawMsg carries JSON bytes through the bridge untouched.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through. It shares the server's codec name so the
// call is tagged with the content-subtype the server decodes.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return pb.CodecName }

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	trailer := fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, url.PathEscape(msg))
	_, _ = w.Write(frame(frameTrailer, []byte(trailer)))
}

func writeSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame(frameData, data))
	_, _ = w.Write(frame(frameTrailer, []byte("grpc-status:0\r\n")))
}
