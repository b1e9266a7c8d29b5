package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"appointment-booking-api/internal/directory"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session"

type ctxKey string

const (
	ownerKey ctxKey = "owner"
	tokenKey ctxKey = "token"
)

// Resolver maps a session token to the owner it was issued to.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

func WithOwner(ctx context.Context, owner, token string) context.Context {
	ctx = context.WithValue(ctx, ownerKey, owner)
	return context.WithValue(ctx, tokenKey, token)
}

// OwnerFrom returns the resolved caller, if any.
func OwnerFrom(ctx context.Context) (string, bool) {
	o, ok := ctx.Value(ownerKey).(string)
	return o, ok && o != ""
}

// TokenFrom returns the raw token the caller presented, resolved or not.
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

func bearer(v string) string {
	const prefix = "Bearer "
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return ""
}

// Auth resolves the Bearer token in the authorization metadata. Methods in
// open run for anonymous callers too; every other method needs a token that
// resolves.
func Auth(res Resolver, log *slog.Logger, open ...string) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	skip := make(map[string]bool, len(open))
	for _, m := range open {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		raw := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("authorization"); len(vals) > 0 {
				raw = bearer(vals[0])
			}
		}

		if raw == "" {
			if skip[info.FullMethod] {
				return next(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		owner, err := res.Resolve(ctx, raw)
		switch {
		case err == nil:
			return next(WithOwner(ctx, owner, raw), req)
		case !errors.Is(err, directory.ErrUnauthenticated):
			log.ErrorContext(ctx, "resolve token", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Internal, "internal error")
		case skip[info.FullMethod]:
			return next(context.WithValue(ctx, tokenKey, raw), req)
		default:
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}
	}
}

// Identify resolves the Bearer header or session cookie of each request.
// It never rejects; handlers that need a caller check OwnerFrom.
func Identify(res Resolver, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r.Header.Get("Authorization"))
			if raw == "" {
				if c, err := r.Cookie(SessionCookie); err == nil {
					raw = c.Value
				}
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			owner, err := res.Resolve(ctx, raw)
			switch {
			case err == nil:
				ctx = WithOwner(ctx, owner, raw)
			case errors.Is(err, directory.ErrUnauthenticated):
				ctx = context.WithValue(ctx, tokenKey, raw)
			default:
				log.ErrorContext(ctx, "resolve token", "path", r.URL.Path, "error", err)
				ctx = context.WithValue(ctx, tokenKey, raw)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
