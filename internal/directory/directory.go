// Package directory holds registered users and turns credentials into
// session tokens, and session tokens back into an owner identity.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"appointment-booking-api/internal/auth"
	"appointment-booking-api/internal/model"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmailTaken      = errors.New("email already registered")
	ErrNotFound        = errors.New("user not found")
	ErrUnauthenticated = errors.New("unauthenticated")
)

const minPasswordLen = 6

// UserRepository stores users. CreateUser returns ErrEmailTaken on a
// duplicate email; lookups and DeleteUser return ErrNotFound.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RevocationStore remembers logged-out token ids until they would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Session struct {
	Token     string     `json:"token"`
	User      model.User `json:"user"`
	ExpiresAt time.Time  `json:"expires_at"`
}

type Directory struct {
	users   UserRepository
	revoked RevocationStore
	secret  string
	ttl     time.Duration
	log     *slog.Logger
}

func New(users UserRepository, revoked RevocationStore, secret string, ttl time.Duration, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		users:   users,
		revoked: revoked,
		secret:  secret,
		ttl:     ttl,
		log:     log.With("component", "directory"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the user and signs them in: the returned session is
// the same a Login would give.
func (d *Directory) Register(ctx context.Context, email, password, name string) (Session, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	switch {
	case email == "" || password == "" || name == "":
		return Session{}, fmt.Errorf("%w: email, password and name are required", ErrInvalidInput)
	case !strings.Contains(email, "@"):
		return Session{}, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	case len(password) < minPasswordLen:
		return Session{}, fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidInput, minPasswordLen)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := d.users.CreateUser(ctx, u); err != nil {
		return Session{}, err
	}
	d.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return d.startSession(u)
}

func (d *Directory) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrUnauthenticated
	}

	u, err := d.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrUnauthenticated
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return Session{}, ErrUnauthenticated
	}
	return d.startSession(u)
}

func (d *Directory) startSession(u *model.User) (Session, error) {
	raw, claims, err := auth.MakeToken(u.ID, u.Email, d.secret, d.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: raw, User: *u, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Resolve maps a session token to the owner string the scheduling service
// books under: the user's email.
func (d *Directory) Resolve(ctx context.Context, token string) (string, error) {
	u, err := d.ResolveUser(ctx, token)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

func (d *Directory) ResolveUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := auth.ParseToken(token, d.secret)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	revoked, err := d.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}

	u, err := d.users.UserByID(ctx, claims.UserID())
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Logout revokes token. Tokens that do not parse are already useless, so
// they are ignored.
func (d *Directory) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, d.secret)
	if err != nil {
		return nil
	}
	if err := d.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	d.log.InfoContext(ctx, "user logged out", "user_id", claims.UserID())
	return nil
}

func (d *Directory) ListUsers(ctx context.Context) ([]model.User, error) {
	return d.users.ListUsers(ctx)
}

// DeleteUser removes the user. Outstanding tokens stop resolving because
// Resolve looks the user up.
func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	if err := d.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	d.log.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}
