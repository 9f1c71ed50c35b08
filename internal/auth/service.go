// Package auth guards the mutating API routes with admin bearer sessions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited is returned when login attempts come in too fast.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrLoginDisabled is returned when no admin password hash is configured.
	ErrLoginDisabled = errors.New("admin login is not configured")

	// ErrUnauthorized is returned for a missing, unknown or expired token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Config holds the admin credentials and session policy.
type Config struct {
	AdminUsername      string
	AdminPasswordHash  string
	SessionTTL         time.Duration
	LoginRatePerMinute int
}

// Service defines the interface for the auth service.
type Service interface {
	Login(ctx context.Context, username, password string) (*Session, error)
	Verify(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// service implements the Service interface.
type service struct {
	cfg         Config
	sessions    *SessionStore
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new auth service instance.
func NewService(db *sqlx.DB, cfg Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.LoginRatePerMinute <= 0 {
		cfg.LoginRatePerMinute = 5
	}

	return &service{
		cfg:         cfg,
		sessions:    NewSessionStore(db),
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.LoginRatePerMinute)), cfg.LoginRatePerMinute),
		logger:      logger,
		now:         time.Now,
	}
}

// Login checks the admin credentials and opens a session.
func (s *service) Login(ctx context.Context, username, password string) (*Session, error) {
	if s.cfg.AdminPasswordHash == "" {
		return nil, ErrLoginDisabled
	}
	if !s.rateLimiter.Allow() {
		s.logger.Warn("login rate limited", "username", username)
		return nil, ErrRateLimited
	}

	ok, err := VerifyPassword(password, s.cfg.AdminPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUsername)) == 1
	if !ok || !userOK {
		s.logger.Warn("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	session, err := s.sessions.Create(ctx, username, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin logged in", "username", username, "expires_at", session.ExpiresAt)
	return session, nil
}

// Verify returns the username of a live session.
func (s *service) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	return s.sessions.Lookup(ctx, token, s.now())
}

func (s *service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

func (s *service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired sessions purged", "count", n)
	}
	return n, nil
}
