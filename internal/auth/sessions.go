package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"librarian/internal/storage"
)

const tokenBytes = 32

// Session is an issued bearer token. Only its hash is stored.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps sessions in the sessions table.
type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create issues a new token for username valid until now+ttl.
func (s *SessionStore) Create(ctx context.Context, username string, ttl time.Duration) (*Session, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now().UTC()
	session := &Session{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		Username:  username,
		ExpiresAt: now.Add(ttl),
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO sessions (token_hash, username, expires_at, created_at) VALUES (?, ?, ?, ?)
	`), hashToken(session.Token), username, session.ExpiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", storage.Classify(err))
	}

	return session, nil
}

// Lookup returns the username behind an unexpired token.
func (s *SessionStore) Lookup(ctx context.Context, token string, now time.Time) (string, error) {
	var username string
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`
		SELECT username FROM sessions WHERE token_hash = ? AND expires_at > ?
	`), hashToken(token), now.UTC()).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", storage.Classify(err))
	}
	return username, nil
}

// Delete removes a token. Deleting an unknown token is not an error.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE token_hash = ?`), hashToken(token))
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", storage.Classify(err))
	}
	return nil
}

// PurgeExpired deletes every session that expired before now.
func (s *SessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", storage.Classify(err))
	}
	return res.RowsAffected()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
