package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenRepository defines the interface for refresh token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByUsernameAndToken(ctx context.Context, username, rawToken string) (*RefreshToken, error)
	DeleteByUsernameAndToken(ctx context.Context, username, rawToken string) error
	DeleteAllForUsername(ctx context.Context, username string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored, only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Create inserts a new refresh token. The ID is generated if empty.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = "rt-" + uuid.NewString()[:16]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	token.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, username, token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.ID, token.Username, token.TokenHash,
		token.ExpiresAt.UTC().Format(time.RFC3339), now,
	)
	if err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}

	return nil
}

// GetByUsernameAndToken looks up a refresh token by username and the raw
// token the client presented. Expired tokens are treated as not found.
func (r *SQLiteTokenRepository) GetByUsernameAndToken(ctx context.Context, username, rawToken string) (*RefreshToken, error) {
	var t RefreshToken
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, token_hash, expires_at, created_at
		 FROM refresh_tokens WHERE username = ? AND token_hash = ?`,
		username, HashToken(rawToken),
	).Scan(&t.ID, &t.Username, &t.TokenHash, &expiresAt, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting refresh token: %w", err)
	}

	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	if time.Now().After(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &t, nil
}

// DeleteByUsernameAndToken removes a single refresh token, ending that session.
// Used on logout. Deleting a token that does not exist is not an error.
func (r *SQLiteTokenRepository) DeleteByUsernameAndToken(ctx context.Context, username, rawToken string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE username = ? AND token_hash = ?",
		username, HashToken(rawToken))
	if err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// DeleteAllForUsername removes every refresh token for a user.
// Used when changing password.
func (r *SQLiteTokenRepository) DeleteAllForUsername(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("deleting tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that have expired, freeing storage.
// Returns the number of deleted rows.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}
