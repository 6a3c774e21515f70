package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herpkeeper/herpkeeper-core/internal/auth"
)

// Repository defines the interface for profile persistence operations.
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	Activate(ctx context.Context, username, activationKey string) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, p *Profile) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed profile repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const profileColumns = `id, username, password, name, email, role, active,
	activation_key, food_types, created_at, updated_at`

// Create inserts a new profile. The ID and activation key are generated if
// empty, and the profile starts inactive until the activation key is used.
func (r *SQLiteRepository) Create(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		p.ID = "prof-" + uuid.NewString()[:8]
	}
	if p.ActivationKey == "" {
		p.ActivationKey = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = auth.RoleMember
	}
	if p.FoodTypes == nil {
		p.FoodTypes = []string{}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	foodTypes, err := json.Marshal(p.FoodTypes)
	if err != nil {
		return fmt.Errorf("encoding food types: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.PasswordHash, p.Name, p.Email, string(p.Role),
		boolToInt(p.Active), nullString(p.ActivationKey), string(foodTypes),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return translateConstraint(err)
	}
	return nil
}

// translateConstraint maps SQLite unique violations to sentinel errors.
func translateConstraint(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "profiles.username"):
		return ErrUsernameExists
	case strings.Contains(msg, "profiles.email"):
		return ErrEmailExists
	default:
		return fmt.Errorf("creating profile: %w", err)
	}
}

// GetByID retrieves a profile by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	return scanProfile(row)
}

// GetByUsername retrieves a profile by its unique username.
func (r *SQLiteRepository) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = ?`, username)
	return scanProfile(row)
}

// Activate marks a profile active if the activation key matches.
// The key is single-use; it is cleared on success.
func (r *SQLiteRepository) Activate(ctx context.Context, username, activationKey string) (*Profile, error) {
	p, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if p.ActivationKey == "" || p.ActivationKey != activationKey {
		return nil, ErrBadActivation
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`UPDATE profiles SET active = 1, activation_key = NULL, updated_at = ?
		 WHERE id = ?`,
		now.Format(time.RFC3339), p.ID)
	if err != nil {
		return nil, fmt.Errorf("activating profile: %w", err)
	}

	p.Active = true
	p.ActivationKey = ""
	p.UpdatedAt = now
	return p, nil
}

// List returns all profiles ordered by username.
func (r *SQLiteRepository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profiles: %w", err)
	}
	return profiles, nil
}

// Count returns the total number of profiles.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting profiles: %w", err)
	}
	return count, nil
}

// Update writes mutable profile fields (name, email, role, food types).
// Username, password, and activation state have dedicated operations.
func (r *SQLiteRepository) Update(ctx context.Context, p *Profile) error {
	if p.FoodTypes == nil {
		p.FoodTypes = []string{}
	}
	foodTypes, err := json.Marshal(p.FoodTypes)
	if err != nil {
		return fmt.Errorf("encoding food types: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET name = ?, email = ?, role = ?, food_types = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Email, string(p.Role), string(foodTypes),
		now.Format(time.RFC3339), p.ID)
	if err != nil {
		return translateConstraint(err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}

	p.UpdatedAt = now
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *SQLiteRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE profiles SET password = ?, updated_at = ? WHERE id = ?",
		passwordHash, now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a profile. Child rows cascade via foreign keys.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanProfile.
type scanner interface {
	Scan(dest ...any) error
}

// scanProfile scans a single profile row.
func scanProfile(row scanner) (*Profile, error) {
	var p Profile
	var role string
	var active int
	var activationKey sql.NullString
	var foodTypes, createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Name, &p.Email,
		&role, &active, &activationKey, &foodTypes, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning profile: %w", err)
	}

	p.Role = auth.Role(role)
	p.Active = active != 0
	if activationKey.Valid {
		p.ActivationKey = activationKey.String
	}
	if err := json.Unmarshal([]byte(foodTypes), &p.FoodTypes); err != nil {
		return nil, fmt.Errorf("decoding food types: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

// nullString converts an empty string to NULL for nullable columns.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
