package location

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for location persistence operations.
// All lookups are scoped by profile: a keeper can never see another
// keeper's locations.
type Repository interface {
	Create(ctx context.Context, loc *Location) error
	Get(ctx context.Context, profileID, id string) (*Location, error)
	ListByProfile(ctx context.Context, profileID string) ([]Location, error)
	Update(ctx context.Context, loc *Location) error
	Delete(ctx context.Context, profileID, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed location repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const locationColumns = `id, profile_id, name, longitude, latitude,
	full_address, image_id, created_at, updated_at`

// Create inserts a new location. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, loc *Location) error {
	if loc.ID == "" {
		loc.ID = "loc-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	loc.CreatedAt = now
	loc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO locations (`+locationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.ProfileID, loc.Name, loc.Longitude, loc.Latitude,
		nullString(loc.FullAddress), nullString(loc.ImageID),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting location %s: %w", loc.ID, err)
	}
	return nil
}

// Get returns a single location owned by the profile.
func (r *SQLiteRepository) Get(ctx context.Context, profileID, id string) (*Location, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE profile_id = ? AND id = ?`,
		profileID, id)
	return scanLocation(row)
}

// ListByProfile returns all of a profile's locations ordered by name.
func (r *SQLiteRepository) ListByProfile(ctx context.Context, profileID string) ([]Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE profile_id = ? ORDER BY name`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	locations := []Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating locations: %w", err)
	}
	return locations, nil
}

// Update writes mutable location fields.
func (r *SQLiteRepository) Update(ctx context.Context, loc *Location) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE locations SET name = ?, longitude = ?, latitude = ?,
		 full_address = ?, image_id = ?, updated_at = ?
		 WHERE profile_id = ? AND id = ?`,
		loc.Name, loc.Longitude, loc.Latitude,
		nullString(loc.FullAddress), nullString(loc.ImageID),
		now.Format(time.RFC3339), loc.ProfileID, loc.ID)
	if err != nil {
		return fmt.Errorf("updating location %s: %w", loc.ID, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}

	loc.UpdatedAt = now
	return nil
}

// Delete removes a location owned by the profile.
func (r *SQLiteRepository) Delete(ctx context.Context, profileID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM locations WHERE profile_id = ? AND id = ?", profileID, id)
	if err != nil {
		return fmt.Errorf("deleting location %s: %w", id, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanLocation.
type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(row scanner) (*Location, error) {
	var loc Location
	var fullAddress, imageID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&loc.ID, &loc.ProfileID, &loc.Name, &loc.Longitude, &loc.Latitude,
		&fullAddress, &imageID, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning location: %w", err)
	}

	if fullAddress.Valid {
		loc.FullAddress = fullAddress.String
	}
	if imageID.Valid {
		loc.ImageID = imageID.String
	}
	loc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	loc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &loc, nil
}

// nullString converts an empty string to NULL for nullable columns.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
