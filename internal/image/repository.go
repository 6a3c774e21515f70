package image

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for image metadata persistence.
// All lookups are scoped by profile.
type Repository interface {
	Create(ctx context.Context, img *Image) error
	Get(ctx context.Context, profileID, id string) (*Image, error)
	ListByProfile(ctx context.Context, profileID string) ([]Image, error)
	Update(ctx context.Context, img *Image) error
	Delete(ctx context.Context, profileID, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed image repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const imageColumns = `id, profile_id, title, caption, content_type, file_name,
	created_at, updated_at`

// Create inserts new image metadata. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, img *Image) error {
	if img.ID == "" {
		img.ID = "img-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	img.CreatedAt = now
	img.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO images (`+imageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.ProfileID, img.Title, nullString(img.Caption),
		img.ContentType, img.FileName,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting image %s: %w", img.ID, err)
	}
	return nil
}

// Get returns a single image's metadata owned by the profile.
func (r *SQLiteRepository) Get(ctx context.Context, profileID, id string) (*Image, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE profile_id = ? AND id = ?`,
		profileID, id)
	return scanImage(row)
}

// ListByProfile returns all of a profile's image metadata, newest first.
func (r *SQLiteRepository) ListByProfile(ctx context.Context, profileID string) ([]Image, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE profile_id = ? ORDER BY created_at DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating images: %w", err)
	}
	return images, nil
}

// Update writes mutable image metadata (title, caption).
func (r *SQLiteRepository) Update(ctx context.Context, img *Image) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE images SET title = ?, caption = ?, updated_at = ?
		 WHERE profile_id = ? AND id = ?`,
		img.Title, nullString(img.Caption),
		now.Format(time.RFC3339), img.ProfileID, img.ID)
	if err != nil {
		return fmt.Errorf("updating image %s: %w", img.ID, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}

	img.UpdatedAt = now
	return nil
}

// Delete removes image metadata owned by the profile.
func (r *SQLiteRepository) Delete(ctx context.Context, profileID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM images WHERE profile_id = ? AND id = ?", profileID, id)
	if err != nil {
		return fmt.Errorf("deleting image %s: %w", id, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanImage.
type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (*Image, error) {
	var img Image
	var caption sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&img.ID, &img.ProfileID, &img.Title, &caption,
		&img.ContentType, &img.FileName, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning image: %w", err)
	}

	img.Caption = caption.String
	img.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	img.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &img, nil
}

// nullString converts an empty string to NULL for nullable columns.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
