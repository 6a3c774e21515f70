package animal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for animal persistence operations.
// All lookups are scoped by profile.
type Repository interface {
	Create(ctx context.Context, a *Animal) error
	Get(ctx context.Context, profileID, id string) (*Animal, error)
	ListByProfile(ctx context.Context, profileID string) ([]Animal, error)
	Update(ctx context.Context, a *Animal) error
	Delete(ctx context.Context, profileID, id string) error
	AddFeeding(ctx context.Context, profileID, id string, feeding *Feeding) (*Animal, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed animal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const animalColumns = `id, profile_id, name, location_id, species_id, sex,
	birth_date, acquisition_date, preferred_food, images, feedings,
	created_at, updated_at`

// Create inserts a new animal. The ID is generated if empty and sex
// defaults to unknown.
func (r *SQLiteRepository) Create(ctx context.Context, a *Animal) error {
	if a.ID == "" {
		a.ID = "an-" + uuid.NewString()[:8]
	}
	if a.Sex == "" {
		a.Sex = SexUnknown
	}
	if a.Images == nil {
		a.Images = []ImageRef{}
	}
	if a.Feedings == nil {
		a.Feedings = []Feeding{}
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	images, feedings, err := encodeEmbedded(a)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO animals (`+animalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProfileID, a.Name, a.LocationID, a.SpeciesID, string(a.Sex),
		nullTime(a.BirthDate), nullTime(a.AcquisitionDate),
		nullString(a.PreferredFood), images, feedings,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting animal %s: %w", a.ID, err)
	}
	return nil
}

// Get returns a single animal owned by the profile.
func (r *SQLiteRepository) Get(ctx context.Context, profileID, id string) (*Animal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+animalColumns+` FROM animals WHERE profile_id = ? AND id = ?`,
		profileID, id)
	return scanAnimal(row)
}

// ListByProfile returns all of a profile's animals ordered by name.
func (r *SQLiteRepository) ListByProfile(ctx context.Context, profileID string) ([]Animal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+animalColumns+` FROM animals WHERE profile_id = ? ORDER BY name`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("listing animals: %w", err)
	}
	defer rows.Close()

	animals := []Animal{}
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		animals = append(animals, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating animals: %w", err)
	}
	return animals, nil
}

// Update writes the full animal record including embedded images and feedings.
func (r *SQLiteRepository) Update(ctx context.Context, a *Animal) error {
	if a.Images == nil {
		a.Images = []ImageRef{}
	}
	if a.Feedings == nil {
		a.Feedings = []Feeding{}
	}

	images, feedings, err := encodeEmbedded(a)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE animals SET name = ?, location_id = ?, species_id = ?, sex = ?,
		 birth_date = ?, acquisition_date = ?, preferred_food = ?,
		 images = ?, feedings = ?, updated_at = ?
		 WHERE profile_id = ? AND id = ?`,
		a.Name, a.LocationID, a.SpeciesID, string(a.Sex),
		nullTime(a.BirthDate), nullTime(a.AcquisitionDate),
		nullString(a.PreferredFood), images, feedings,
		now.Format(time.RFC3339), a.ProfileID, a.ID)
	if err != nil {
		return fmt.Errorf("updating animal %s: %w", a.ID, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}

	a.UpdatedAt = now
	return nil
}

// Delete removes an animal owned by the profile.
func (r *SQLiteRepository) Delete(ctx context.Context, profileID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM animals WHERE profile_id = ? AND id = ?", profileID, id)
	if err != nil {
		return fmt.Errorf("deleting animal %s: %w", id, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFeeding appends a feeding record to an animal and returns the updated
// animal. The feeding ID and creation time are assigned here.
func (r *SQLiteRepository) AddFeeding(ctx context.Context, profileID, id string, feeding *Feeding) (*Animal, error) {
	a, err := r.Get(ctx, profileID, id)
	if err != nil {
		return nil, err
	}

	if feeding.ID == "" {
		feeding.ID = "feed-" + uuid.NewString()[:8]
	}
	if feeding.Quantity < 1 {
		feeding.Quantity = 1
	}
	feeding.CreatedAt = time.Now().UTC()

	a.Feedings = append(a.Feedings, *feeding)
	if err := r.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// encodeEmbedded marshals the images and feedings JSON columns.
func encodeEmbedded(a *Animal) (images, feedings string, err error) {
	ib, err := json.Marshal(a.Images)
	if err != nil {
		return "", "", fmt.Errorf("encoding images: %w", err)
	}
	fb, err := json.Marshal(a.Feedings)
	if err != nil {
		return "", "", fmt.Errorf("encoding feedings: %w", err)
	}
	return string(ib), string(fb), nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanAnimal.
type scanner interface {
	Scan(dest ...any) error
}

func scanAnimal(row scanner) (*Animal, error) {
	var a Animal
	var sex string
	var birthDate, acquisitionDate, preferredFood sql.NullString
	var images, feedings, createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.ProfileID, &a.Name, &a.LocationID, &a.SpeciesID,
		&sex, &birthDate, &acquisitionDate, &preferredFood,
		&images, &feedings, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning animal: %w", err)
	}

	a.Sex = Sex(sex)
	a.BirthDate = parseNullTime(birthDate)
	a.AcquisitionDate = parseNullTime(acquisitionDate)
	a.PreferredFood = preferredFood.String
	if err := json.Unmarshal([]byte(images), &a.Images); err != nil {
		return nil, fmt.Errorf("decoding images: %w", err)
	}
	if err := json.Unmarshal([]byte(feedings), &a.Feedings); err != nil {
		return nil, fmt.Errorf("decoding feedings: %w", err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &a, nil
}

// nullTime converts an optional time to its stored representation.
func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// parseNullTime converts a stored nullable timestamp back to *time.Time.
func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullString converts an empty string to NULL for nullable columns.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
