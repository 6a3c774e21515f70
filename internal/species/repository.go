package species

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for species persistence operations.
// All lookups are scoped by profile.
type Repository interface {
	Create(ctx context.Context, s *Species) error
	Get(ctx context.Context, profileID, id string) (*Species, error)
	ListByProfile(ctx context.Context, profileID string) ([]Species, error)
	Update(ctx context.Context, s *Species) error
	Delete(ctx context.Context, profileID, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed species repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// taxonomic_order is quoted-free because "order" is a reserved word in SQL.
const speciesColumns = `id, profile_id, common_name, class, taxonomic_order,
	sub_order, genus, species, sub_species, image_id, venomous,
	potentially_harmful, created_at, updated_at`

// Create inserts a new species. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, s *Species) error {
	if s.ID == "" {
		s.ID = "sp-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO species (`+speciesColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProfileID, s.CommonName,
		nullString(s.Class), nullString(s.Order), nullString(s.SubOrder),
		nullString(s.Genus), nullString(s.Species), nullString(s.SubSpecies),
		nullString(s.ImageID), boolToInt(s.Venomous), boolToInt(s.PotentiallyHarmful),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting species %s: %w", s.ID, err)
	}
	return nil
}

// Get returns a single species owned by the profile.
func (r *SQLiteRepository) Get(ctx context.Context, profileID, id string) (*Species, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+speciesColumns+` FROM species WHERE profile_id = ? AND id = ?`,
		profileID, id)
	return scanSpecies(row)
}

// ListByProfile returns all of a profile's species ordered by common name.
func (r *SQLiteRepository) ListByProfile(ctx context.Context, profileID string) ([]Species, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+speciesColumns+` FROM species WHERE profile_id = ? ORDER BY common_name`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("listing species: %w", err)
	}
	defer rows.Close()

	list := []Species{}
	for rows.Next() {
		s, err := scanSpecies(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating species: %w", err)
	}
	return list, nil
}

// Update writes mutable species fields.
func (r *SQLiteRepository) Update(ctx context.Context, s *Species) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE species SET common_name = ?, class = ?, taxonomic_order = ?,
		 sub_order = ?, genus = ?, species = ?, sub_species = ?, image_id = ?,
		 venomous = ?, potentially_harmful = ?, updated_at = ?
		 WHERE profile_id = ? AND id = ?`,
		s.CommonName,
		nullString(s.Class), nullString(s.Order), nullString(s.SubOrder),
		nullString(s.Genus), nullString(s.Species), nullString(s.SubSpecies),
		nullString(s.ImageID), boolToInt(s.Venomous), boolToInt(s.PotentiallyHarmful),
		now.Format(time.RFC3339), s.ProfileID, s.ID)
	if err != nil {
		return fmt.Errorf("updating species %s: %w", s.ID, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}

	s.UpdatedAt = now
	return nil
}

// Delete removes a species owned by the profile.
func (r *SQLiteRepository) Delete(ctx context.Context, profileID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM species WHERE profile_id = ? AND id = ?", profileID, id)
	if err != nil {
		return fmt.Errorf("deleting species %s: %w", id, err)
	}

	affected, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSpecies.
type scanner interface {
	Scan(dest ...any) error
}

func scanSpecies(row scanner) (*Species, error) {
	var s Species
	var class, order, subOrder, genus, species, subSpecies, imageID sql.NullString
	var venomous, harmful int
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.ProfileID, &s.CommonName,
		&class, &order, &subOrder, &genus, &species, &subSpecies,
		&imageID, &venomous, &harmful, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning species: %w", err)
	}

	s.Class = class.String
	s.Order = order.String
	s.SubOrder = subOrder.String
	s.Genus = genus.String
	s.Species = species.String
	s.SubSpecies = subSpecies.String
	s.ImageID = imageID.String
	s.Venomous = venomous != 0
	s.PotentiallyHarmful = harmful != 0
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &s, nil
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
