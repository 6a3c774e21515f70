package species

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/database"
	_ "github.com/herpkeeper/herpkeeper-core/migrations" // register embedded migrations
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "species_test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO profiles (id, username, password, name, email, role, active, food_types, created_at, updated_at)
		 VALUES ('prof-1', 'caitlyn', 'hash', 'Caitlyn', 'c@example.com', 'member', 1, '[]',
		 '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("seeding profile: %v", err)
	}

	return db
}

func TestRepository_CRUD(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	s := &Species{
		ProfileID:          "prof-1",
		CommonName:         "Western Diamondback Rattlesnake",
		Class:              "Reptilia",
		Order:              "Squamata",
		SubOrder:           "Serpentes",
		Genus:              "Crotalus",
		Species:            "atrox",
		Venomous:           true,
		PotentiallyHarmful: true,
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.Get(ctx, "prof-1", s.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Genus != "Crotalus" || !got.Venomous {
		t.Errorf("Get() = %+v, fields do not round-trip", got)
	}
	if got.SubSpecies != "" {
		t.Errorf("SubSpecies = %q, want empty", got.SubSpecies)
	}

	s.CommonName = "Texas Rattler"
	s.Venomous = true
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got, err = repo.Get(ctx, "prof-1", s.ID)
	if err != nil {
		t.Fatalf("Get() after update error: %v", err)
	}
	if got.CommonName != "Texas Rattler" {
		t.Errorf("CommonName = %q, want %q", got.CommonName, "Texas Rattler")
	}

	list, err := repo.ListByProfile(ctx, "prof-1")
	if err != nil {
		t.Fatalf("ListByProfile() error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListByProfile() returned %d, want 1", len(list))
	}

	if err := repo.Delete(ctx, "prof-1", s.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.Get(ctx, "prof-1", s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestRepository_ProfileScoping(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	s := &Species{ProfileID: "prof-1", CommonName: "Leopard Gecko"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := repo.Get(ctx, "prof-2", s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-profile Get() = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "prof-2", s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-profile Delete() = %v, want ErrNotFound", err)
	}
}

func TestValidate(t *testing.T) {
	if err := (&Species{CommonName: "Corn Snake"}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := (&Species{}).Validate(); err == nil {
		t.Error("Validate() without common name = nil, want error")
	}
}
