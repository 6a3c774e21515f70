package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/herpkeeper/herpkeeper-core/internal/auth"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/database"
	_ "github.com/herpkeeper/herpkeeper-core/migrations" // register embedded migrations
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "profile_test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return db
}

func testProfile(username string) *Profile {
	return &Profile{
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Name:         "Caitlyn Keeper",
		Email:        username + "@example.com",
		Role:         auth.RoleMember,
		FoodTypes:    []string{"cricket", "mealworm"},
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	p := testProfile("caitlyn")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if p.ActivationKey == "" {
		t.Error("Create() did not assign an activation key")
	}
	if p.Active {
		t.Error("new profile must start inactive")
	}

	got, err := repo.GetByUsername(ctx, "caitlyn")
	if err != nil {
		t.Fatalf("GetByUsername() error: %v", err)
	}
	if got.Email != "caitlyn@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "caitlyn@example.com")
	}
	if len(got.FoodTypes) != 2 || got.FoodTypes[0] != "cricket" {
		t.Errorf("FoodTypes = %v, want [cricket mealworm]", got.FoodTypes)
	}

	byID, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if byID.Username != "caitlyn" {
		t.Errorf("Username = %q, want %q", byID.Username, "caitlyn")
	}
}

func TestRepository_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testProfile("caitlyn")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	dup := testProfile("caitlyn")
	dup.Email = "other@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrUsernameExists) {
		t.Errorf("duplicate username Create() = %v, want ErrUsernameExists", err)
	}
}

func TestRepository_DuplicateEmail(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testProfile("caitlyn")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	dup := testProfile("vi")
	dup.Email = "caitlyn@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate email Create() = %v, want ErrEmailExists", err)
	}
}

func TestRepository_Activate(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	p := testProfile("caitlyn")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Wrong key is rejected.
	if _, err := repo.Activate(ctx, "caitlyn", "wrong-key"); !errors.Is(err, ErrBadActivation) {
		t.Errorf("Activate() with wrong key = %v, want ErrBadActivation", err)
	}

	activated, err := repo.Activate(ctx, "caitlyn", p.ActivationKey)
	if err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	if !activated.Active {
		t.Error("profile not marked active")
	}

	// Key is single-use.
	if _, err := repo.Activate(ctx, "caitlyn", p.ActivationKey); !errors.Is(err, ErrBadActivation) {
		t.Errorf("second Activate() = %v, want ErrBadActivation", err)
	}

	got, err := repo.GetByUsername(ctx, "caitlyn")
	if err != nil {
		t.Fatalf("GetByUsername() error: %v", err)
	}
	if !got.Active || got.ActivationKey != "" {
		t.Errorf("stored profile active=%v key=%q, want active with cleared key", got.Active, got.ActivationKey)
	}
}

func TestRepository_ListAndCount(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	for _, u := range []string{"vi", "caitlyn", "jayce"} {
		if err := repo.Create(ctx, testProfile(u)); err != nil {
			t.Fatalf("Create(%s) error: %v", u, err)
		}
	}

	profiles, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("List() returned %d profiles, want 3", len(profiles))
	}
	if profiles[0].Username != "caitlyn" {
		t.Errorf("List() not ordered by username: first = %q", profiles[0].Username)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}

func TestRepository_Update(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	p := testProfile("caitlyn")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	p.Name = "Sheriff Kiramman"
	p.FoodTypes = []string{"dubia roach"}
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.Name != "Sheriff Kiramman" {
		t.Errorf("Name = %q, want %q", got.Name, "Sheriff Kiramman")
	}
	if len(got.FoodTypes) != 1 || got.FoodTypes[0] != "dubia roach" {
		t.Errorf("FoodTypes = %v, want [dubia roach]", got.FoodTypes)
	}

	missing := testProfile("ghost")
	missing.ID = "prof-missing"
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() on missing profile = %v, want ErrNotFound", err)
	}
}

func TestRepository_UpdatePassword(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	p := testProfile("caitlyn")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.UpdatePassword(ctx, p.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error: %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Error("password hash not updated")
	}

	if err := repo.UpdatePassword(ctx, "prof-missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePassword() on missing profile = %v, want ErrNotFound", err)
	}
}

func TestRepository_Delete(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	p := testProfile("caitlyn")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}
