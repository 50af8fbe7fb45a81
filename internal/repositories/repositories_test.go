package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/shared"
	"golang.org/x/oauth2"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestCacheEntryRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		repo := NewCacheEntryRepository(setupTestDB(t))
		entry := models.NewCacheEntry("site", []byte(`{"id":"u-1"}`))

		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}
		if entry.ID() == "" {
			t.Fatal("entry ID should be set after creation")
		}

		byID, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}
		if string(byID.Value()) != `{"id":"u-1"}` {
			t.Errorf("unexpected value %s", byID.Value())
		}

		byKey, err := repo.GetByKey("site")
		if err != nil {
			t.Fatalf("failed to get entry by key: %v", err)
		}
		if byKey.ID() != entry.ID() {
			t.Errorf("expected ID %s, got %s", entry.ID(), byKey.ID())
		}
	})

	t.Run("Create Rejects Invalid Entry", func(t *testing.T) {
		repo := NewCacheEntryRepository(setupTestDB(t))
		if err := repo.Create(models.NewCacheEntry(" ", []byte("x"))); err == nil {
			t.Fatal("expected validation error for blank key")
		}
	})

	t.Run("Duplicate Key", func(t *testing.T) {
		repo := NewCacheEntryRepository(setupTestDB(t))
		if err := repo.Create(models.NewCacheEntry("site", []byte("a"))); err != nil {
			t.Fatalf("failed to create first entry: %v", err)
		}
		if err := repo.Create(models.NewCacheEntry("site", []byte("b"))); err == nil {
			t.Fatal("expected error for duplicate key")
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		repo := NewCacheEntryRepository(setupTestDB(t))

		if err := repo.Upsert("site", []byte("first")); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		first, _ := repo.GetByKey("site")

		if err := repo.Upsert("site", []byte("second")); err != nil {
			t.Fatalf("failed to update: %v", err)
		}
		second, err := repo.GetByKey("site")
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}

		if string(second.Value()) != "second" {
			t.Errorf("expected updated value, got %s", second.Value())
		}
		if second.ID() != first.ID() {
			t.Error("upsert should keep the original row")
		}

		entries, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 entry, got %d", len(entries))
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewCacheEntryRepository(setupTestDB(t))
		entry := models.NewCacheEntry("site", []byte("a"))
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}

		entry.SetValue([]byte("b"))
		if err := repo.Update(entry); err != nil {
			t.Fatalf("failed to update entry: %v", err)
		}

		got, _ := repo.Get(entry.ID())
		if string(got.Value()) != "b" {
			t.Errorf("expected b, got %s", got.Value())
		}

		missing := models.NewCacheEntry("other", []byte("x"))
		missing.SetID("nope")
		if err := repo.Update(missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewCacheEntryRepository(setupTestDB(t))
		entry := models.NewCacheEntry("site", []byte("a"))
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}

		if err := repo.Delete(entry.ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(entry.ID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete(entry.ID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
		if err := repo.DeleteByKey("never-written"); err != nil {
			t.Errorf("deleting a missing key should not fail: %v", err)
		}
	})

	t.Run("List By Prefix", func(t *testing.T) {
		repo := NewCacheEntryRepository(setupTestDB(t))
		for _, key := range []string{"provider_session", "provider_meta", "site"} {
			if err := repo.Upsert(key, []byte("v")); err != nil {
				t.Fatalf("failed to upsert %s: %v", key, err)
			}
		}

		entries, err := repo.List(map[string]any{"key_prefix": "provider_"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Key() != "provider_meta" {
			t.Errorf("expected entries ordered by key, got %s first", entries[0].Key())
		}
	})
}

func TestReportExportRepository(t *testing.T) {
	t.Run("Create Get And List", func(t *testing.T) {
		repo := NewReportExportRepository(setupTestDB(t))

		older := models.NewReportExport("u-1", "pdf", "a.pdf", 3)
		older.SetCreatedAt(time.Now().UTC().Add(-time.Hour))
		newer := models.NewReportExport("u-1", "csv", "b.csv", 5)
		other := models.NewReportExport("u-2", "pdf", "c.pdf", 1)

		for _, e := range []*models.ReportExport{older, newer, other} {
			if err := repo.Create(e); err != nil {
				t.Fatalf("failed to create export: %v", err)
			}
		}

		got, err := repo.Get(newer.ID())
		if err != nil {
			t.Fatalf("failed to get export: %v", err)
		}
		if got.RecordCount() != 5 || got.Format() != "csv" {
			t.Errorf("unexpected export %+v", got)
		}

		exports, err := repo.List(map[string]any{"owner_id": "u-1"})
		if err != nil {
			t.Fatalf("failed to list exports: %v", err)
		}
		if len(exports) != 2 {
			t.Fatalf("expected 2 exports, got %d", len(exports))
		}
		if exports[0].ID() != newer.ID() {
			t.Error("expected newest export first")
		}

		limited, _ := repo.List(map[string]any{"owner_id": "u-1", "limit": 1})
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}

		pdfs, _ := repo.List(map[string]any{"format": "pdf"})
		if len(pdfs) != 2 {
			t.Errorf("expected 2 pdf exports, got %d", len(pdfs))
		}
	})

	t.Run("Update And Delete", func(t *testing.T) {
		repo := NewReportExportRepository(setupTestDB(t))
		export := models.NewReportExport("u-1", "pdf", "a.pdf", 3)
		if err := repo.Create(export); err != nil {
			t.Fatalf("failed to create export: %v", err)
		}

		export.SetPath("moved.pdf")
		export.SetRecordCount(4)
		if err := repo.Update(export); err != nil {
			t.Fatalf("failed to update export: %v", err)
		}
		got, _ := repo.Get(export.ID())
		if got.Path() != "moved.pdf" || got.RecordCount() != 4 {
			t.Errorf("update not applied: %+v", got)
		}

		if err := repo.Delete(export.ID()); err != nil {
			t.Fatalf("failed to delete export: %v", err)
		}
		if _, err := repo.Get(export.ID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		repo := NewReportExportRepository(setupTestDB(t))
		if err := repo.Create(models.NewReportExport("", "pdf", "a.pdf", 1)); err == nil {
			t.Error("expected validation error for missing owner")
		}
	})
}

func TestIdentityCache(t *testing.T) {
	cache := NewIdentityCache(NewCacheEntryRepository(setupTestDB(t)))

	t.Run("Empty", func(t *testing.T) {
		identity, err := cache.Load()
		if err != nil || identity != nil {
			t.Fatalf("expected nil identity and no error, got %v, %v", identity, err)
		}
	})

	t.Run("Round Trip Keeps Provider Document", func(t *testing.T) {
		doc := `{"id":"u-1","email":"pilot@example.com","user_metadata":{"callsign":"kestrel"}}`
		identity, err := models.ParseIdentity([]byte(doc))
		if err != nil {
			t.Fatalf("failed to parse identity: %v", err)
		}

		if err := cache.Save(identity); err != nil {
			t.Fatalf("failed to save identity: %v", err)
		}

		loaded, err := cache.Load()
		if err != nil {
			t.Fatalf("failed to load identity: %v", err)
		}
		if loaded.Email != "pilot@example.com" {
			t.Errorf("unexpected email %s", loaded.Email)
		}

		entry, _ := cache.repo.GetByKey(IdentityCacheKey)
		if string(entry.Value()) != doc {
			t.Errorf("expected provider document verbatim, got %s", entry.Value())
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := cache.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		identity, _ := cache.Load()
		if identity != nil {
			t.Error("expected cache to be empty after clear")
		}
	})
}

func TestTokenCache(t *testing.T) {
	cache := NewTokenCache(NewCacheEntryRepository(setupTestDB(t)))

	tok, err := cache.LoadToken()
	if err != nil || tok != nil {
		t.Fatalf("expected no stored token, got %v, %v", tok, err)
	}

	expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := cache.SaveToken(&oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "bearer", Expiry: expiry}); err != nil {
		t.Fatalf("failed to save token: %v", err)
	}

	tok, err = cache.LoadToken()
	if err != nil {
		t.Fatalf("failed to load token: %v", err)
	}
	if tok.AccessToken != "a" || tok.RefreshToken != "r" || !tok.Expiry.Equal(expiry) {
		t.Errorf("unexpected token %+v", tok)
	}

	if err := cache.ClearToken(); err != nil {
		t.Fatalf("failed to clear token: %v", err)
	}
	if tok, _ := cache.LoadToken(); tok != nil {
		t.Error("expected token to be cleared")
	}
}
