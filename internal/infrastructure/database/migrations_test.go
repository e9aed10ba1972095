package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// withMigrations registers fsys for the duration of the test.
func withMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	prev := migrationSource
	RegisterMigrations(fsys, ".")
	t.Cleanup(func() { migrationSource = prev })
}

func TestMigrate(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260301_120000_accounts.up.sql":   {Data: []byte("CREATE TABLE accounts (id TEXT PRIMARY KEY);")},
		"20260301_120000_accounts.down.sql": {Data: []byte("DROP TABLE accounts;")},
		"20260302_090000_email.up.sql":      {Data: []byte("ALTER TABLE accounts ADD COLUMN email TEXT;")},
		"README.md":                         {Data: []byte("not a migration")},
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Second run must be a no-op
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO accounts (id, email) VALUES ('a', 'a@example.net')"); err != nil {
		t.Errorf("schema not applied: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations = %d, want 2", count)
	}
}

func TestMigrate_FailureStopsAtBrokenMigration(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260301_120000_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"20260301_130000_broken.up.sql": {Data: []byte("CREATE TABLE (;")},
	})

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	applied, err := db.appliedVersions(context.Background())
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if !applied["20260301_120000"] || applied["20260301_130000"] {
		t.Errorf("applied = %v, want only the first migration", applied)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	prev := migrationSource
	RegisterMigrations(nil, "")
	t.Cleanup(func() { migrationSource = prev })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260301_120000_login_accounts.up.sql", "20260301_120000", "login_accounts", true},
		{"20260301_120000.up.sql", "20260301_120000", "20260301_120000", true},
		{"20260301_120000_login_accounts.down.sql", "", "", false},
		{"20260301_120000_login_accounts.sql", "", "", false},
		{"notes.txt", "", "", false},
		{"single.up.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
