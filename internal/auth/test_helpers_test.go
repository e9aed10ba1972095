package auth

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the users table applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "auth-test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating users table: %v", err)
	}
	return db
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const (
	testProject     = "graylogic-home"
	testRedirect    = "https://oauth-redirect.googleusercontent.com/r/graylogic-home"
	testClientID    = "assistant-client"
	testSecret      = "assistant-secret"
	testAccessTTL   = time.Hour
	testUser        = "alice"
	testSelfURL     = "https://home.example.net"
	sandboxRedirect = "https://oauth-redirect-sandbox.googleusercontent.com/r/graylogic-home"
)

// newTestService returns a service backed by a temp-dir snapshot.
func newTestService(t *testing.T, clock *fakeClock) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	return newServiceAt(path, clock), path
}

func newServiceAt(path string, clock *fakeClock) *Service {
	return NewService(NewFileStore(path, nil), Options{
		ClientID:       testClientID,
		ClientSecret:   testSecret,
		AccessTokenTTL: testAccessTTL,
		Redirects: RedirectPolicy{
			ProjectID: testProject,
			Templates: []string{
				"https://oauth-redirect.googleusercontent.com/r/{project}",
				"https://oauth-redirect-sandbox.googleusercontent.com/r/{project}",
			},
		},
		Now: clock.Now,
	})
}

// link runs the full code exchange for user.
func link(t *testing.T, svc *Service, user string) Tokens {
	t.Helper()
	code := svc.GenerateAuthCode(user)
	toks, err := svc.ExchangeAuthCode(code, testRedirect, "")
	if err != nil {
		t.Fatalf("ExchangeAuthCode() error = %v", err)
	}
	return toks
}
