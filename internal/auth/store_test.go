package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.json"), nil)

	st := store.Load()
	if st.LocalAuthCode == "" || st.NextLocalAuthCode == "" {
		t.Fatal("fresh storage should carry a local token pair")
	}
	if st.LocalAuthCode == st.NextLocalAuthCode {
		t.Error("local tokens should differ")
	}
	if len(st.AccessTokens) != 0 || len(st.RefreshTokens) != 0 {
		t.Error("fresh storage should have no tokens")
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	st := NewFileStore(path, nil).Load()
	if st.LocalAuthCode == "" || st.AccessTokens == nil || st.RefreshTokens == nil {
		t.Errorf("corrupt file should yield fresh storage, got %+v", st)
	}
}

func TestFileStore_LoadMissingLocalPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	doc := `{"accessTokens":{},"refreshTokens":{"r1":"alice"},"localAuthCode":"same","nextLocalAuthCode":"same"}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	st := NewFileStore(path, nil).Load()
	if st.RefreshTokens["r1"] != "alice" {
		t.Error("refresh tokens should be kept when only the local pair is unusable")
	}
	if st.LocalAuthCode == st.NextLocalAuthCode || st.LocalAuthCode == "same" {
		t.Errorf("local pair = %q/%q, want freshly minted distinct tokens", st.LocalAuthCode, st.NextLocalAuthCode)
	}
}

func TestFileStore_PersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	store := NewFileStore(path, nil)

	expires := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	st := &Storage{
		AccessTokens: map[string]AccessToken{
			"a1": {Token: "a1", User: "alice", ExpiresAt: expires},
		},
		RefreshTokens:     map[string]string{"r1": "alice"},
		LocalAuthCode:     "local-1",
		NextLocalAuthCode: "local-2",
	}
	if err := store.Persist(st); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got := store.Load()
	if got.AccessTokens["a1"].User != "alice" || !got.AccessTokens["a1"].ExpiresAt.Equal(expires) {
		t.Errorf("access token = %+v", got.AccessTokens["a1"])
	}
	if got.RefreshTokens["r1"] != "alice" {
		t.Errorf("refresh token owner = %q", got.RefreshTokens["r1"])
	}
	if got.LocalAuthCode != "local-1" || got.NextLocalAuthCode != "local-2" {
		t.Errorf("local pair = %q/%q", got.LocalAuthCode, got.NextLocalAuthCode)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the snapshot", len(entries))
	}
}

func TestFileStore_PersistFailsWhenParentIsFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("writing blocker: %v", err)
	}

	err := NewFileStore(filepath.Join(blocker, "tokens.json"), nil).Persist(newStorage())
	if err == nil {
		t.Fatal("Persist() should fail when the parent path is a regular file")
	}
}
