package auth

import (
	"context"
	"errors"
	"testing"
)

func createUser(t *testing.T, repo *SQLiteUserRepository, username, password string, active bool) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	u := &User{Username: username, DisplayName: username, PasswordHash: hash, IsActive: active}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return u
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	u := createUser(t, repo, "alice", "password123", true)

	if u.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %q, want %q", got.ID, u.ID)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	createUser(t, repo, "alice", "pw", true)

	err := repo.Create(context.Background(), &User{Username: "alice", DisplayName: "dup", PasswordHash: "x", IsActive: true})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
	if err := repo.UpdatePassword(ctx, "usr-missing", "hash"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePassword() error = %v, want ErrUserNotFound", err)
	}
}

func TestAuthenticate(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	createUser(t, repo, "alice", "right", true)
	createUser(t, repo, "bob", "right", false)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "alice", "right", nil},
		{"wrong password", "alice", "wrong", ErrInvalidCredentials},
		{"unknown user", "carol", "right", ErrInvalidCredentials},
		{"inactive", "bob", "right", ErrUserInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Authenticate(context.Background(), repo, tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
