package auth

import (
	"context"
	"errors"
	"fmt"
)

// SeedLoginUser ensures the configured login account exists with the
// configured password. Missing accounts are created; an existing account
// whose password no longer matches gets the new hash. An empty password
// skips seeding and returns false.
func SeedLoginUser(ctx context.Context, repo UserRepository, username, password string, logger Logger) (bool, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if password == "" {
		logger.Info("no login password configured, skipping account seed")
		return false, nil
	}
	if !IsValidUsername(username) {
		return false, fmt.Errorf("invalid login username %q", username)
	}

	existing, err := repo.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		hash, err := HashPassword(password) //nolint:govet // shadow
		if err != nil {
			return false, fmt.Errorf("hashing login password: %w", err)
		}
		user := &User{
			Username:     username,
			DisplayName:  username,
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := repo.Create(ctx, user); err != nil {
			return false, fmt.Errorf("creating login account: %w", err)
		}
		logger.Info("login account created", "username", username)
		return true, nil
	case err != nil:
		return false, fmt.Errorf("looking up login account: %w", err)
	}

	ok, err := VerifyPassword(password, existing.PasswordHash)
	if err == nil && ok {
		return false, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing login password: %w", err)
	}
	if err := repo.UpdatePassword(ctx, existing.ID, hash); err != nil {
		return false, fmt.Errorf("updating login password: %w", err)
	}
	logger.Info("login account password updated", "username", username)
	return true, nil
}
