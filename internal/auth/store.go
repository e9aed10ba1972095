package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore loads and saves the token Storage as a single JSON document.
type FileStore struct {
	path   string
	logger Logger
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string, logger Logger) *FileStore {
	if logger == nil {
		logger = noopLogger{}
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing or unparseable file yields fresh storage
// with a new local token pair; Load never fails.
func (s *FileStore) Load() *Storage {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("token store unreadable, starting fresh", "path", s.path, "error", err)
		}
		return newStorage()
	}

	var st Storage
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("token store corrupt, starting fresh", "path", s.path, "error", err)
		return newStorage()
	}

	if st.AccessTokens == nil {
		st.AccessTokens = make(map[string]AccessToken)
	}
	if st.RefreshTokens == nil {
		st.RefreshTokens = make(map[string]string)
	}
	if st.LocalAuthCode == "" || st.NextLocalAuthCode == "" || st.LocalAuthCode == st.NextLocalAuthCode {
		s.logger.Warn("token store has no usable local token pair, minting a new one", "path", s.path)
		st.LocalAuthCode, st.NextLocalAuthCode = newLocalPair(&st)
	}
	return &st
}

// Persist writes st atomically: the document goes to a sibling temp file
// which then replaces the snapshot.
func (s *FileStore) Persist(st *Storage) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating token store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("writing token store: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("setting token store permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing token store: %w", err)
	}
	return nil
}

func newStorage() *Storage {
	st := &Storage{
		AccessTokens:  make(map[string]AccessToken),
		RefreshTokens: make(map[string]string),
	}
	st.LocalAuthCode, st.NextLocalAuthCode = newLocalPair(st)
	return st
}

// newLocalPair mints two distinct local tokens that collide with nothing in st.
func newLocalPair(st *Storage) (current, next string) {
	current = uniqueToken(st, "")
	next = uniqueToken(st, current)
	return current, next
}

// uniqueToken returns a fresh random token distinct from every access token,
// refresh token and local token in st, and from extra.
func uniqueToken(st *Storage, extra string) string {
	for {
		tok := generateToken()
		if tok == extra || tok == st.LocalAuthCode || tok == st.NextLocalAuthCode {
			continue
		}
		if _, ok := st.AccessTokens[tok]; ok {
			continue
		}
		if _, ok := st.RefreshTokens[tok]; ok {
			continue
		}
		return tok
	}
}
