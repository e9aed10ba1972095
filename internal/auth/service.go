package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"
)

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Service.
type Options struct {
	ClientID     string
	ClientSecret string

	// AccessTokenTTL is the lifetime of minted access tokens.
	AccessTokenTTL time.Duration

	// Redirects decides which redirect URIs are acceptable.
	Redirects RedirectPolicy

	// OnLocalRotate runs after the local token pair rotates, outside the lock.
	OnLocalRotate func()

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time

	Logger Logger
}

// Service owns every token in the system. All operations are serialised by a
// single mutex; each mutation persists the full snapshot before returning.
type Service struct {
	mu      sync.Mutex
	store   *FileStore
	storage *Storage
	codes   map[string]AuthorizationCode

	clientID      string
	clientSecret  string
	accessTTL     time.Duration
	redirects     RedirectPolicy
	onLocalRotate func()
	now           func() time.Time
	logger        Logger
}

// NewService loads the snapshot from store and returns a ready service.
func NewService(store *FileStore, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = time.Hour
	}
	s := &Service{
		store:         store,
		storage:       store.Load(),
		codes:         make(map[string]AuthorizationCode),
		clientID:      opts.ClientID,
		clientSecret:  opts.ClientSecret,
		accessTTL:     opts.AccessTokenTTL,
		redirects:     opts.Redirects,
		onLocalRotate: opts.OnLocalRotate,
		now:           opts.Now,
		logger:        opts.Logger,
	}
	s.logger.Info("token store loaded",
		"path", store.Path(),
		"access_tokens", len(s.storage.AccessTokens),
		"refresh_tokens", len(s.storage.RefreshTokens),
	)
	return s
}

// SetOnLocalRotate replaces the rotation hook. Intended for wiring at startup
// when the hook's owner is built after the service.
func (s *Service) SetOnLocalRotate(fn func()) {
	s.mu.Lock()
	s.onLocalRotate = fn
	s.mu.Unlock()
}

// GenerateAuthCode issues a single-use code for user, valid for ten minutes.
func (s *Service) GenerateAuthCode(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepCodesLocked(now)

	var code string
	for {
		code = generateToken()
		if _, taken := s.codes[code]; !taken {
			break
		}
	}
	s.codes[code] = AuthorizationCode{Code: code, User: user, ExpiresAt: now.Add(authCodeLifetime)}
	return code
}

// ExchangeAuthCode redeems code for a fresh refresh/access token pair.
// The code is consumed even when the exchange fails for a later reason.
// Any tokens the user already held are revoked.
func (s *Service) ExchangeAuthCode(code, redirectURI, selfURL string) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok {
		return Tokens{}, ErrInvalidCode
	}
	delete(s.codes, code)

	now := s.now()
	if !now.Before(entry.ExpiresAt) {
		return Tokens{}, ErrExpiredCode
	}
	if !s.redirects.Allows(redirectURI, selfURL) {
		return Tokens{}, ErrInvalidRedirect
	}

	s.removeUserLocked(entry.User, now)

	refresh := uniqueToken(s.storage, "")
	s.storage.RefreshTokens[refresh] = entry.User
	s.storage.LinkedUser = entry.User
	access := s.mintAccessLocked(entry.User, now)
	s.persistLocked()

	s.logger.Info("account linked", "user", entry.User)
	return Tokens{
		User:         entry.User,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL / time.Second),
	}, nil
}

// RefreshAccessToken mints a new access token for the user owning refresh.
// All of that user's previous access tokens are revoked, as is every
// expired access token.
func (s *Service) RefreshAccessToken(refresh string) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.storage.RefreshTokens[refresh]
	if !ok {
		return Tokens{}, ErrInvalidRefreshToken
	}

	now := s.now()
	for tok, at := range s.storage.AccessTokens {
		if at.User == user || !now.Before(at.ExpiresAt) {
			delete(s.storage.AccessTokens, tok)
		}
	}

	access := s.mintAccessLocked(user, now)
	s.persistLocked()

	return Tokens{User: user, AccessToken: access, ExpiresIn: int(s.accessTTL / time.Second)}, nil
}

// IsValidAccessToken reports whether tok is a live access token or either
// local token. Local tokens never expire and are not rotated here.
func (s *Service) IsValidAccessToken(tok string) bool {
	_, ok := s.UserForAccessToken(tok)
	return ok
}

// IsValidRefreshToken reports whether tok is a known refresh token.
func (s *Service) IsValidRefreshToken(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.storage.RefreshTokens[tok]
	return ok
}

// IsValidLocalAccessToken accepts the current or next local token.
// Presenting next rotates the pair: next becomes current and a new next is
// minted, after which the rotation hook runs.
func (s *Service) IsValidLocalAccessToken(tok string) bool {
	if tok == "" {
		return false
	}

	s.mu.Lock()
	switch tok {
	case s.storage.LocalAuthCode:
		s.mu.Unlock()
		return true
	case s.storage.NextLocalAuthCode:
		s.storage.LocalAuthCode = s.storage.NextLocalAuthCode
		s.storage.NextLocalAuthCode = uniqueToken(s.storage, "")
		s.persistLocked()
		hook := s.onLocalRotate
		s.mu.Unlock()

		s.logger.Info("local token pair rotated")
		if hook != nil {
			hook()
		}
		return true
	default:
		s.mu.Unlock()
		return false
	}
}

// UserForAccessToken resolves a bearer token to its user. Either local token
// resolves to LocalExecutionUser.
func (s *Service) UserForAccessToken(tok string) (string, bool) {
	if tok == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok == s.storage.LocalAuthCode || tok == s.storage.NextLocalAuthCode {
		return LocalExecutionUser, true
	}
	at, ok := s.liveAccessLocked(tok)
	if !ok {
		return "", false
	}
	return at.User, true
}

// LocalTokens returns the current local token pair.
func (s *Service) LocalTokens() (current, next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.LocalAuthCode, s.storage.NextLocalAuthCode
}

// LinkedUser returns the agent user id reported to the home graph: the user
// of the most recent code exchange while they still hold a refresh token.
// Otherwise the lexically first refresh-token holder is used, so the answer
// never depends on map order.
func (s *Service) LinkedUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	linked := ""
	for _, user := range s.storage.RefreshTokens {
		if user == s.storage.LinkedUser {
			return user, true
		}
		if linked == "" || user < linked {
			linked = user
		}
	}
	return linked, linked != ""
}

// RemoveAllTokensForUser revokes every access and refresh token held by user.
// Expired access tokens of any user are dropped at the same time.
func (s *Service) RemoveAllTokensForUser(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeUserLocked(user, s.now())
	s.persistLocked()
	s.logger.Info("account unlinked", "user", user)
}

// ValidateClient checks the OAuth client credentials in constant time.
func (s *Service) ValidateClient(clientID, clientSecret string) error {
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(s.clientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(s.clientSecret)) == 1
	if !idOK || !secretOK {
		return ErrInvalidClient
	}
	return nil
}

// IsValidClientID checks the client id alone, as presented on the login form.
func (s *Service) IsValidClientID(clientID string) bool {
	return subtle.ConstantTimeCompare([]byte(clientID), []byte(s.clientID)) == 1
}

// IsValidRedirectURI reports whether uri may receive an authorization code.
func (s *Service) IsValidRedirectURI(uri, selfURL string) bool {
	return s.redirects.Allows(uri, selfURL)
}

// Sweep removes expired authorization codes and access tokens.
func (s *Service) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepCodesLocked(now)

	removed := 0
	for tok, at := range s.storage.AccessTokens {
		if !now.Before(at.ExpiresAt) {
			delete(s.storage.AccessTokens, tok)
			removed++
		}
	}
	if removed > 0 {
		s.persistLocked()
		s.logger.Debug("expired access tokens swept", "count", removed)
	}
}

// Run sweeps expired state every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Service) liveAccessLocked(tok string) (AccessToken, bool) {
	at, ok := s.storage.AccessTokens[tok]
	if !ok || !s.now().Before(at.ExpiresAt) {
		return AccessToken{}, false
	}
	return at, true
}

func (s *Service) mintAccessLocked(user string, now time.Time) string {
	tok := uniqueToken(s.storage, "")
	s.storage.AccessTokens[tok] = AccessToken{Token: tok, User: user, ExpiresAt: now.Add(s.accessTTL)}
	return tok
}

func (s *Service) removeUserLocked(user string, now time.Time) {
	for tok, at := range s.storage.AccessTokens {
		if at.User == user || !now.Before(at.ExpiresAt) {
			delete(s.storage.AccessTokens, tok)
		}
	}
	for tok, u := range s.storage.RefreshTokens {
		if u == user {
			delete(s.storage.RefreshTokens, tok)
		}
	}
	if s.storage.LinkedUser == user {
		s.storage.LinkedUser = ""
	}
}

func (s *Service) sweepCodesLocked(now time.Time) {
	for code, entry := range s.codes {
		if !now.Before(entry.ExpiresAt) {
			delete(s.codes, code)
		}
	}
}

// persistLocked writes the snapshot. Failures are logged; in-memory state
// stays authoritative.
func (s *Service) persistLocked() {
	if err := s.store.Persist(s.storage); err != nil {
		s.logger.Error("persisting token store", "path", s.store.Path(), "error", err)
	}
}

// generateToken returns 256 bits of randomness, hex encoded.
func generateToken() string {
	b := make([]byte, 32) //nolint:mnd // 256-bit token
	rand.Read(b)          //nolint:errcheck // crypto/rand.Read never returns an error
	return hex.EncodeToString(b)
}
