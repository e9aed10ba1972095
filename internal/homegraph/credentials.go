package homegraph

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	oauthjwt "golang.org/x/oauth2/jwt"
)

const (
	// Scope grants access to the home graph API.
	Scope = "https://www.googleapis.com/auth/homegraph"

	defaultTokenURI = "https://oauth2.googleapis.com/token"

	assertionLifetime = time.Hour
	maxErrorBody      = 64 << 10
)

// ServiceAccount is the subset of a platform service-account key file the
// bridge needs.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount reads and validates a key file.
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading service account: %w", err)
	}
	return ParseServiceAccount(data)
}

// ParseServiceAccount decodes and validates a key document.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServiceAccount, err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, fmt.Errorf("%w: client_email and private_key are required", ErrInvalidServiceAccount)
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	if _, err := sa.signingKey(); err != nil {
		return nil, err
	}
	return &sa, nil
}

// signingKey parses the PEM key so a broken key file fails at startup rather
// than on the first exchange.
func (sa *ServiceAccount) signingKey() (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServiceAccount, err)
	}
	return key, nil
}

// TokenSource returns a cached oauth2.TokenSource for the service account.
// Each exchange presents a self-signed RS256 assertion at the key's token URI
// (JWT bearer grant); tokens are reused until shortly before they expire.
// httpClient, if non-nil, carries the exchange.
func (sa *ServiceAccount) TokenSource(ctx context.Context, httpClient *http.Client) (oauth2.TokenSource, error) {
	if _, err := sa.signingKey(); err != nil {
		return nil, err
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	cfg := &oauthjwt.Config{
		Email:        sa.ClientEmail,
		PrivateKey:   []byte(sa.PrivateKey),
		PrivateKeyID: sa.PrivateKeyID,
		Scopes:       []string{Scope},
		TokenURL:     sa.TokenURI,
		Expires:      assertionLifetime,
	}
	return exchangeErrors{src: cfg.TokenSource(ctx)}, nil
}

// exchangeErrors tags token failures with ErrTokenExchange.
type exchangeErrors struct {
	src oauth2.TokenSource
}

// Token implements oauth2.TokenSource.
func (e exchangeErrors) Token() (*oauth2.Token, error) {
	tok, err := e.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}
	return tok, nil
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
