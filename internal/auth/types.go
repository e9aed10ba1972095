package auth

import (
	"regexp"
	"time"
)

// LocalExecutionUser is the pseudo-user every local-execution token resolves to.
const LocalExecutionUser = "local-execution"

// authCodeLifetime is how long an authorization code may wait to be exchanged.
const authCodeLifetime = 10 * time.Minute

// AuthorizationCode is a single-use login grant. Codes live only in memory;
// losing them on restart just forces the user to log in again.
type AuthorizationCode struct {
	Code      string
	User      string
	ExpiresAt time.Time
}

// AccessToken is a bearer credential for cloud-relayed fulfillment requests.
type AccessToken struct {
	Token     string    `json:"token"`
	User      string    `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Storage is the persisted token aggregate. It is always written as one
// complete JSON document.
type Storage struct {
	AccessTokens map[string]AccessToken `json:"accessTokens"`

	// RefreshTokens maps refresh token to user. Refresh tokens do not expire;
	// they are removed only when the user disconnects or re-links.
	RefreshTokens map[string]string `json:"refreshTokens"`

	// LocalAuthCode and NextLocalAuthCode are the rotating local-execution pair.
	LocalAuthCode     string `json:"localAuthCode"`
	NextLocalAuthCode string `json:"nextLocalAuthCode"`

	// LinkedUser is the user of the most recent code exchange. It is the
	// agent user id while that user still holds a refresh token.
	LinkedUser string `json:"linkedUser,omitempty"`
}

// Tokens is the result of a successful code exchange or refresh.
// RefreshToken is empty for refreshes. User owns the tokens.
type Tokens struct {
	User         string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
}

// usernamePattern defines the valid format for login usernames:
// alphanumeric, dots, hyphens, underscores, @, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// User is a login account allowed to link the assistant platform.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // never serialised
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
