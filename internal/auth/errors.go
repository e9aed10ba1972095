package auth

import (
	"errors"
	"net/http"
)

// ErrorKind is the closed set of authorization failure classes. Every error
// returned by Service belongs to exactly one kind, which decides how the HTTP
// layer reports it.
type ErrorKind uint8

const (
	// KindInvalidClient: bad client id or secret.
	KindInvalidClient ErrorKind = iota + 1

	// KindInvalidGrant: unknown or expired code, unknown refresh token,
	// unsupported grant type.
	KindInvalidGrant

	// KindInvalidRedirect: redirect URI is neither ours nor a platform callback.
	KindInvalidRedirect

	// KindUnauthenticated: missing or unresolvable bearer token.
	KindUnauthenticated
)

// String returns the OAuth error code for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidClient:
		return "invalid_client"
	case KindInvalidGrant, KindInvalidRedirect:
		return "invalid_grant"
	case KindUnauthenticated:
		return "unauthorized"
	default:
		return "server_error"
	}
}

// HTTPStatus returns the status code used when the kind terminates a request.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidClient, KindInvalidGrant, KindInvalidRedirect:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is an authorization failure of a known kind.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return "auth: " + e.Reason
}

// Sentinel errors. Compare with errors.Is; classify with KindOf.
var (
	ErrInvalidClient       = &Error{Kind: KindInvalidClient, Reason: "invalid client credentials"}
	ErrInvalidCode         = &Error{Kind: KindInvalidGrant, Reason: "unknown authorization code"}
	ErrExpiredCode         = &Error{Kind: KindInvalidGrant, Reason: "authorization code expired"}
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidGrant, Reason: "unknown refresh token"}
	ErrUnsupportedGrant    = &Error{Kind: KindInvalidGrant, Reason: "unsupported grant type"}
	ErrInvalidRedirect     = &Error{Kind: KindInvalidRedirect, Reason: "redirect uri not allowed"}
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated, Reason: "missing or invalid bearer token"}
)

// Account errors from the login repository. These never leave the package
// boundary unclassified: the HTTP layer turns them into a login-form redirect.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUserInactive       = errors.New("auth: user account is inactive")
	ErrUsernameExists     = errors.New("auth: username already exists")
)

// KindOf returns the kind of err, or zero if err is not an *Error.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
