package homegraph

import "errors"

// Sentinel errors for home graph calls. Check with errors.Is.
var (
	ErrInvalidServiceAccount = errors.New("homegraph: invalid service account key")
	ErrTokenExchange         = errors.New("homegraph: token exchange failed")
	ErrRequestFailed         = errors.New("homegraph: request failed")
)
