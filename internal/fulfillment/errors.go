package fulfillment

import "errors"

// Errors returned by Handle. Authentication failures are *auth.Error values.
var (
	ErrMalformedRequest = errors.New("fulfillment: malformed request")
	ErrUnknownIntent    = errors.New("fulfillment: unknown intent")
)

// ErrorCode returns the envelope errorCode for a Handle error.
func ErrorCode(err error) string {
	if errors.Is(err, ErrUnknownIntent) {
		return "notSupported"
	}
	return "protocolError"
}
