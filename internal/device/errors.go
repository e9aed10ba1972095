package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package. Check with errors.Is.
var (
	ErrDeviceNotFound = errors.New("device: not found")
	ErrInvalidDevice  = errors.New("device: invalid")
	ErrInvalidState   = errors.New("device: invalid state")
	ErrNoExecutor     = errors.New("device: no command executor")
)

// CommandError is returned by an Executor that knows the precise error code
// for a failed command, e.g. "notSupported" or "valueOutOfRange".
type CommandError struct {
	Code string
	Err  error
}

func (e *CommandError) Error() string {
	if e.Err == nil {
		return "device: command failed: " + e.Code
	}
	return fmt.Sprintf("device: command failed: %s: %v", e.Code, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
