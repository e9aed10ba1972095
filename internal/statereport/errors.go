package statereport

import "errors"

// Returned by ReportState and RequestSync when the call was skipped.
var (
	ErrNotRunning = errors.New("statereport: reporter not running")
	ErrNoClient   = errors.New("statereport: no home graph client configured")
	ErrNotLinked  = errors.New("statereport: no linked account")
)

// IsSkipped reports whether err means the call was skipped rather than failed.
func IsSkipped(err error) bool {
	return errors.Is(err, ErrNotRunning) || errors.Is(err, ErrNoClient) || errors.Is(err, ErrNotLinked)
}
