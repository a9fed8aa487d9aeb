package domain

import "errors"

// Domain errors. Rejected shoot and befriend attempts are not errors; they
// come back as an Outcome kind.
var (
	ErrAlreadyRunning   = errors.New("hunt already running")
	ErrNotRunning       = errors.New("no hunt running")
	ErrNothingToMerge   = errors.New("no scores to merge")
	ErrOptedOut         = errors.New("channel opted out of the hunt")
	ErrStoreUnavailable = errors.New("score store unavailable")
	ErrSameUser         = errors.New("cannot merge a user into itself")
	ErrNoScores         = errors.New("no duck scores recorded")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)

// IsUserFacing reports whether err is an expected game outcome that should be
// shown to the user rather than logged as a failure.
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrAlreadyRunning) ||
		errors.Is(err, ErrNotRunning) ||
		errors.Is(err, ErrNothingToMerge) ||
		errors.Is(err, ErrOptedOut) ||
		errors.Is(err, ErrSameUser) ||
		errors.Is(err, ErrNoScores)
}
